// Package repo contains the persistence collaborators of the fleet schedule.
// Each resource has an interface here and two implementations: Postgres
// (pgx) and Firestore. No business logic lives here, only storage access,
// type mapping and normalisation of stored records into the canonical shape.
package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pkordes/fleet-schedule/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting it instead of *pgxpool.Pool lets integration tests pass a
// transaction that is rolled back after each test.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// TripRepo stores trips in two named collections, live and archived.
// The service layer depends on this interface so it can be unit-tested with
// a mock and run against either backend.
type TripRepo interface {
	// List returns every trip in coll. Status and DriverCompany are not
	// populated; they are derived by the caller.
	List(ctx context.Context, coll domain.Collection) ([]domain.Trip, error)

	// Upsert creates or overwrites the trip in coll, keeping trip.ID.
	Upsert(ctx context.Context, coll domain.Collection, trip domain.Trip) (domain.Trip, error)

	// Delete removes the trip from coll.
	// Returns domain.ErrNotFound if coll has no trip with that ID.
	Delete(ctx context.Context, coll domain.Collection, id uuid.UUID) error

	// Move atomically removes trip from one collection and stores it, with
	// the same ID and the given field values, in the other.
	// Returns domain.ErrNotFound if from has no trip with that ID.
	Move(ctx context.Context, trip domain.Trip, from, to domain.Collection) (domain.Trip, error)
}

// SnapshotFunc receives the full contents of a collection after a change.
type SnapshotFunc func(coll domain.Collection, trips []domain.Trip)

// TripWatcher delivers full-collection snapshots whenever the stored trips
// change, including changes made by other processes.
type TripWatcher interface {
	// Watch emits an initial snapshot of both collections, then one snapshot
	// per change, until ctx is cancelled or the feed fails.
	Watch(ctx context.Context, fn SnapshotFunc) error
}

// CounterRepo is an atomic named counter.
type CounterRepo interface {
	// Peek returns the current value of key, 0 if it was never incremented.
	Peek(ctx context.Context, key string) (int64, error)

	// Increment adds one to key and returns the new value.
	Increment(ctx context.Context, key string) (int64, error)
}

// DriverRepo stores driver reference data.
type DriverRepo interface {
	List(ctx context.Context) ([]domain.Driver, error)
	// Upsert creates the driver when ID is uuid.Nil, otherwise overwrites it.
	Upsert(ctx context.Context, d domain.Driver) (domain.Driver, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// VehicleRepo stores tractors and tankers.
type VehicleRepo interface {
	List(ctx context.Context) ([]domain.Vehicle, error)
	// Upsert creates the vehicle when ID is uuid.Nil, otherwise overwrites it.
	Upsert(ctx context.Context, v domain.Vehicle) (domain.Vehicle, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CompanyRepo stores clients and subcontractors. Postgres enforces unique
// names per kind ignoring case and reports a clash as domain.ErrValidation;
// Firestore has no such index, so callers check first.
type CompanyRepo interface {
	List(ctx context.Context, kind domain.CompanyKind) ([]domain.Company, error)
	// Upsert creates the company when ID is uuid.Nil, otherwise overwrites it.
	Upsert(ctx context.Context, c domain.Company) (domain.Company, error)
	Delete(ctx context.Context, kind domain.CompanyKind, id uuid.UUID) error
}

// RouteRepo stores routes.
type RouteRepo interface {
	List(ctx context.Context) ([]domain.Route, error)
	// Upsert creates the route when ID is uuid.Nil, otherwise overwrites it.
	Upsert(ctx context.Context, r domain.Route) (domain.Route, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
