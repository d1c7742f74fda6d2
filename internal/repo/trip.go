package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/fleet-schedule/internal/domain"
)

// pgTripRepo is the Postgres implementation of TripRepo.
// Both collections share the trips table; the primary key on id keeps a trip
// in at most one collection.
type pgTripRepo struct {
	db db
}

// NewTripRepo constructs a TripRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewTripRepo(db db) TripRepo {
	return &pgTripRepo{db: db}
}

const tripColumns = `id, driver_name, client_name, route_name, start_date, end_date,
	leg, document_number, notes, archived_at, created_at, updated_at`

// List returns the trips of coll ordered by start_date, undated trips last.
func (r *pgTripRepo) List(ctx context.Context, coll domain.Collection) ([]domain.Trip, error) {
	q := `SELECT ` + tripColumns + `
		FROM trips
		WHERE collection = @collection
		ORDER BY start_date ASC NULLS LAST, created_at ASC`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"collection": string(coll)})
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.List: %w", err)
	}
	defer rows.Close()

	trips := []domain.Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.TripRepo.List: scan: %w", err)
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.TripRepo.List: rows: %w", err)
	}
	return trips, nil
}

// Upsert inserts the trip or overwrites the row with the same id in coll.
// A row with that id in the other collection is left alone and reported as
// domain.ErrNotFound; moving between collections goes through Move.
func (r *pgTripRepo) Upsert(ctx context.Context, coll domain.Collection, trip domain.Trip) (domain.Trip, error) {
	q := `
		INSERT INTO trips (id, collection, driver_name, client_name, route_name,
		                   start_date, end_date, leg, document_number, notes, archived_at)
		VALUES (@id, @collection, @driver_name, @client_name, @route_name,
		        @start_date, @end_date, @leg, @document_number, @notes, @archived_at)
		ON CONFLICT (id) DO UPDATE
		SET driver_name     = EXCLUDED.driver_name,
		    client_name     = EXCLUDED.client_name,
		    route_name      = EXCLUDED.route_name,
		    start_date      = EXCLUDED.start_date,
		    end_date        = EXCLUDED.end_date,
		    leg             = EXCLUDED.leg,
		    document_number = EXCLUDED.document_number,
		    notes           = EXCLUDED.notes,
		    archived_at     = EXCLUDED.archived_at,
		    updated_at      = now()
		WHERE trips.collection = EXCLUDED.collection
		RETURNING ` + tripColumns

	args := tripArgs(trip)
	args["collection"] = string(coll)

	result, err := scanTrip(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Upsert: %w", err)
	}
	return result, nil
}

// Delete removes a trip from coll.
func (r *pgTripRepo) Delete(ctx context.Context, coll domain.Collection, id uuid.UUID) error {
	const q = `DELETE FROM trips WHERE id = @id AND collection = @collection`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id, "collection": string(coll)})
	if err != nil {
		return fmt.Errorf("repo.TripRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.TripRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// Move switches the row's collection in a single UPDATE, writing the trip's
// current field values at the same time.
func (r *pgTripRepo) Move(ctx context.Context, trip domain.Trip, from, to domain.Collection) (domain.Trip, error) {
	q := `
		UPDATE trips
		SET collection      = @to,
		    driver_name     = @driver_name,
		    client_name     = @client_name,
		    route_name      = @route_name,
		    start_date      = @start_date,
		    end_date        = @end_date,
		    leg             = @leg,
		    document_number = @document_number,
		    notes           = @notes,
		    archived_at     = @archived_at,
		    updated_at      = now()
		WHERE id = @id AND collection = @from
		RETURNING ` + tripColumns

	args := tripArgs(trip)
	args["from"] = string(from)
	args["to"] = string(to)

	result, err := scanTrip(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Move: %w", err)
	}
	return result, nil
}

func tripArgs(t domain.Trip) pgx.NamedArgs {
	return pgx.NamedArgs{
		"id":              t.ID,
		"driver_name":     t.DriverName,
		"client_name":     t.ClientName,
		"route_name":      t.RouteName,
		"start_date":      t.StartDate, // nil becomes NULL
		"end_date":        t.EndDate,
		"leg":             t.Leg.String(),
		"document_number": t.DocumentNumber,
		"notes":           t.Notes,
		"archived_at":     t.ArchivedAt,
	}
}

// scanTrip maps a single database row into a domain.Trip.
func scanTrip(s scanner) (domain.Trip, error) {
	var (
		t          domain.Trip
		id         pgtype.UUID
		start, end pgtype.Date
		leg        string
		archivedAt pgtype.Timestamptz
	)

	err := s.Scan(&id, &t.DriverName, &t.ClientName, &t.RouteName, &start, &end,
		&leg, &t.DocumentNumber, &t.Notes, &archivedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trip{}, domain.ErrNotFound
		}
		return domain.Trip{}, err
	}

	t.ID = uuid.UUID(id.Bytes)
	t.StartDate = optionalDate(start)
	t.EndDate = optionalDate(end)
	if archivedAt.Valid {
		at := archivedAt.Time
		t.ArchivedAt = &at
	}
	t.Leg, err = domain.ParseLeg(leg)
	if err != nil {
		return domain.Trip{}, err
	}
	return t, nil
}

func optionalDate(d pgtype.Date) *time.Time {
	if !d.Valid {
		return nil
	}
	v := domain.DateOf(d.Time)
	return &v
}
