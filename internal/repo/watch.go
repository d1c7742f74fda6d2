package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pkordes/fleet-schedule/internal/domain"
)

// TripsChangedChannel is the Postgres NOTIFY channel fed by the trips
// trigger. The payload is the collection name that changed.
const TripsChangedChannel = "trips_changed"

// PgTripWatcher turns trips_changed notifications into full-collection
// snapshots. It holds one pooled connection for LISTEN for as long as Watch runs.
type PgTripWatcher struct {
	pool  *pgxpool.Pool
	trips TripRepo
}

// NewTripWatcher constructs a watcher that listens on pool and re-reads
// collections through trips.
func NewTripWatcher(pool *pgxpool.Pool, trips TripRepo) *PgTripWatcher {
	return &PgTripWatcher{pool: pool, trips: trips}
}

// Watch implements TripWatcher.
func (w *PgTripWatcher) Watch(ctx context.Context, fn SnapshotFunc) error {
	conn, err := w.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("repo.PgTripWatcher.Watch: acquire: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+TripsChangedChannel); err != nil {
		return fmt.Errorf("repo.PgTripWatcher.Watch: listen: %w", err)
	}

	for _, coll := range []domain.Collection{domain.CollectionLive, domain.CollectionArchive} {
		if err := w.emit(ctx, coll, fn); err != nil {
			return err
		}
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("repo.PgTripWatcher.Watch: wait: %w", err)
		}
		coll := domain.Collection(n.Payload)
		if !coll.Valid() {
			continue
		}
		if err := w.emit(ctx, coll, fn); err != nil {
			return err
		}
	}
}

func (w *PgTripWatcher) emit(ctx context.Context, coll domain.Collection, fn SnapshotFunc) error {
	trips, err := w.trips.List(ctx, coll)
	if err != nil {
		return fmt.Errorf("repo.PgTripWatcher.Watch: %w", err)
	}
	fn(coll, trips)
	return nil
}
