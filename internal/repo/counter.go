package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type pgCounterRepo struct {
	db db
}

// NewCounterRepo constructs a Postgres-backed CounterRepo.
func NewCounterRepo(db db) CounterRepo {
	return &pgCounterRepo{db: db}
}

// Peek returns the stored value, or 0 for an unknown key.
func (r *pgCounterRepo) Peek(ctx context.Context, key string) (int64, error) {
	const q = `SELECT value FROM counters WHERE key = @key`

	var v int64
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"key": key}).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("repo.CounterRepo.Peek: %w", err)
	}
	return v, nil
}

// Increment bumps the counter in one statement; concurrent callers each get
// a distinct value.
func (r *pgCounterRepo) Increment(ctx context.Context, key string) (int64, error) {
	const q = `
		INSERT INTO counters (key, value)
		VALUES (@key, 1)
		ON CONFLICT (key) DO UPDATE
		SET value = counters.value + 1, updated_at = now()
		RETURNING value`

	var v int64
	if err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"key": key}).Scan(&v); err != nil {
		return 0, fmt.Errorf("repo.CounterRepo.Increment: %w", err)
	}
	return v, nil
}
