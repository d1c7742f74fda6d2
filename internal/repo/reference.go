package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/fleet-schedule/internal/domain"
)

// uniqueViolation is the SQLSTATE of a unique index clash.
const uniqueViolation = "23505"

// mapUniqueViolation reports a unique index clash as domain.ErrValidation.
func mapUniqueViolation(err error, what string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s already exists", domain.ErrValidation, what)
	}
	return err
}

type pgCompanyRepo struct {
	db db
}

// NewCompanyRepo constructs a Postgres-backed CompanyRepo.
func NewCompanyRepo(db db) CompanyRepo {
	return &pgCompanyRepo{db: db}
}

const companyColumns = `id, kind, name, eik, address, mol, created_at, updated_at`

// List returns the companies of one kind ordered by name.
func (r *pgCompanyRepo) List(ctx context.Context, kind domain.CompanyKind) ([]domain.Company, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE kind = @kind ORDER BY name ASC`,
		pgx.NamedArgs{"kind": string(kind)})
	if err != nil {
		return nil, fmt.Errorf("repo.CompanyRepo.List: %w", err)
	}
	defer rows.Close()

	out := []domain.Company{}
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.CompanyRepo.List: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.CompanyRepo.List: rows: %w", err)
	}
	return out, nil
}

// Upsert inserts a new company (ID minted here when nil) or overwrites an
// existing one. The kind of an existing company never changes.
func (r *pgCompanyRepo) Upsert(ctx context.Context, c domain.Company) (domain.Company, error) {
	q := `
		INSERT INTO companies (id, kind, name, eik, address, mol)
		VALUES (@id, @kind, @name, @eik, @address, @mol)
		ON CONFLICT (id) DO UPDATE
		SET name       = EXCLUDED.name,
		    eik        = EXCLUDED.eik,
		    address    = EXCLUDED.address,
		    mol        = EXCLUDED.mol,
		    updated_at = now()
		RETURNING ` + companyColumns

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	args := pgx.NamedArgs{
		"id":      c.ID,
		"kind":    string(c.Kind),
		"name":    c.Name,
		"eik":     c.EIK,
		"address": c.Address,
		"mol":     c.MOL,
	}
	result, err := scanCompany(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Company{}, fmt.Errorf("repo.CompanyRepo.Upsert: %w", mapUniqueViolation(err, "company "+c.Name))
	}
	return result, nil
}

// Delete removes a company of the given kind by ID.
func (r *pgCompanyRepo) Delete(ctx context.Context, kind domain.CompanyKind, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM companies WHERE id = @id AND kind = @kind`,
		pgx.NamedArgs{"id": id, "kind": string(kind)})
	if err != nil {
		return fmt.Errorf("repo.CompanyRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.CompanyRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func scanCompany(s scanner) (domain.Company, error) {
	var (
		c    domain.Company
		id   pgtype.UUID
		kind string
	)
	err := s.Scan(&id, &kind, &c.Name, &c.EIK, &c.Address, &c.MOL, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Company{}, domain.ErrNotFound
		}
		return domain.Company{}, err
	}
	c.ID = uuid.UUID(id.Bytes)
	c.Kind = domain.CompanyKind(kind)
	return c, nil
}

type pgRouteRepo struct {
	db db
}

// NewRouteRepo constructs a Postgres-backed RouteRepo.
func NewRouteRepo(db db) RouteRepo {
	return &pgRouteRepo{db: db}
}

const routeColumns = `id, name, origin, destination, distance_km::float8, duration_days,
	bidirectional, notes, client_ids::text[], created_at, updated_at`

// List returns all routes ordered by name.
func (r *pgRouteRepo) List(ctx context.Context) ([]domain.Route, error) {
	rows, err := r.db.Query(ctx, `SELECT `+routeColumns+` FROM routes ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("repo.RouteRepo.List: %w", err)
	}
	defer rows.Close()

	out := []domain.Route{}
	for rows.Next() {
		rt, err := scanRoute(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.RouteRepo.List: scan: %w", err)
		}
		out = append(out, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.RouteRepo.List: rows: %w", err)
	}
	return out, nil
}

// Upsert inserts a new route (ID minted here when nil) or overwrites an
// existing one.
func (r *pgRouteRepo) Upsert(ctx context.Context, rt domain.Route) (domain.Route, error) {
	q := `
		INSERT INTO routes (id, name, origin, destination, distance_km, duration_days,
		                    bidirectional, notes, client_ids)
		VALUES (@id, @name, @origin, @destination, @distance_km, @duration_days,
		        @bidirectional, @notes, @client_ids::uuid[])
		ON CONFLICT (id) DO UPDATE
		SET name          = EXCLUDED.name,
		    origin        = EXCLUDED.origin,
		    destination   = EXCLUDED.destination,
		    distance_km   = EXCLUDED.distance_km,
		    duration_days = EXCLUDED.duration_days,
		    bidirectional = EXCLUDED.bidirectional,
		    notes         = EXCLUDED.notes,
		    client_ids    = EXCLUDED.client_ids,
		    updated_at    = now()
		RETURNING ` + routeColumns

	if rt.ID == uuid.Nil {
		rt.ID = uuid.New()
	}
	clients := make([]string, len(rt.ClientIDs))
	for i, id := range rt.ClientIDs {
		clients[i] = id.String()
	}
	args := pgx.NamedArgs{
		"id":            rt.ID,
		"name":          rt.Name,
		"origin":        rt.From,
		"destination":   rt.To,
		"distance_km":   rt.DistanceKm,
		"duration_days": rt.DurationDays,
		"bidirectional": rt.Bidirectional,
		"notes":         rt.Notes,
		"client_ids":    clients,
	}
	result, err := scanRoute(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Route{}, fmt.Errorf("repo.RouteRepo.Upsert: %w", err)
	}
	return result, nil
}

// Delete removes a route by ID.
func (r *pgRouteRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM routes WHERE id = @id`, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.RouteRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.RouteRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func scanRoute(s scanner) (domain.Route, error) {
	var (
		rt       domain.Route
		id       pgtype.UUID
		distance pgtype.Float8
		duration pgtype.Int4
		clients  []string
	)
	err := s.Scan(&id, &rt.Name, &rt.From, &rt.To, &distance, &duration,
		&rt.Bidirectional, &rt.Notes, &clients, &rt.CreatedAt, &rt.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Route{}, domain.ErrNotFound
		}
		return domain.Route{}, err
	}
	rt.ID = uuid.UUID(id.Bytes)
	if distance.Valid {
		rt.DistanceKm = &distance.Float64
	}
	if duration.Valid {
		days := int(duration.Int32)
		rt.DurationDays = &days
	}
	rt.ClientIDs = make([]uuid.UUID, 0, len(clients))
	for _, c := range clients {
		if cid, err := uuid.Parse(c); err == nil {
			rt.ClientIDs = append(rt.ClientIDs, cid)
		}
	}
	return rt, nil
}
