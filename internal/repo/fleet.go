package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/fleet-schedule/internal/domain"
)

type pgDriverRepo struct {
	db db
}

// NewDriverRepo constructs a Postgres-backed DriverRepo.
func NewDriverRepo(db db) DriverRepo {
	return &pgDriverRepo{db: db}
}

const driverColumns = `id, name, phone, company, is_own, tractor, tanker,
	driver_card_expiry, adr_expiry, created_at, updated_at`

// List returns all drivers ordered by name.
func (r *pgDriverRepo) List(ctx context.Context) ([]domain.Driver, error) {
	rows, err := r.db.Query(ctx, `SELECT `+driverColumns+` FROM drivers ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("repo.DriverRepo.List: %w", err)
	}
	defer rows.Close()

	out := []domain.Driver{}
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.DriverRepo.List: scan: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.DriverRepo.List: rows: %w", err)
	}
	return out, nil
}

// Upsert inserts a new driver (ID minted here when nil) or overwrites an existing one.
func (r *pgDriverRepo) Upsert(ctx context.Context, d domain.Driver) (domain.Driver, error) {
	q := `
		INSERT INTO drivers (id, name, phone, company, is_own, tractor, tanker,
		                     driver_card_expiry, adr_expiry)
		VALUES (@id, @name, @phone, @company, @is_own, @tractor, @tanker,
		        @driver_card_expiry, @adr_expiry)
		ON CONFLICT (id) DO UPDATE
		SET name               = EXCLUDED.name,
		    phone              = EXCLUDED.phone,
		    company            = EXCLUDED.company,
		    is_own             = EXCLUDED.is_own,
		    tractor            = EXCLUDED.tractor,
		    tanker             = EXCLUDED.tanker,
		    driver_card_expiry = EXCLUDED.driver_card_expiry,
		    adr_expiry         = EXCLUDED.adr_expiry,
		    updated_at         = now()
		RETURNING ` + driverColumns

	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	args := pgx.NamedArgs{
		"id":                 d.ID,
		"name":               d.Name,
		"phone":              d.Phone,
		"company":            d.Company,
		"is_own":             d.IsOwn,
		"tractor":            d.Tractor,
		"tanker":             d.Tanker,
		"driver_card_expiry": d.DriverCardExpiry,
		"adr_expiry":         d.ADRExpiry,
	}
	result, err := scanDriver(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Driver{}, fmt.Errorf("repo.DriverRepo.Upsert: %w", err)
	}
	return result, nil
}

// Delete removes a driver by ID.
func (r *pgDriverRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM drivers WHERE id = @id`, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.DriverRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.DriverRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func scanDriver(s scanner) (domain.Driver, error) {
	var (
		d         domain.Driver
		id        pgtype.UUID
		card, adr pgtype.Date
	)
	err := s.Scan(&id, &d.Name, &d.Phone, &d.Company, &d.IsOwn, &d.Tractor, &d.Tanker,
		&card, &adr, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Driver{}, domain.ErrNotFound
		}
		return domain.Driver{}, err
	}
	d.ID = uuid.UUID(id.Bytes)
	d.DriverCardExpiry = optionalDate(card)
	d.ADRExpiry = optionalDate(adr)
	return d, nil
}

type pgVehicleRepo struct {
	db db
}

// NewVehicleRepo constructs a Postgres-backed VehicleRepo.
func NewVehicleRepo(db db) VehicleRepo {
	return &pgVehicleRepo{db: db}
}

const vehicleColumns = `id, number, kind, insurance_expiry, adr_expiry, inspection_expiry,
	brand, model, vin, notes, created_at, updated_at`

// List returns all vehicles ordered by kind then registration number.
func (r *pgVehicleRepo) List(ctx context.Context) ([]domain.Vehicle, error) {
	rows, err := r.db.Query(ctx, `SELECT `+vehicleColumns+` FROM vehicles ORDER BY kind ASC, number ASC`)
	if err != nil {
		return nil, fmt.Errorf("repo.VehicleRepo.List: %w", err)
	}
	defer rows.Close()

	out := []domain.Vehicle{}
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.VehicleRepo.List: scan: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.VehicleRepo.List: rows: %w", err)
	}
	return out, nil
}

// Upsert inserts a new vehicle (ID minted here when nil) or overwrites an existing one.
func (r *pgVehicleRepo) Upsert(ctx context.Context, v domain.Vehicle) (domain.Vehicle, error) {
	q := `
		INSERT INTO vehicles (id, number, kind, insurance_expiry, adr_expiry,
		                      inspection_expiry, brand, model, vin, notes)
		VALUES (@id, @number, @kind, @insurance_expiry, @adr_expiry,
		        @inspection_expiry, @brand, @model, @vin, @notes)
		ON CONFLICT (id) DO UPDATE
		SET number            = EXCLUDED.number,
		    kind              = EXCLUDED.kind,
		    insurance_expiry  = EXCLUDED.insurance_expiry,
		    adr_expiry        = EXCLUDED.adr_expiry,
		    inspection_expiry = EXCLUDED.inspection_expiry,
		    brand             = EXCLUDED.brand,
		    model             = EXCLUDED.model,
		    vin               = EXCLUDED.vin,
		    notes             = EXCLUDED.notes,
		    updated_at        = now()
		RETURNING ` + vehicleColumns

	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	args := pgx.NamedArgs{
		"id":                v.ID,
		"number":            v.Number,
		"kind":              string(v.Kind),
		"insurance_expiry":  v.InsuranceExpiry,
		"adr_expiry":        v.ADRExpiry,
		"inspection_expiry": v.InspectionExpiry,
		"brand":             v.Brand,
		"model":             v.Model,
		"vin":               v.VIN,
		"notes":             v.Notes,
	}
	result, err := scanVehicle(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Vehicle{}, fmt.Errorf("repo.VehicleRepo.Upsert: %w", err)
	}
	return result, nil
}

// Delete removes a vehicle by ID.
func (r *pgVehicleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM vehicles WHERE id = @id`, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.VehicleRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.VehicleRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func scanVehicle(s scanner) (domain.Vehicle, error) {
	var (
		v                     domain.Vehicle
		id                    pgtype.UUID
		kind                  string
		insurance, adr, inspn pgtype.Date
	)
	err := s.Scan(&id, &v.Number, &kind, &insurance, &adr, &inspn,
		&v.Brand, &v.Model, &v.VIN, &v.Notes, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Vehicle{}, domain.ErrNotFound
		}
		return domain.Vehicle{}, err
	}
	v.ID = uuid.UUID(id.Bytes)
	v.Kind = domain.VehicleKind(kind)
	v.InsuranceExpiry = optionalDate(insurance)
	v.ADRExpiry = optionalDate(adr)
	v.InspectionExpiry = optionalDate(inspn)
	return v, nil
}
