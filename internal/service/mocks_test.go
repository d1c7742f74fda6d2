package service_test

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/fleet-schedule/internal/domain"
	"github.com/pkordes/fleet-schedule/internal/repo"
	"github.com/pkordes/fleet-schedule/internal/service"
)

// mockTripRepo is a hand-written test double for repo.TripRepo.
// Each method is a function field; set only the ones your test needs.
type mockTripRepo struct {
	list   func(ctx context.Context, coll domain.Collection) ([]domain.Trip, error)
	upsert func(ctx context.Context, coll domain.Collection, trip domain.Trip) (domain.Trip, error)
	delete func(ctx context.Context, coll domain.Collection, id uuid.UUID) error
	move   func(ctx context.Context, trip domain.Trip, from, to domain.Collection) (domain.Trip, error)
}

func (m *mockTripRepo) List(ctx context.Context, coll domain.Collection) ([]domain.Trip, error) {
	return m.list(ctx, coll)
}
func (m *mockTripRepo) Upsert(ctx context.Context, coll domain.Collection, trip domain.Trip) (domain.Trip, error) {
	return m.upsert(ctx, coll, trip)
}
func (m *mockTripRepo) Delete(ctx context.Context, coll domain.Collection, id uuid.UUID) error {
	return m.delete(ctx, coll, id)
}
func (m *mockTripRepo) Move(ctx context.Context, trip domain.Trip, from, to domain.Collection) (domain.Trip, error) {
	return m.move(ctx, trip, from, to)
}

var _ repo.TripRepo = (*mockTripRepo)(nil)

// memTrips is the state behind memRepo, exposed so tests can assert on
// what was persisted.
type memTrips map[domain.Collection]map[uuid.UUID]domain.Trip

func (m memTrips) has(coll domain.Collection, id uuid.UUID) bool {
	_, ok := m[coll][id]
	return ok
}

// memRepo returns a mockTripRepo whose functions keep trips in memory with
// the same contract as the real repos.
func memRepo() (*mockTripRepo, memTrips) {
	state := memTrips{
		domain.CollectionLive:    {},
		domain.CollectionArchive: {},
	}
	r := &mockTripRepo{
		list: func(_ context.Context, coll domain.Collection) ([]domain.Trip, error) {
			out := []domain.Trip{}
			for _, t := range state[coll] {
				out = append(out, t)
			}
			return out, nil
		},
		upsert: func(_ context.Context, coll domain.Collection, t domain.Trip) (domain.Trip, error) {
			state[coll][t.ID] = t
			return t, nil
		},
		delete: func(_ context.Context, coll domain.Collection, id uuid.UUID) error {
			if _, ok := state[coll][id]; !ok {
				return domain.ErrNotFound
			}
			delete(state[coll], id)
			return nil
		},
		move: func(_ context.Context, t domain.Trip, from, to domain.Collection) (domain.Trip, error) {
			if _, ok := state[from][t.ID]; !ok {
				return domain.Trip{}, domain.ErrNotFound
			}
			delete(state[from], t.ID)
			state[to][t.ID] = t
			return t, nil
		},
	}
	return r, state
}

// mockCounterRepo is a hand-written test double for repo.CounterRepo.
type mockCounterRepo struct {
	peek      func(ctx context.Context, key string) (int64, error)
	increment func(ctx context.Context, key string) (int64, error)
}

func (m *mockCounterRepo) Peek(ctx context.Context, key string) (int64, error) {
	return m.peek(ctx, key)
}
func (m *mockCounterRepo) Increment(ctx context.Context, key string) (int64, error) {
	return m.increment(ctx, key)
}

var _ repo.CounterRepo = (*mockCounterRepo)(nil)

// mockNumbers is a hand-written test double for service.DocumentNumbers.
type mockNumbers struct {
	next func(ctx context.Context, date time.Time, leg domain.Leg, commit bool) (string, error)
}

func (m *mockNumbers) Next(ctx context.Context, date time.Time, leg domain.Leg, commit bool) (string, error) {
	return m.next(ctx, date, leg, commit)
}

var _ service.DocumentNumbers = (*mockNumbers)(nil)

// directory is a map-backed service.DriverDirectory.
type directory map[string]string

func (d directory) CompanyOf(name string) string { return d[name] }

// mockDriverRepo is a hand-written test double for repo.DriverRepo.
type mockDriverRepo struct {
	list   func(ctx context.Context) ([]domain.Driver, error)
	upsert func(ctx context.Context, d domain.Driver) (domain.Driver, error)
	delete func(ctx context.Context, id uuid.UUID) error
}

func (m *mockDriverRepo) List(ctx context.Context) ([]domain.Driver, error) { return m.list(ctx) }
func (m *mockDriverRepo) Upsert(ctx context.Context, d domain.Driver) (domain.Driver, error) {
	return m.upsert(ctx, d)
}
func (m *mockDriverRepo) Delete(ctx context.Context, id uuid.UUID) error { return m.delete(ctx, id) }

var _ repo.DriverRepo = (*mockDriverRepo)(nil)

// mockVehicleRepo is a hand-written test double for repo.VehicleRepo.
type mockVehicleRepo struct {
	list   func(ctx context.Context) ([]domain.Vehicle, error)
	upsert func(ctx context.Context, v domain.Vehicle) (domain.Vehicle, error)
	delete func(ctx context.Context, id uuid.UUID) error
}

func (m *mockVehicleRepo) List(ctx context.Context) ([]domain.Vehicle, error) { return m.list(ctx) }
func (m *mockVehicleRepo) Upsert(ctx context.Context, v domain.Vehicle) (domain.Vehicle, error) {
	return m.upsert(ctx, v)
}
func (m *mockVehicleRepo) Delete(ctx context.Context, id uuid.UUID) error { return m.delete(ctx, id) }

var _ repo.VehicleRepo = (*mockVehicleRepo)(nil)

// mockCompanyRepo is a hand-written test double for repo.CompanyRepo.
type mockCompanyRepo struct {
	list   func(ctx context.Context, kind domain.CompanyKind) ([]domain.Company, error)
	upsert func(ctx context.Context, c domain.Company) (domain.Company, error)
	delete func(ctx context.Context, kind domain.CompanyKind, id uuid.UUID) error
}

func (m *mockCompanyRepo) List(ctx context.Context, kind domain.CompanyKind) ([]domain.Company, error) {
	return m.list(ctx, kind)
}
func (m *mockCompanyRepo) Upsert(ctx context.Context, c domain.Company) (domain.Company, error) {
	return m.upsert(ctx, c)
}
func (m *mockCompanyRepo) Delete(ctx context.Context, kind domain.CompanyKind, id uuid.UUID) error {
	return m.delete(ctx, kind, id)
}

var _ repo.CompanyRepo = (*mockCompanyRepo)(nil)

// mockRouteRepo is a hand-written test double for repo.RouteRepo.
type mockRouteRepo struct {
	list   func(ctx context.Context) ([]domain.Route, error)
	upsert func(ctx context.Context, r domain.Route) (domain.Route, error)
	delete func(ctx context.Context, id uuid.UUID) error
}

func (m *mockRouteRepo) List(ctx context.Context) ([]domain.Route, error) { return m.list(ctx) }
func (m *mockRouteRepo) Upsert(ctx context.Context, r domain.Route) (domain.Route, error) {
	return m.upsert(ctx, r)
}
func (m *mockRouteRepo) Delete(ctx context.Context, id uuid.UUID) error { return m.delete(ctx, id) }

var _ repo.RouteRepo = (*mockRouteRepo)(nil)

// memReference is the state behind the in-memory company and route repos.
type memReference struct {
	companies []domain.Company
	routes    []domain.Route
	upserts   int
}

// memReferenceRepos returns company and route repos backed by state, with
// the same contract as the real repos. List returns copies so callers may
// reorder them.
func memReferenceRepos(state *memReference) (*mockCompanyRepo, *mockRouteRepo) {
	companies := &mockCompanyRepo{
		list: func(_ context.Context, kind domain.CompanyKind) ([]domain.Company, error) {
			out := []domain.Company{}
			for _, c := range state.companies {
				if c.Kind == kind {
					out = append(out, c)
				}
			}
			return out, nil
		},
		upsert: func(_ context.Context, c domain.Company) (domain.Company, error) {
			state.upserts++
			if c.ID == uuid.Nil {
				c.ID = uuid.New()
			}
			for i, e := range state.companies {
				if e.ID == c.ID {
					state.companies[i] = c
					return c, nil
				}
			}
			state.companies = append(state.companies, c)
			return c, nil
		},
		delete: func(_ context.Context, kind domain.CompanyKind, id uuid.UUID) error {
			for i, e := range state.companies {
				if e.ID == id && e.Kind == kind {
					state.companies = append(state.companies[:i], state.companies[i+1:]...)
					return nil
				}
			}
			return domain.ErrNotFound
		},
	}
	routes := &mockRouteRepo{
		list: func(context.Context) ([]domain.Route, error) {
			return append([]domain.Route{}, state.routes...), nil
		},
		upsert: func(_ context.Context, r domain.Route) (domain.Route, error) {
			state.upserts++
			if r.ID == uuid.Nil {
				r.ID = uuid.New()
			}
			for i, e := range state.routes {
				if e.ID == r.ID {
					state.routes[i] = r
					return r, nil
				}
			}
			state.routes = append(state.routes, r)
			return r, nil
		},
		delete: func(_ context.Context, id uuid.UUID) error {
			for i, e := range state.routes {
				if e.ID == id {
					state.routes = append(state.routes[:i], state.routes[i+1:]...)
					return nil
				}
			}
			return domain.ErrNotFound
		},
	}
	return companies, routes
}

// ---- helpers ---------------------------------------------------------------

// fixedClock returns a Clock reading *now, so a test can advance time.
func fixedClock(now *time.Time) domain.Clock {
	return func() time.Time { return *now }
}

func d(s string) *time.Time {
	return domain.DatePtr(domain.MustParseDate(s))
}
