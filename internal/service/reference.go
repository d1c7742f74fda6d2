package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/pkordes/fleet-schedule/internal/domain"
	"github.com/pkordes/fleet-schedule/internal/repo"
)

// ReferenceService manages the clients, subcontractors and routes offered
// when trips are entered. Trips still reference them by name only.
type ReferenceService struct {
	companies repo.CompanyRepo
	routes    repo.RouteRepo
	clock     domain.Clock
	log       *slog.Logger
}

// NewReferenceService constructs a ReferenceService.
func NewReferenceService(companies repo.CompanyRepo, routes repo.RouteRepo, clock domain.Clock, log *slog.Logger) *ReferenceService {
	if clock == nil {
		clock = domain.SystemClock
	}
	if log == nil {
		log = slog.Default()
	}
	return &ReferenceService{companies: companies, routes: routes, clock: clock, log: log}
}

// ListCompanies returns the companies of kind whose name contains q,
// ignoring case, in Bulgarian alphabetical order. An empty q matches all.
func (s *ReferenceService) ListCompanies(ctx context.Context, kind domain.CompanyKind, q string) ([]domain.Company, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown company kind %q", domain.ErrValidation, kind)
	}
	all, err := s.companies.List(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("service.ReferenceService.ListCompanies: %w", err)
	}
	out := slices.DeleteFunc(all, func(c domain.Company) bool { return !nameContains(c.Name, q) })
	sortByName(out, func(c domain.Company) string { return c.Name })
	return out, nil
}

// IsDuplicateName reports whether another company of kind, not ignore, is
// already called name.
func (s *ReferenceService) IsDuplicateName(ctx context.Context, kind domain.CompanyKind, name string, ignore uuid.UUID) (bool, error) {
	if !kind.Valid() {
		return false, fmt.Errorf("%w: unknown company kind %q", domain.ErrValidation, kind)
	}
	all, err := s.companies.List(ctx, kind)
	if err != nil {
		return false, fmt.Errorf("service.ReferenceService.IsDuplicateName: %w", err)
	}
	_, dup := findByName(all, name, ignore)
	return dup, nil
}

// SaveCompany creates the company when ID is uuid.Nil, otherwise
// overwrites it. The name is required and unique per kind, ignoring case.
func (s *ReferenceService) SaveCompany(ctx context.Context, c domain.Company) (domain.Company, error) {
	if err := validateCompany(&c); err != nil {
		return domain.Company{}, err
	}
	all, err := s.companies.List(ctx, c.Kind)
	if err != nil {
		return domain.Company{}, fmt.Errorf("service.ReferenceService.SaveCompany: %w", err)
	}
	if _, dup := findByName(all, c.Name, c.ID); dup {
		return domain.Company{}, fmt.Errorf("%w: %s %q already exists", domain.ErrValidation, c.Kind, c.Name)
	}
	saved, err := s.companies.Upsert(ctx, c)
	if err != nil {
		return domain.Company{}, fmt.Errorf("service.ReferenceService.SaveCompany: %w", err)
	}
	return saved, nil
}

// DeleteCompany removes a company. Trips naming it are left alone.
func (s *ReferenceService) DeleteCompany(ctx context.Context, kind domain.CompanyKind, id uuid.UUID) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown company kind %q", domain.ErrValidation, kind)
	}
	if err := s.companies.Delete(ctx, kind, id); err != nil {
		return fmt.Errorf("service.ReferenceService.DeleteCompany: %w", err)
	}
	return nil
}

// BulkSaveCompanies saves a batch of companies of one kind, as pasted from
// a spreadsheet or imported. Entries without a name are skipped and later
// entries repeating an earlier name are dropped. A new entry whose name is
// already stored updates that company instead of duplicating it. The batch
// is checked before anything is written.
func (s *ReferenceService) BulkSaveCompanies(ctx context.Context, kind domain.CompanyKind, cs []domain.Company) ([]domain.Company, error) {
	saved, _, err := s.bulkSaveCompanies(ctx, kind, cs)
	return saved, err
}

// bulkSaveCompanies also returns, for every input that carried an ID, the
// ID it was stored under.
func (s *ReferenceService) bulkSaveCompanies(ctx context.Context, kind domain.CompanyKind, cs []domain.Company) ([]domain.Company, map[uuid.UUID]uuid.UUID, error) {
	if !kind.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown company kind %q", domain.ErrValidation, kind)
	}
	existing, err := s.companies.List(ctx, kind)
	if err != nil {
		return nil, nil, fmt.Errorf("service.ReferenceService.BulkSaveCompanies: %w", err)
	}

	var (
		batch  []domain.Company
		origin []uuid.UUID
	)
	for _, c := range cs {
		c.Kind = kind
		c.Normalize()
		if c.Name == "" {
			continue
		}
		if _, seen := findByName(batch, c.Name, uuid.Nil); seen {
			continue
		}
		origin = append(origin, c.ID)
		if match, ok := findByName(existing, c.Name, c.ID); ok {
			if c.ID != uuid.Nil && slices.ContainsFunc(existing, func(e domain.Company) bool { return e.ID == c.ID }) {
				return nil, nil, fmt.Errorf("%w: %s %q already exists", domain.ErrValidation, kind, c.Name)
			}
			c.ID = match.ID
			c.CreatedAt = match.CreatedAt
		}
		batch = append(batch, c)
	}

	out := make([]domain.Company, 0, len(batch))
	ids := make(map[uuid.UUID]uuid.UUID, len(batch))
	for i, c := range batch {
		saved, err := s.companies.Upsert(ctx, c)
		if err != nil {
			return out, ids, fmt.Errorf("service.ReferenceService.BulkSaveCompanies: %w", err)
		}
		if origin[i] != uuid.Nil {
			ids[origin[i]] = saved.ID
		}
		out = append(out, saved)
	}
	return out, ids, nil
}

// ListRoutes returns the routes whose name contains q, ignoring case, in
// Bulgarian alphabetical order.
func (s *ReferenceService) ListRoutes(ctx context.Context, q string) ([]domain.Route, error) {
	all, err := s.routes.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.ReferenceService.ListRoutes: %w", err)
	}
	out := slices.DeleteFunc(all, func(r domain.Route) bool { return !nameContains(r.Name, q) })
	sortByName(out, func(r domain.Route) string { return r.Name })
	return out, nil
}

// RoutesForClient returns the routes bound to the client, or every route
// when clientID is uuid.Nil.
func (s *ReferenceService) RoutesForClient(ctx context.Context, clientID uuid.UUID) ([]domain.Route, error) {
	all, err := s.ListRoutes(ctx, "")
	if err != nil {
		return nil, err
	}
	if clientID == uuid.Nil {
		return all, nil
	}
	return slices.DeleteFunc(all, func(r domain.Route) bool { return !r.ServesClient(clientID) }), nil
}

// SaveRoute creates the route when ID is uuid.Nil, otherwise overwrites it.
// A route needs a name or both of its ends.
func (s *ReferenceService) SaveRoute(ctx context.Context, r domain.Route) (domain.Route, error) {
	r.Normalize()
	if r.Name == "" {
		return domain.Route{}, fmt.Errorf("%w: route name or both ends are required", domain.ErrValidation)
	}
	saved, err := s.routes.Upsert(ctx, r)
	if err != nil {
		return domain.Route{}, fmt.Errorf("service.ReferenceService.SaveRoute: %w", err)
	}
	return saved, nil
}

// DeleteRoute removes a route.
func (s *ReferenceService) DeleteRoute(ctx context.Context, id uuid.UUID) error {
	if err := s.routes.Delete(ctx, id); err != nil {
		return fmt.Errorf("service.ReferenceService.DeleteRoute: %w", err)
	}
	return nil
}

// BulkSaveRoutes saves a batch of routes, skipping those that end up
// without a name.
func (s *ReferenceService) BulkSaveRoutes(ctx context.Context, rs []domain.Route) ([]domain.Route, error) {
	out := make([]domain.Route, 0, len(rs))
	for _, r := range rs {
		r.Normalize()
		if r.Name == "" {
			continue
		}
		saved, err := s.routes.Upsert(ctx, r)
		if err != nil {
			return out, fmt.Errorf("service.ReferenceService.BulkSaveRoutes: %w", err)
		}
		out = append(out, saved)
	}
	return out, nil
}

// SuggestEnd proposes the unload date of a trip on the named route starting
// on start. Unknown routes get the one-day default.
func (s *ReferenceService) SuggestEnd(ctx context.Context, routeName string, start time.Time) (time.Time, error) {
	all, err := s.routes.List(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("service.ReferenceService.SuggestEnd: %w", err)
	}
	for _, r := range all {
		if domain.SameName(r.Name, routeName) {
			return r.SuggestEnd(start), nil
		}
	}
	return domain.Route{}.SuggestEnd(start), nil
}

// Export returns all reference data for backup or transfer.
func (s *ReferenceService) Export(ctx context.Context) (domain.ReferenceData, error) {
	out := domain.ReferenceData{Version: domain.ReferenceDataVersion, ExportedAt: s.clock().UTC()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.Clients, err = s.companies.List(ctx, domain.CompanyClient)
		return err
	})
	g.Go(func() (err error) {
		out.Subcontractors, err = s.companies.List(ctx, domain.CompanySubcontractor)
		return err
	})
	g.Go(func() (err error) {
		out.Routes, err = s.routes.List(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.ReferenceData{}, fmt.Errorf("service.ReferenceService.Export: %w", err)
	}
	return out, nil
}

// ImportResult counts what Import stored.
type ImportResult struct {
	Clients        int `json:"clients"`
	Subcontractors int `json:"subcontractors"`
	Routes         int `json:"routes"`
}

// Import merges an exported document into the stored reference data with
// the bulk save rules. Route client IDs follow clients that were merged
// into an existing company of the same name.
func (s *ReferenceService) Import(ctx context.Context, data domain.ReferenceData) (ImportResult, error) {
	if data.Version > domain.ReferenceDataVersion {
		return ImportResult{}, fmt.Errorf("%w: unsupported reference data version %d", domain.ErrValidation, data.Version)
	}

	clients, ids, err := s.bulkSaveCompanies(ctx, domain.CompanyClient, data.Clients)
	if err != nil {
		return ImportResult{}, fmt.Errorf("service.ReferenceService.Import: %w", err)
	}
	subs, err := s.BulkSaveCompanies(ctx, domain.CompanySubcontractor, data.Subcontractors)
	if err != nil {
		return ImportResult{}, fmt.Errorf("service.ReferenceService.Import: %w", err)
	}

	routes := make([]domain.Route, len(data.Routes))
	for i, r := range data.Routes {
		r.ClientIDs = slices.Clone(r.ClientIDs)
		for j, id := range r.ClientIDs {
			if mapped, ok := ids[id]; ok {
				r.ClientIDs[j] = mapped
			}
		}
		routes[i] = r
	}
	saved, err := s.BulkSaveRoutes(ctx, routes)
	if err != nil {
		return ImportResult{}, fmt.Errorf("service.ReferenceService.Import: %w", err)
	}

	res := ImportResult{Clients: len(clients), Subcontractors: len(subs), Routes: len(saved)}
	s.log.Info("reference data imported", "clients", res.Clients, "subcontractors", res.Subcontractors, "routes", res.Routes)
	return res, nil
}

// RelationLeg is the return half of a relation.
type RelationLeg struct {
	RouteName string
	StartDate *time.Time
	EndDate   *time.Time // suggested from the route when nil
	Notes     string
}

// RelationInput is one quick entry of an outbound trip and, optionally,
// the return trip of the same driver for the same client.
type RelationInput struct {
	DriverName           string
	ClientName           string
	RouteName            string
	StartDate            *time.Time
	EndDate              *time.Time // suggested from the route when nil
	Notes                string
	DocumentNumber       string
	AssignDocumentNumber bool
	Return               *RelationLeg
}

// PlanRelation turns a relation entry into the trips to add: the outbound
// leg, then the return leg when one is given. Missing unload dates are
// suggested from the route durations. The return leg never takes a
// document number.
func (s *ReferenceService) PlanRelation(ctx context.Context, in RelationInput) ([]domain.TripInput, error) {
	if strings.TrimSpace(in.DriverName) == "" {
		return nil, fmt.Errorf("%w: driver is required", domain.ErrValidation)
	}
	if in.StartDate == nil {
		return nil, fmt.Errorf("%w: start date is required", domain.ErrValidation)
	}

	outbound := domain.TripInput{
		DriverName:           in.DriverName,
		ClientName:           in.ClientName,
		RouteName:            in.RouteName,
		StartDate:            in.StartDate,
		EndDate:              in.EndDate,
		Leg:                  domain.LegOutbound,
		DocumentNumber:       in.DocumentNumber,
		Notes:                in.Notes,
		AssignDocumentNumber: in.AssignDocumentNumber,
	}
	if err := s.suggestMissingEnd(ctx, &outbound); err != nil {
		return nil, err
	}
	if err := outbound.Validate(); err != nil {
		return nil, err
	}
	out := []domain.TripInput{outbound}

	if ret := in.Return; ret != nil {
		if ret.StartDate == nil {
			return nil, fmt.Errorf("%w: return start date is required", domain.ErrValidation)
		}
		back := domain.TripInput{
			DriverName: in.DriverName,
			ClientName: in.ClientName,
			RouteName:  ret.RouteName,
			StartDate:  ret.StartDate,
			EndDate:    ret.EndDate,
			Leg:        domain.LegReturn,
			Notes:      ret.Notes,
		}
		if err := s.suggestMissingEnd(ctx, &back); err != nil {
			return nil, err
		}
		if err := back.Validate(); err != nil {
			return nil, err
		}
		out = append(out, back)
	}
	return out, nil
}

func (s *ReferenceService) suggestMissingEnd(ctx context.Context, in *domain.TripInput) error {
	if in.EndDate != nil || in.StartDate == nil {
		return nil
	}
	end, err := s.SuggestEnd(ctx, in.RouteName, *in.StartDate)
	if err != nil {
		return fmt.Errorf("service.ReferenceService.PlanRelation: %w", err)
	}
	in.EndDate = &end
	return nil
}

func validateCompany(c *domain.Company) error {
	if !c.Kind.Valid() {
		return fmt.Errorf("%w: unknown company kind %q", domain.ErrValidation, c.Kind)
	}
	c.Normalize()
	if c.Name == "" {
		return fmt.Errorf("%w: %s name is required", domain.ErrValidation, c.Kind)
	}
	return nil
}

// findByName returns the company called name, ignoring case, other than
// the one with ID ignore.
func findByName(cs []domain.Company, name string, ignore uuid.UUID) (domain.Company, bool) {
	for _, c := range cs {
		if (ignore == uuid.Nil || c.ID != ignore) && domain.SameName(c.Name, name) {
			return c, true
		}
	}
	return domain.Company{}, false
}

func nameContains(name, q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	return q == "" || strings.Contains(strings.ToLower(name), q)
}

// sortByName orders items by name in Bulgarian collation, ignoring case.
func sortByName[T any](items []T, name func(T) string) {
	// A Collator is not safe for concurrent use.
	c := collate.New(language.Bulgarian, collate.IgnoreCase)
	slices.SortStableFunc(items, func(a, b T) int { return c.CompareString(name(a), name(b)) })
}
