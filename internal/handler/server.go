// Package handler implements the HTTP handlers for the fleet schedule API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (trip.go, archive.go, fleet.go, etc.) but all share the same Server
// struct so they can access its dependencies.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/fleet-schedule/internal/domain"
	"github.com/pkordes/fleet-schedule/internal/service"
)

// ScheduleServicer defines the trip store operations the handlers depend on.
// Defining the interface here (in the consumer package) lets handler tests
// inject a mock without touching a repo or the cache.
type ScheduleServicer interface {
	Add(ctx context.Context, in domain.TripInput) (uuid.UUID, error)
	BulkAdd(ctx context.Context, ins []domain.TripInput) ([]uuid.UUID, error)
	Update(ctx context.Context, id uuid.UUID, patch domain.TripPatch) (domain.Trip, bool, error)
	UpdateArchived(ctx context.Context, id uuid.UUID, patch domain.TripPatch) (domain.Trip, bool, error)
	Remove(ctx context.Context, id uuid.UUID) error
	ArchiveByID(ctx context.Context, id uuid.UUID) (bool, error)
	UnarchiveByID(ctx context.Context, id uuid.UUID) (bool, error)
	ArchiveAuto(ctx context.Context, cutoffDays int) (int, error)
	ArchiveUntil(ctx context.Context, date time.Time) (int, error)
	Clone(ctx context.Context, id uuid.UUID) (uuid.UUID, error)

	List() []domain.Trip
	Archived() []domain.Trip
	Get(id uuid.UUID) (domain.Trip, error)
	IsArchived(id uuid.UUID) bool
	Past() []domain.Trip
	Upcoming() []domain.Trip
	PastCount() int
	PastSlice(p domain.Page) []domain.Trip
	PastSince(days int) []domain.Trip
	Conflicts(driver string, start time.Time, end *time.Time, exclude uuid.UUID) []domain.Trip
	DriverBusy(driver string) bool
	Summary(id uuid.UUID) (string, error)
	RecomputeStatuses() int
}

// FleetServicer defines the driver, vehicle and compliance operations.
type FleetServicer interface {
	ListDrivers(ctx context.Context) ([]domain.Driver, error)
	SaveDriver(ctx context.Context, d domain.Driver) (domain.Driver, error)
	DeleteDriver(ctx context.Context, id uuid.UUID) error
	ListVehicles(ctx context.Context) ([]domain.Vehicle, error)
	SaveVehicle(ctx context.Context, v domain.Vehicle) (domain.Vehicle, error)
	DeleteVehicle(ctx context.Context, id uuid.UUID) error
	Compliance(ctx context.Context) ([]domain.ComplianceItem, error)
	Alerts(ctx context.Context) ([]domain.ComplianceItem, error)
	Availability(ctx context.Context, busy service.BusyChecker) (service.Availability, error)
}

// ReferenceServicer defines the client, subcontractor and route operations
// and the quick relation entry.
type ReferenceServicer interface {
	ListCompanies(ctx context.Context, kind domain.CompanyKind, q string) ([]domain.Company, error)
	SaveCompany(ctx context.Context, c domain.Company) (domain.Company, error)
	DeleteCompany(ctx context.Context, kind domain.CompanyKind, id uuid.UUID) error
	BulkSaveCompanies(ctx context.Context, kind domain.CompanyKind, cs []domain.Company) ([]domain.Company, error)
	IsDuplicateName(ctx context.Context, kind domain.CompanyKind, name string, ignore uuid.UUID) (bool, error)

	ListRoutes(ctx context.Context, q string) ([]domain.Route, error)
	RoutesForClient(ctx context.Context, clientID uuid.UUID) ([]domain.Route, error)
	SaveRoute(ctx context.Context, r domain.Route) (domain.Route, error)
	DeleteRoute(ctx context.Context, id uuid.UUID) error
	BulkSaveRoutes(ctx context.Context, rs []domain.Route) ([]domain.Route, error)
	SuggestEnd(ctx context.Context, routeName string, start time.Time) (time.Time, error)

	Export(ctx context.Context) (domain.ReferenceData, error)
	Import(ctx context.Context, data domain.ReferenceData) (service.ImportResult, error)
	PlanRelation(ctx context.Context, in service.RelationInput) ([]domain.TripInput, error)
}

// Exporter builds the flat schedule export.
type Exporter interface {
	Export(coll domain.Collection) ([]domain.ExportRow, error)
}

// Deps are the collaborators of a Server. Realtime may be nil when the
// WebSocket endpoint is not served.
type Deps struct {
	Schedule  ScheduleServicer
	Fleet     FleetServicer
	Reference ReferenceServicer
	Numbers   service.DocumentNumbers
	Export    Exporter
	Realtime  http.Handler
	OpenAPI   []byte
	Clock     domain.Clock
}

// Server holds the handler dependencies.
type Server struct {
	schedule  ScheduleServicer
	fleet     FleetServicer
	reference ReferenceServicer
	numbers   service.DocumentNumbers
	export    Exporter
	realtime  http.Handler
	openAPI   []byte
	clock     domain.Clock
}

// NewServer constructs the Server with all its dependencies.
func NewServer(d Deps) *Server {
	if d.Clock == nil {
		d.Clock = domain.SystemClock
	}
	return &Server{
		schedule:  d.Schedule,
		fleet:     d.Fleet,
		reference: d.Reference,
		numbers:   d.Numbers,
		export:    d.Export,
		realtime:  d.Realtime,
		openAPI:   d.OpenAPI,
		clock:     d.Clock,
	}
}

// Routes returns the API router. Cross-cutting middleware (logging, CORS,
// body limits) is applied by the caller.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Route("/trips", func(r chi.Router) {
		r.Get("/", s.ListTrips)
		r.Post("/", s.CreateTrip)
		r.Post("/bulk", s.BulkCreateTrips)
		r.Post("/relation", s.CreateRelation)
		r.Get("/past", s.ListPastTrips)
		r.Get("/past/since", s.ListPastTripsSince)
		r.Get("/conflicts", s.GetConflicts)
		r.Post("/recompute", s.RecomputeStatuses)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetTrip)
			r.Patch("/", s.UpdateTrip)
			r.Delete("/", s.DeleteTrip)
			r.Post("/clone", s.CloneTrip)
			r.Post("/archive", s.ArchiveTrip)
			r.Get("/summary", s.GetTripSummary)
		})
	})

	r.Route("/archive", func(r chi.Router) {
		r.Get("/", s.ListArchive)
		r.Post("/auto", s.ArchiveAuto)
		r.Post("/until", s.ArchiveUntil)
		r.Route("/{id}", func(r chi.Router) {
			r.Patch("/", s.UpdateArchivedTrip)
			r.Post("/restore", s.RestoreTrip)
			r.Get("/status", s.GetArchiveStatus)
		})
	})

	r.Get("/timeline", s.GetTimeline)
	r.Get("/documents/next", s.GetNextDocumentNumber)

	r.Route("/drivers", func(r chi.Router) {
		r.Get("/", s.ListDrivers)
		r.Post("/", s.CreateDriver)
		r.Get("/availability", s.GetAvailability)
		r.Put("/{id}", s.PutDriver)
		r.Delete("/{id}", s.DeleteDriver)
	})
	r.Route("/vehicles", func(r chi.Router) {
		r.Get("/", s.ListVehicles)
		r.Post("/", s.CreateVehicle)
		r.Put("/{id}", s.PutVehicle)
		r.Delete("/{id}", s.DeleteVehicle)
	})
	r.Route("/clients", s.companyRoutes(domain.CompanyClient))
	r.Route("/subcontractors", s.companyRoutes(domain.CompanySubcontractor))
	r.Route("/routes", func(r chi.Router) {
		r.Get("/", s.ListRoutes)
		r.Post("/", s.CreateRoute)
		r.Post("/bulk", s.BulkCreateRoutes)
		r.Get("/suggest-end", s.GetSuggestedEnd)
		r.Put("/{id}", s.PutRoute)
		r.Delete("/{id}", s.DeleteRoute)
	})
	r.Get("/reference/export", s.GetReferenceExport)
	r.Post("/reference/import", s.ImportReference)

	r.Get("/compliance", s.GetCompliance)
	r.Get("/compliance/alerts", s.GetComplianceAlerts)

	r.Get("/export", s.GetExport)

	if s.realtime != nil {
		r.Handle("/ws", s.realtime)
	}
	return r
}
