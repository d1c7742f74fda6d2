package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/fleet-schedule/internal/domain"
	"github.com/pkordes/fleet-schedule/internal/handler"
	"github.com/pkordes/fleet-schedule/internal/service"
)

// mockSchedule is a test double for handler.ScheduleServicer.
// Set only the method fields your test needs.
type mockSchedule struct {
	add            func(ctx context.Context, in domain.TripInput) (uuid.UUID, error)
	bulkAdd        func(ctx context.Context, ins []domain.TripInput) ([]uuid.UUID, error)
	update         func(ctx context.Context, id uuid.UUID, p domain.TripPatch) (domain.Trip, bool, error)
	updateArchived func(ctx context.Context, id uuid.UUID, p domain.TripPatch) (domain.Trip, bool, error)
	remove         func(ctx context.Context, id uuid.UUID) error
	archiveByID    func(ctx context.Context, id uuid.UUID) (bool, error)
	unarchiveByID  func(ctx context.Context, id uuid.UUID) (bool, error)
	archiveAuto    func(ctx context.Context, cutoffDays int) (int, error)
	archiveUntil   func(ctx context.Context, date time.Time) (int, error)
	clone          func(ctx context.Context, id uuid.UUID) (uuid.UUID, error)

	list       func() []domain.Trip
	archived   func() []domain.Trip
	get        func(id uuid.UUID) (domain.Trip, error)
	isArchived func(id uuid.UUID) bool
	past       func() []domain.Trip
	upcoming   func() []domain.Trip
	pastCount  func() int
	pastSlice  func(p domain.Page) []domain.Trip
	pastSince  func(days int) []domain.Trip
	conflicts  func(driver string, start time.Time, end *time.Time, exclude uuid.UUID) []domain.Trip
	driverBusy func(driver string) bool
	summary    func(id uuid.UUID) (string, error)
	recompute  func() int
}

func (m *mockSchedule) Add(ctx context.Context, in domain.TripInput) (uuid.UUID, error) {
	return m.add(ctx, in)
}
func (m *mockSchedule) BulkAdd(ctx context.Context, ins []domain.TripInput) ([]uuid.UUID, error) {
	return m.bulkAdd(ctx, ins)
}
func (m *mockSchedule) Update(ctx context.Context, id uuid.UUID, p domain.TripPatch) (domain.Trip, bool, error) {
	return m.update(ctx, id, p)
}
func (m *mockSchedule) UpdateArchived(ctx context.Context, id uuid.UUID, p domain.TripPatch) (domain.Trip, bool, error) {
	return m.updateArchived(ctx, id, p)
}
func (m *mockSchedule) Remove(ctx context.Context, id uuid.UUID) error { return m.remove(ctx, id) }
func (m *mockSchedule) ArchiveByID(ctx context.Context, id uuid.UUID) (bool, error) {
	return m.archiveByID(ctx, id)
}
func (m *mockSchedule) UnarchiveByID(ctx context.Context, id uuid.UUID) (bool, error) {
	return m.unarchiveByID(ctx, id)
}
func (m *mockSchedule) ArchiveAuto(ctx context.Context, cutoffDays int) (int, error) {
	return m.archiveAuto(ctx, cutoffDays)
}
func (m *mockSchedule) ArchiveUntil(ctx context.Context, date time.Time) (int, error) {
	return m.archiveUntil(ctx, date)
}
func (m *mockSchedule) Clone(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	return m.clone(ctx, id)
}
func (m *mockSchedule) List() []domain.Trip                   { return m.list() }
func (m *mockSchedule) Archived() []domain.Trip               { return m.archived() }
func (m *mockSchedule) Get(id uuid.UUID) (domain.Trip, error) { return m.get(id) }
func (m *mockSchedule) IsArchived(id uuid.UUID) bool          { return m.isArchived(id) }
func (m *mockSchedule) Past() []domain.Trip                   { return m.past() }
func (m *mockSchedule) Upcoming() []domain.Trip               { return m.upcoming() }
func (m *mockSchedule) PastCount() int                        { return m.pastCount() }
func (m *mockSchedule) PastSlice(p domain.Page) []domain.Trip { return m.pastSlice(p) }
func (m *mockSchedule) PastSince(days int) []domain.Trip      { return m.pastSince(days) }
func (m *mockSchedule) DriverBusy(driver string) bool         { return m.driverBusy(driver) }
func (m *mockSchedule) Summary(id uuid.UUID) (string, error)  { return m.summary(id) }
func (m *mockSchedule) RecomputeStatuses() int                { return m.recompute() }
func (m *mockSchedule) Conflicts(driver string, start time.Time, end *time.Time, exclude uuid.UUID) []domain.Trip {
	return m.conflicts(driver, start, end, exclude)
}

// compile-time check: mockSchedule must satisfy handler.ScheduleServicer.
var _ handler.ScheduleServicer = (*mockSchedule)(nil)

// mockFleet is a test double for handler.FleetServicer.
type mockFleet struct {
	listDrivers   func(ctx context.Context) ([]domain.Driver, error)
	saveDriver    func(ctx context.Context, d domain.Driver) (domain.Driver, error)
	deleteDriver  func(ctx context.Context, id uuid.UUID) error
	listVehicles  func(ctx context.Context) ([]domain.Vehicle, error)
	saveVehicle   func(ctx context.Context, v domain.Vehicle) (domain.Vehicle, error)
	deleteVehicle func(ctx context.Context, id uuid.UUID) error
	compliance    func(ctx context.Context) ([]domain.ComplianceItem, error)
	alerts        func(ctx context.Context) ([]domain.ComplianceItem, error)
	availability  func(ctx context.Context, busy service.BusyChecker) (service.Availability, error)
}

func (m *mockFleet) ListDrivers(ctx context.Context) ([]domain.Driver, error) {
	return m.listDrivers(ctx)
}
func (m *mockFleet) SaveDriver(ctx context.Context, d domain.Driver) (domain.Driver, error) {
	return m.saveDriver(ctx, d)
}
func (m *mockFleet) DeleteDriver(ctx context.Context, id uuid.UUID) error {
	return m.deleteDriver(ctx, id)
}
func (m *mockFleet) ListVehicles(ctx context.Context) ([]domain.Vehicle, error) {
	return m.listVehicles(ctx)
}
func (m *mockFleet) SaveVehicle(ctx context.Context, v domain.Vehicle) (domain.Vehicle, error) {
	return m.saveVehicle(ctx, v)
}
func (m *mockFleet) DeleteVehicle(ctx context.Context, id uuid.UUID) error {
	return m.deleteVehicle(ctx, id)
}
func (m *mockFleet) Compliance(ctx context.Context) ([]domain.ComplianceItem, error) {
	return m.compliance(ctx)
}
func (m *mockFleet) Alerts(ctx context.Context) ([]domain.ComplianceItem, error) {
	return m.alerts(ctx)
}
func (m *mockFleet) Availability(ctx context.Context, busy service.BusyChecker) (service.Availability, error) {
	return m.availability(ctx, busy)
}

var _ handler.FleetServicer = (*mockFleet)(nil)

// mockReference is a test double for handler.ReferenceServicer.
type mockReference struct {
	listCompanies     func(ctx context.Context, kind domain.CompanyKind, q string) ([]domain.Company, error)
	saveCompany       func(ctx context.Context, c domain.Company) (domain.Company, error)
	deleteCompany     func(ctx context.Context, kind domain.CompanyKind, id uuid.UUID) error
	bulkSaveCompanies func(ctx context.Context, kind domain.CompanyKind, cs []domain.Company) ([]domain.Company, error)
	isDuplicateName   func(ctx context.Context, kind domain.CompanyKind, name string, ignore uuid.UUID) (bool, error)
	listRoutes        func(ctx context.Context, q string) ([]domain.Route, error)
	routesForClient   func(ctx context.Context, clientID uuid.UUID) ([]domain.Route, error)
	saveRoute         func(ctx context.Context, r domain.Route) (domain.Route, error)
	deleteRoute       func(ctx context.Context, id uuid.UUID) error
	bulkSaveRoutes    func(ctx context.Context, rs []domain.Route) ([]domain.Route, error)
	suggestEnd        func(ctx context.Context, routeName string, start time.Time) (time.Time, error)
	export            func(ctx context.Context) (domain.ReferenceData, error)
	importData        func(ctx context.Context, data domain.ReferenceData) (service.ImportResult, error)
	planRelation      func(ctx context.Context, in service.RelationInput) ([]domain.TripInput, error)
}

func (m *mockReference) ListCompanies(ctx context.Context, kind domain.CompanyKind, q string) ([]domain.Company, error) {
	return m.listCompanies(ctx, kind, q)
}
func (m *mockReference) SaveCompany(ctx context.Context, c domain.Company) (domain.Company, error) {
	return m.saveCompany(ctx, c)
}
func (m *mockReference) DeleteCompany(ctx context.Context, kind domain.CompanyKind, id uuid.UUID) error {
	return m.deleteCompany(ctx, kind, id)
}
func (m *mockReference) BulkSaveCompanies(ctx context.Context, kind domain.CompanyKind, cs []domain.Company) ([]domain.Company, error) {
	return m.bulkSaveCompanies(ctx, kind, cs)
}
func (m *mockReference) IsDuplicateName(ctx context.Context, kind domain.CompanyKind, name string, ignore uuid.UUID) (bool, error) {
	return m.isDuplicateName(ctx, kind, name, ignore)
}
func (m *mockReference) ListRoutes(ctx context.Context, q string) ([]domain.Route, error) {
	return m.listRoutes(ctx, q)
}
func (m *mockReference) RoutesForClient(ctx context.Context, clientID uuid.UUID) ([]domain.Route, error) {
	return m.routesForClient(ctx, clientID)
}
func (m *mockReference) SaveRoute(ctx context.Context, r domain.Route) (domain.Route, error) {
	return m.saveRoute(ctx, r)
}
func (m *mockReference) DeleteRoute(ctx context.Context, id uuid.UUID) error {
	return m.deleteRoute(ctx, id)
}
func (m *mockReference) BulkSaveRoutes(ctx context.Context, rs []domain.Route) ([]domain.Route, error) {
	return m.bulkSaveRoutes(ctx, rs)
}
func (m *mockReference) SuggestEnd(ctx context.Context, routeName string, start time.Time) (time.Time, error) {
	return m.suggestEnd(ctx, routeName, start)
}
func (m *mockReference) Export(ctx context.Context) (domain.ReferenceData, error) {
	return m.export(ctx)
}
func (m *mockReference) Import(ctx context.Context, data domain.ReferenceData) (service.ImportResult, error) {
	return m.importData(ctx, data)
}
func (m *mockReference) PlanRelation(ctx context.Context, in service.RelationInput) ([]domain.TripInput, error) {
	return m.planRelation(ctx, in)
}

var _ handler.ReferenceServicer = (*mockReference)(nil)

// mockExporter is a test double for handler.Exporter.
type mockExporter struct {
	export func(coll domain.Collection) ([]domain.ExportRow, error)
}

func (m *mockExporter) Export(coll domain.Collection) ([]domain.ExportRow, error) {
	return m.export(coll)
}

var _ handler.Exporter = (*mockExporter)(nil)

// mockNumbers is a test double for service.DocumentNumbers.
type mockNumbers struct {
	next func(ctx context.Context, date time.Time, leg domain.Leg, commit bool) (string, error)
}

func (m *mockNumbers) Next(ctx context.Context, date time.Time, leg domain.Leg, commit bool) (string, error) {
	return m.next(ctx, date, leg, commit)
}

var _ service.DocumentNumbers = (*mockNumbers)(nil)

// ---- helpers ---------------------------------------------------------------

// today is the date every test server treats as today.
var today = time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC)

// newHTTPHandler wires a Server with the given mocks into its chi router.
// This mirrors how main.go wires it in production.
func newHTTPHandler(d handler.Deps) http.Handler {
	d.Clock = func() time.Time { return today }
	return handler.NewServer(d).Routes()
}

func tripFixture() domain.Trip {
	start := time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 9, 12, 0, 0, 0, 0, time.UTC)
	return domain.Trip{
		ID:             uuid.New(),
		DriverName:     "Ivan",
		DriverCompany:  "Petrov Transport",
		ClientName:     "Lukoil",
		RouteName:      "Burgas - Sofia",
		StartDate:      &start,
		EndDate:        &end,
		DocumentNumber: "12/10.09",
		Status:         domain.StatusInProgress,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}
