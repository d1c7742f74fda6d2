package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/fleet-schedule/internal/domain"
	"github.com/pkordes/fleet-schedule/internal/repo"
)

// BusyChecker reports whether a driver is on a trip today.
// *ScheduleService satisfies it.
type BusyChecker interface {
	DriverBusy(driver string) bool
}

// FleetService manages drivers and vehicles and reports on their
// compliance documents. It also serves as the DriverDirectory of the
// schedule, caching each driver's company by name.
type FleetService struct {
	drivers   repo.DriverRepo
	vehicles  repo.VehicleRepo
	clock     domain.Clock
	threshold int
	log       *slog.Logger

	mu        sync.RWMutex
	companies map[string]string
	onChange  []func()
}

// NewFleetService constructs a FleetService. thresholdDays is the
// expiring-soon window; values below zero fall back to the default.
func NewFleetService(drivers repo.DriverRepo, vehicles repo.VehicleRepo, clock domain.Clock, thresholdDays int, log *slog.Logger) *FleetService {
	if clock == nil {
		clock = domain.SystemClock
	}
	if thresholdDays < 0 {
		thresholdDays = domain.DefaultExpiryThreshold
	}
	if log == nil {
		log = slog.Default()
	}
	return &FleetService{
		drivers:   drivers,
		vehicles:  vehicles,
		clock:     clock,
		threshold: thresholdDays,
		log:       log,
		companies: map[string]string{},
	}
}

var _ DriverDirectory = (*FleetService)(nil)

// CompanyOf implements DriverDirectory from the cache filled by Load and
// ListDrivers.
func (s *FleetService) CompanyOf(driverName string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.companies[driverName]
}

// OnDirectoryChange registers fn to run after the name to company mapping
// changed. It must be called before the service is shared.
func (s *FleetService) OnDirectoryChange(fn func()) {
	s.onChange = append(s.onChange, fn)
}

// Load fills the company cache from the driver repo. Call it before the
// schedule loads so trips are annotated from the start; the scheduler
// calls it again to pick up edits made elsewhere.
func (s *FleetService) Load(ctx context.Context) error {
	if _, err := s.ListDrivers(ctx); err != nil {
		return fmt.Errorf("service.FleetService.Load: %w", err)
	}
	return nil
}

// ListDrivers returns all drivers and refreshes the company cache.
func (s *FleetService) ListDrivers(ctx context.Context) ([]domain.Driver, error) {
	drivers, err := s.drivers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.FleetService.ListDrivers: %w", err)
	}
	companies := make(map[string]string, len(drivers))
	for _, d := range drivers {
		companies[d.Name] = d.Company
	}
	s.mu.Lock()
	changed := !maps.Equal(s.companies, companies)
	s.companies = companies
	s.mu.Unlock()

	if changed {
		for _, fn := range s.onChange {
			fn()
		}
	}
	return drivers, nil
}

// SaveDriver creates the driver when ID is uuid.Nil, otherwise overwrites it.
func (s *FleetService) SaveDriver(ctx context.Context, d domain.Driver) (domain.Driver, error) {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return domain.Driver{}, fmt.Errorf("%w: driver name is required", domain.ErrValidation)
	}
	d.DriverCardExpiry = dateCopy(d.DriverCardExpiry)
	d.ADRExpiry = dateCopy(d.ADRExpiry)

	saved, err := s.drivers.Upsert(ctx, d)
	if err != nil {
		return domain.Driver{}, fmt.Errorf("service.FleetService.SaveDriver: %w", err)
	}
	// A rename leaves the old name behind, so rebuild rather than patch.
	if _, err := s.ListDrivers(ctx); err != nil {
		s.log.Warn("refresh driver companies", "error", err)
	}
	return saved, nil
}

// DeleteDriver removes a driver. Trips keep the name; they only lose the
// company annotation.
func (s *FleetService) DeleteDriver(ctx context.Context, id uuid.UUID) error {
	if err := s.drivers.Delete(ctx, id); err != nil {
		return fmt.Errorf("service.FleetService.DeleteDriver: %w", err)
	}
	if _, err := s.ListDrivers(ctx); err != nil {
		s.log.Warn("refresh driver companies", "error", err)
	}
	return nil
}

// ListVehicles returns all tractors and tankers.
func (s *FleetService) ListVehicles(ctx context.Context) ([]domain.Vehicle, error) {
	vs, err := s.vehicles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.FleetService.ListVehicles: %w", err)
	}
	return vs, nil
}

// SaveVehicle creates the vehicle when ID is uuid.Nil, otherwise overwrites it.
func (s *FleetService) SaveVehicle(ctx context.Context, v domain.Vehicle) (domain.Vehicle, error) {
	v.Number = strings.ToUpper(strings.TrimSpace(v.Number))
	if v.Number == "" {
		return domain.Vehicle{}, fmt.Errorf("%w: registration number is required", domain.ErrValidation)
	}
	if v.Kind != domain.VehicleTractor && v.Kind != domain.VehicleTanker {
		return domain.Vehicle{}, fmt.Errorf("%w: vehicle kind must be tractor or tanker", domain.ErrValidation)
	}
	v.InsuranceExpiry = dateCopy(v.InsuranceExpiry)
	v.ADRExpiry = dateCopy(v.ADRExpiry)
	v.InspectionExpiry = dateCopy(v.InspectionExpiry)

	saved, err := s.vehicles.Upsert(ctx, v)
	if err != nil {
		return domain.Vehicle{}, fmt.Errorf("service.FleetService.SaveVehicle: %w", err)
	}
	return saved, nil
}

// DeleteVehicle removes a vehicle.
func (s *FleetService) DeleteVehicle(ctx context.Context, id uuid.UUID) error {
	if err := s.vehicles.Delete(ctx, id); err != nil {
		return fmt.Errorf("service.FleetService.DeleteVehicle: %w", err)
	}
	return nil
}

// Compliance classifies every compliance document of every driver and
// vehicle: driver card and ADR for drivers, insurance, ADR and inspection
// for vehicles.
func (s *FleetService) Compliance(ctx context.Context) ([]domain.ComplianceItem, error) {
	drivers, err := s.ListDrivers(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.FleetService.Compliance: %w", err)
	}
	vehicles, err := s.vehicles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.FleetService.Compliance: %w", err)
	}

	today := s.clock.Today()
	items := []domain.ComplianceItem{}
	add := func(id uuid.UUID, kind, name string, doc domain.Document, date *time.Time) {
		items = append(items, domain.ComplianceItem{
			OwnerID:   id,
			OwnerKind: kind,
			OwnerName: name,
			Document:  doc,
			Date:      date,
			Expiry:    domain.ClassifyExpiry(date, today, s.threshold),
		})
	}
	for _, d := range drivers {
		add(d.ID, "driver", d.Name, domain.DocDriverCard, d.DriverCardExpiry)
		add(d.ID, "driver", d.Name, domain.DocADR, d.ADRExpiry)
	}
	for _, v := range vehicles {
		kind := string(v.Kind)
		add(v.ID, kind, v.Number, domain.DocInsurance, v.InsuranceExpiry)
		add(v.ID, kind, v.Number, domain.DocADR, v.ADRExpiry)
		add(v.ID, kind, v.Number, domain.DocInspection, v.InspectionExpiry)
	}
	return items, nil
}

// Alerts returns the expired and expiring-soon items of Compliance, most
// urgent first.
func (s *FleetService) Alerts(ctx context.Context) ([]domain.ComplianceItem, error) {
	items, err := s.Compliance(ctx)
	if err != nil {
		return nil, err
	}
	items = slices.DeleteFunc(items, func(it domain.ComplianceItem) bool {
		return !it.Expiry.NeedsAttention()
	})
	slices.SortStableFunc(items, func(a, b domain.ComplianceItem) int {
		return cmp.Compare(a.Expiry.Days, b.Expiry.Days)
	})
	return items, nil
}

// DriverState is one driver's busy flag for today.
type DriverState struct {
	Name string `json:"name"`
	Busy bool   `json:"busy"`
}

// CompanyAvailability counts the busy and free drivers of one company.
type CompanyAvailability struct {
	Company string        `json:"company"`
	Busy    int           `json:"busy"`
	Free    int           `json:"free"`
	Drivers []DriverState `json:"drivers"`
}

// Availability is the busy/free overview of the dashboard: own drivers as
// one group, subcontractor drivers grouped by company.
type Availability struct {
	Own            CompanyAvailability   `json:"own"`
	Subcontractors []CompanyAvailability `json:"subcontractors"`
}

// Availability reports which drivers are on a trip today according to busy.
func (s *FleetService) Availability(ctx context.Context, busy BusyChecker) (Availability, error) {
	drivers, err := s.ListDrivers(ctx)
	if err != nil {
		return Availability{}, fmt.Errorf("service.FleetService.Availability: %w", err)
	}

	out := Availability{Own: CompanyAvailability{Drivers: []DriverState{}}}
	subs := map[string]*CompanyAvailability{}
	for _, d := range drivers {
		group := &out.Own
		if !d.IsOwn {
			group = subs[d.Company]
			if group == nil {
				group = &CompanyAvailability{Company: d.Company, Drivers: []DriverState{}}
				subs[d.Company] = group
			}
		}
		st := DriverState{Name: d.Name, Busy: busy.DriverBusy(d.Name)}
		if st.Busy {
			group.Busy++
		} else {
			group.Free++
		}
		group.Drivers = append(group.Drivers, st)
	}

	out.Subcontractors = make([]CompanyAvailability, 0, len(subs))
	for _, g := range subs {
		out.Subcontractors = append(out.Subcontractors, *g)
	}
	slices.SortFunc(out.Subcontractors, func(a, b CompanyAvailability) int {
		return strings.Compare(a.Company, b.Company)
	})
	return out, nil
}
