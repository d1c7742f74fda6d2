// Package service contains the business logic of the fleet schedule.
// Services validate inputs, enforce business rules, and orchestrate repo calls.
// No SQL or Firestore code lives here; services depend on repo interfaces.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pkordes/fleet-schedule/internal/domain"
	"github.com/pkordes/fleet-schedule/internal/repo"
)

// DriverDirectory resolves a driver name to the company the driver works
// for. Unknown names resolve to "".
type DriverDirectory interface {
	CompanyOf(driverName string) string
}

// SnapshotObserver receives the full, ordered contents of a collection after
// the cached copy of it changed.
type SnapshotObserver func(coll domain.Collection, trips []domain.Trip)

// ScheduleService is the trip store: an in-memory copy of the live and
// archived trip sets, kept in step with a repo.TripRepo.
//
// The cache only changes after the repo confirms a write, or when a snapshot
// from the change feed replaces a set wholesale. Status and DriverCompany are
// derived, never stored: they are recomputed whenever a trip enters the cache
// and again on every read.
type ScheduleService struct {
	repo    repo.TripRepo
	numbers DocumentNumbers
	drivers DriverDirectory
	clock   domain.Clock
	log     *slog.Logger

	// writeMu serialises mutations so a check against the cache and the
	// write that depends on it are not interleaved with another mutation.
	writeMu sync.Mutex

	mu      sync.RWMutex
	live    map[uuid.UUID]domain.Trip
	archive map[uuid.UUID]domain.Trip

	obsMu   sync.Mutex
	obs     map[int]SnapshotObserver
	nextObs int
}

// NewScheduleService constructs an empty trip store; call Load to fill it.
// numbers and drivers may be nil: documents are then never auto-numbered and
// DriverCompany stays empty. A nil clock means the system clock.
func NewScheduleService(r repo.TripRepo, numbers DocumentNumbers, drivers DriverDirectory, clock domain.Clock, log *slog.Logger) *ScheduleService {
	if clock == nil {
		clock = domain.SystemClock
	}
	if log == nil {
		log = slog.Default()
	}
	return &ScheduleService{
		repo:    r,
		numbers: numbers,
		drivers: drivers,
		clock:   clock,
		log:     log,
		live:    map[uuid.UUID]domain.Trip{},
		archive: map[uuid.UUID]domain.Trip{},
		obs:     map[int]SnapshotObserver{},
	}
}

// Load reads both collections from the repo and replaces the cache.
func (s *ScheduleService) Load(ctx context.Context) error {
	var live, archived []domain.Trip
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		live, err = s.repo.List(gctx, domain.CollectionLive)
		return err
	})
	g.Go(func() (err error) {
		archived, err = s.repo.List(gctx, domain.CollectionArchive)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("service.ScheduleService.Load: %w", err)
	}
	s.ApplySnapshot(domain.CollectionArchive, archived)
	s.ApplySnapshot(domain.CollectionLive, live)
	s.log.Info("schedule loaded", "live", len(live), "archived", len(archived))
	return nil
}

// Add validates in and stores a new live trip. It returns the minted ID.
func (s *ScheduleService) Add(ctx context.Context, in domain.TripInput) (uuid.UUID, error) {
	if err := in.Validate(); err != nil {
		return uuid.Nil, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	id, err := s.add(ctx, in)
	if err != nil {
		return uuid.Nil, fmt.Errorf("service.ScheduleService.Add: %w", err)
	}
	return id, nil
}

// BulkAdd validates every input before storing any of them. On a
// persistence failure it returns the IDs stored so far with the error.
func (s *ScheduleService) BulkAdd(ctx context.Context, ins []domain.TripInput) ([]uuid.UUID, error) {
	for i, in := range ins {
		if err := in.Validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ids := make([]uuid.UUID, 0, len(ins))
	for i, in := range ins {
		id, err := s.add(ctx, in)
		if err != nil {
			return ids, fmt.Errorf("service.ScheduleService.BulkAdd: item %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *ScheduleService) add(ctx context.Context, in domain.TripInput) (uuid.UUID, error) {
	trip := domain.Trip{
		ID:             uuid.New(),
		DriverName:     in.DriverName,
		ClientName:     in.ClientName,
		RouteName:      in.RouteName,
		StartDate:      dateCopy(in.StartDate),
		EndDate:        dateCopy(in.EndDate),
		Leg:            in.Leg,
		DocumentNumber: in.DocumentNumber,
		Notes:          in.Notes,
	}
	if in.AssignDocumentNumber && trip.DocumentNumber == "" && s.numbers != nil {
		if trip.StartDate == nil {
			return uuid.Nil, fmt.Errorf("%w: a document number needs a start date", domain.ErrValidation)
		}
		n, err := s.numbers.Next(ctx, *trip.StartDate, trip.Leg, true)
		if err != nil {
			return uuid.Nil, err
		}
		trip.DocumentNumber = n
	}

	saved, err := s.repo.Upsert(ctx, domain.CollectionLive, s.derive(trip, s.clock.Today()))
	if err != nil {
		s.log.Error("add trip", "id", trip.ID, "error", err)
		return uuid.Nil, err
	}
	s.put(domain.CollectionLive, saved)
	return saved.ID, nil
}

// Update merges patch into the live trip id and returns the result.
// Archived trips are not reachable here; see UpdateArchived.
// An unknown id is a no-op: found is false and err is nil.
func (s *ScheduleService) Update(ctx context.Context, id uuid.UUID, patch domain.TripPatch) (domain.Trip, bool, error) {
	t, found, err := s.update(ctx, domain.CollectionLive, id, patch)
	if err != nil {
		return domain.Trip{}, found, fmt.Errorf("service.ScheduleService.Update: %w", err)
	}
	return t, found, nil
}

// UpdateArchived edits an archived trip in place without restoring it.
// Like Update, an id that is not archived is a no-op reported by found.
func (s *ScheduleService) UpdateArchived(ctx context.Context, id uuid.UUID, patch domain.TripPatch) (domain.Trip, bool, error) {
	t, found, err := s.update(ctx, domain.CollectionArchive, id, patch)
	if err != nil {
		return domain.Trip{}, found, fmt.Errorf("service.ScheduleService.UpdateArchived: %w", err)
	}
	return t, found, nil
}

func (s *ScheduleService) update(ctx context.Context, coll domain.Collection, id uuid.UUID, patch domain.TripPatch) (domain.Trip, bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur, ok := s.lookup(coll, id)
	if !ok {
		return domain.Trip{}, false, nil
	}
	next, err := patch.Apply(cur)
	if err != nil {
		return domain.Trip{}, true, err
	}
	saved, err := s.repo.Upsert(ctx, coll, s.derive(next, s.clock.Today()))
	if err != nil {
		s.log.Error("update trip", "id", id, "collection", coll, "error", err)
		return domain.Trip{}, true, err
	}
	return s.put(coll, saved), true, nil
}

// Remove deletes the trip from the live set and, in case it was ever
// duplicated, from the archive too.
// Returns domain.ErrNotFound if it is in neither.
func (s *ScheduleService) Remove(ctx context.Context, id uuid.UUID) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, inLive := s.lookup(domain.CollectionLive, id)
	_, inArchive := s.lookup(domain.CollectionArchive, id)
	if !inLive && !inArchive {
		return fmt.Errorf("service.ScheduleService.Remove: %w", domain.ErrNotFound)
	}

	for _, coll := range []domain.Collection{domain.CollectionLive, domain.CollectionArchive} {
		err := s.repo.Delete(ctx, coll, id)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.log.Error("remove trip", "id", id, "collection", coll, "error", err)
			return fmt.Errorf("service.ScheduleService.Remove: %w", err)
		}
		s.drop(coll, id)
	}
	return nil
}

// ArchiveByID moves a live trip into the archive and stamps ArchivedAt.
// It reports whether a move happened: a trip already archived, or one not in
// the live set, is left alone.
func (s *ScheduleService) ArchiveByID(ctx context.Context, id uuid.UUID) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	moved, err := s.archiveOne(ctx, id)
	if err != nil {
		return false, fmt.Errorf("service.ScheduleService.ArchiveByID: %w", err)
	}
	return moved, nil
}

func (s *ScheduleService) archiveOne(ctx context.Context, id uuid.UUID) (bool, error) {
	if _, ok := s.lookup(domain.CollectionArchive, id); ok {
		return false, nil
	}
	t, ok := s.lookup(domain.CollectionLive, id)
	if !ok {
		return false, nil
	}
	at := s.clock().UTC()
	t.ArchivedAt = &at

	moved, err := s.repo.Move(ctx, t, domain.CollectionLive, domain.CollectionArchive)
	if err != nil {
		s.log.Error("archive trip", "id", id, "error", err)
		return false, err
	}
	s.transfer(domain.CollectionLive, domain.CollectionArchive, moved)
	return true, nil
}

// UnarchiveByID moves an archived trip back into the live set, clearing
// ArchivedAt. It reports whether a move happened.
func (s *ScheduleService) UnarchiveByID(ctx context.Context, id uuid.UUID) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, ok := s.lookup(domain.CollectionLive, id); ok {
		return false, nil
	}
	t, ok := s.lookup(domain.CollectionArchive, id)
	if !ok {
		return false, nil
	}
	t.ArchivedAt = nil

	moved, err := s.repo.Move(ctx, s.derive(t, s.clock.Today()), domain.CollectionArchive, domain.CollectionLive)
	if err != nil {
		s.log.Error("unarchive trip", "id", id, "error", err)
		return false, fmt.Errorf("service.ScheduleService.UnarchiveByID: %w", err)
	}
	s.transfer(domain.CollectionArchive, domain.CollectionLive, moved)
	return true, nil
}

// ArchiveAuto archives every live trip that is Done and ended at least
// cutoffDays ago. It returns how many trips were moved; running it again
// without the date changing moves none.
func (s *ScheduleService) ArchiveAuto(ctx context.Context, cutoffDays int) (int, error) {
	if cutoffDays < 0 {
		return 0, fmt.Errorf("%w: cutoff days must not be negative", domain.ErrValidation)
	}
	today := s.clock.Today()
	n, err := s.archiveWhere(ctx, func(end time.Time) bool {
		return domain.DaysBetween(end, today) >= cutoffDays
	})
	if err != nil {
		return n, fmt.Errorf("service.ScheduleService.ArchiveAuto: %w", err)
	}
	return n, nil
}

// ArchiveUntil archives every live trip that is Done and ended on or before
// date.
func (s *ScheduleService) ArchiveUntil(ctx context.Context, date time.Time) (int, error) {
	cutoff := domain.DateOf(date)
	n, err := s.archiveWhere(ctx, func(end time.Time) bool {
		return !end.After(cutoff)
	})
	if err != nil {
		return n, fmt.Errorf("service.ScheduleService.ArchiveUntil: %w", err)
	}
	return n, nil
}

func (s *ScheduleService) archiveWhere(ctx context.Context, ended func(end time.Time) bool) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	today := s.clock.Today()
	var ids []uuid.UUID
	for _, t := range s.snapshot(domain.CollectionLive, today) {
		end := t.EffectiveEnd()
		if t.Status == domain.StatusDone && end != nil && ended(*end) {
			ids = append(ids, t.ID)
		}
	}

	moved := 0
	for _, id := range ids {
		ok, err := s.archiveOne(ctx, id)
		if err != nil {
			return moved, err
		}
		if ok {
			moved++
		}
	}
	if moved > 0 {
		s.log.Info("trips archived", "count", moved)
	}
	return moved, nil
}

// Clone creates a new live trip from the live trip id, keeping client,
// route, leg and dates. Driver, document number and notes start empty; it
// is how the return leg of a pair is usually created.
func (s *ScheduleService) Clone(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	src, ok := s.lookup(domain.CollectionLive, id)
	if !ok {
		return uuid.Nil, fmt.Errorf("service.ScheduleService.Clone: %w", domain.ErrNotFound)
	}
	cp := domain.Trip{
		ID:         uuid.New(),
		ClientName: src.ClientName,
		RouteName:  src.RouteName,
		StartDate:  dateCopy(src.StartDate),
		EndDate:    dateCopy(src.EndDate),
		Leg:        src.Leg,
	}
	saved, err := s.repo.Upsert(ctx, domain.CollectionLive, s.derive(cp, s.clock.Today()))
	if err != nil {
		s.log.Error("clone trip", "source", id, "error", err)
		return uuid.Nil, fmt.Errorf("service.ScheduleService.Clone: %w", err)
	}
	s.put(domain.CollectionLive, saved)
	return saved.ID, nil
}

// List returns the live trips ordered by start date, undated trips last.
func (s *ScheduleService) List() []domain.Trip {
	return s.snapshot(domain.CollectionLive, s.clock.Today())
}

// Archived returns the archived trips, most recently ended first.
func (s *ScheduleService) Archived() []domain.Trip {
	return s.snapshot(domain.CollectionArchive, s.clock.Today())
}

// Get returns the trip with the given ID from either set; ArchivedAt tells
// which. Returns domain.ErrNotFound if neither set has it.
func (s *ScheduleService) Get(id uuid.UUID) (domain.Trip, error) {
	today := s.clock.Today()
	for _, coll := range []domain.Collection{domain.CollectionLive, domain.CollectionArchive} {
		if t, ok := s.lookup(coll, id); ok {
			return s.derive(t, today), nil
		}
	}
	return domain.Trip{}, domain.ErrNotFound
}

// IsArchived reports whether the archive set holds id.
func (s *ScheduleService) IsArchived(id uuid.UUID) bool {
	_, ok := s.lookup(domain.CollectionArchive, id)
	return ok
}

// Past returns the live trips that ended before today, most recent first.
// Every live trip is in exactly one of Past and Upcoming.
func (s *ScheduleService) Past() []domain.Trip {
	past, _ := s.partition()
	return past
}

// Upcoming returns the live trips ending today or later, and undated trips,
// ordered by start date.
func (s *ScheduleService) Upcoming() []domain.Trip {
	_, upcoming := s.partition()
	return upcoming
}

// PastCount returns len(Past()).
func (s *ScheduleService) PastCount() int {
	return len(s.Past())
}

// PastSlice returns one page of Past.
func (s *ScheduleService) PastSlice(p domain.Page) []domain.Trip {
	return domain.Slice(s.Past(), p)
}

// PastSince returns the past trips that ended within the last days days,
// measured back from now: a trip that ended exactly days days ago has
// already dropped out.
func (s *ScheduleService) PastSince(days int) []domain.Trip {
	cutoff := domain.AddDays(s.clock.Today(), -days)
	out := []domain.Trip{}
	for _, t := range s.Past() {
		if t.EffectiveEnd().After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

func (s *ScheduleService) partition() (past, upcoming []domain.Trip) {
	today := s.clock.Today()
	past, upcoming = []domain.Trip{}, []domain.Trip{}
	for _, t := range s.snapshot(domain.CollectionLive, today) {
		if end := t.EffectiveEnd(); end != nil && end.Before(today) {
			past = append(past, t)
		} else {
			upcoming = append(upcoming, t)
		}
	}
	slices.SortStableFunc(past, byEndDesc)
	return past, upcoming
}

// Conflicts returns the live trips of driver overlapping [start, end],
// leaving out the trip exclude (uuid.Nil excludes nothing).
func (s *ScheduleService) Conflicts(driver string, start time.Time, end *time.Time, exclude uuid.UUID) []domain.Trip {
	trips := s.List()
	trips = slices.DeleteFunc(trips, func(t domain.Trip) bool { return t.ID == exclude })
	return domain.Conflicts(driver, start, end, trips)
}

// DriverBusy reports whether driver has a live trip covering today.
func (s *ScheduleService) DriverBusy(driver string) bool {
	return domain.IsDriverBusy(driver, s.clock.Today(), s.List())
}

// Summary returns the clipboard text of trip id.
func (s *ScheduleService) Summary(id uuid.UUID) (string, error) {
	t, err := s.Get(id)
	if err != nil {
		return "", fmt.Errorf("service.ScheduleService.Summary: %w", err)
	}
	return t.Summary(), nil
}

// RecomputeStatuses re-derives every live trip for today, as after the date
// rolls over or a client regains focus. It returns how many trips changed;
// observers are notified only when some did.
func (s *ScheduleService) RecomputeStatuses() int {
	today := s.clock.Today()
	changed := 0

	s.mu.Lock()
	for id, t := range s.live {
		next := s.derive(t, today)
		if next.Status != t.Status || next.DriverCompany != t.DriverCompany {
			s.live[id] = next
			changed++
		}
	}
	s.mu.Unlock()

	if changed > 0 {
		s.notify(domain.CollectionLive)
	}
	return changed
}

// ApplySnapshot replaces the cached copy of coll with trips, as delivered
// by the change feed. Nothing from the previous cache is merged in. IDs in
// the snapshot are dropped from the other set, so a trip seen moving between
// collections is never cached in both.
func (s *ScheduleService) ApplySnapshot(coll domain.Collection, trips []domain.Trip) {
	today := s.clock.Today()
	next := make(map[uuid.UUID]domain.Trip, len(trips))
	for _, t := range trips {
		next[t.ID] = s.derive(t, today)
	}

	other := otherCollection(coll)
	otherChanged := false

	s.mu.Lock()
	*s.set(coll) = next
	for id := range next {
		if _, ok := (*s.set(other))[id]; ok {
			delete(*s.set(other), id)
			otherChanged = true
		}
	}
	s.mu.Unlock()

	s.notify(coll)
	if otherChanged {
		s.notify(other)
	}
}

// Subscribe registers fn for cache changes and returns a function that
// unregisters it.
func (s *ScheduleService) Subscribe(fn SnapshotObserver) (cancel func()) {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.obs[id] = fn
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.obs, id)
		s.obsMu.Unlock()
	}
}

// ---- cache helpers ---------------------------------------------------------

// set returns the map backing coll. Callers hold mu.
func (s *ScheduleService) set(coll domain.Collection) *map[uuid.UUID]domain.Trip {
	if coll == domain.CollectionArchive {
		return &s.archive
	}
	return &s.live
}

func (s *ScheduleService) lookup(coll domain.Collection, id uuid.UUID) (domain.Trip, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := (*s.set(coll))[id]
	return t, ok
}

// put caches t in coll after a confirmed write and returns the cached value.
func (s *ScheduleService) put(coll domain.Collection, t domain.Trip) domain.Trip {
	t = s.derive(t, s.clock.Today())
	s.mu.Lock()
	(*s.set(coll))[t.ID] = t
	s.mu.Unlock()
	s.notify(coll)
	return t
}

func (s *ScheduleService) drop(coll domain.Collection, id uuid.UUID) {
	s.mu.Lock()
	_, ok := (*s.set(coll))[id]
	delete(*s.set(coll), id)
	s.mu.Unlock()
	if ok {
		s.notify(coll)
	}
}

// transfer records a confirmed move of t from one set to the other.
func (s *ScheduleService) transfer(from, to domain.Collection, t domain.Trip) {
	t = s.derive(t, s.clock.Today())
	s.mu.Lock()
	delete(*s.set(from), t.ID)
	(*s.set(to))[t.ID] = t
	s.mu.Unlock()
	s.notify(from)
	s.notify(to)
}

// snapshot returns coll as an ordered slice, freshly derived for today.
func (s *ScheduleService) snapshot(coll domain.Collection, today time.Time) []domain.Trip {
	s.mu.RLock()
	out := make([]domain.Trip, 0, len(*s.set(coll)))
	for _, t := range *s.set(coll) {
		out = append(out, s.derive(t, today))
	}
	s.mu.RUnlock()

	if coll == domain.CollectionArchive {
		slices.SortFunc(out, byEndDesc)
	} else {
		slices.SortFunc(out, byStart)
	}
	return out
}

func (s *ScheduleService) notify(coll domain.Collection) {
	s.obsMu.Lock()
	fns := make([]SnapshotObserver, 0, len(s.obs))
	for _, fn := range s.obs {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()
	if len(fns) == 0 {
		return
	}

	trips := s.snapshot(coll, s.clock.Today())
	for _, fn := range fns {
		fn(coll, trips)
	}
}

func (s *ScheduleService) derive(t domain.Trip, today time.Time) domain.Trip {
	t = t.WithStatus(today)
	t.DriverCompany = ""
	if s.drivers != nil && t.DriverName != "" {
		t.DriverCompany = s.drivers.CompanyOf(t.DriverName)
	}
	return t
}

func otherCollection(c domain.Collection) domain.Collection {
	if c == domain.CollectionArchive {
		return domain.CollectionLive
	}
	return domain.CollectionArchive
}

func dateCopy(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return domain.DatePtr(domain.DateOf(*t))
}

// byStart orders by start date with undated trips last. Ties fall back to
// creation time and then ID so the order is stable across calls.
func byStart(a, b domain.Trip) int {
	if c := compareDates(a.StartDate, b.StartDate); c != 0 {
		return c
	}
	return tieBreak(a, b)
}

// byEndDesc orders by effective end date, latest first, undated trips last.
func byEndDesc(a, b domain.Trip) int {
	ae, be := a.EffectiveEnd(), b.EffectiveEnd()
	switch {
	case ae == nil && be == nil:
		return tieBreak(a, b)
	case ae == nil:
		return 1
	case be == nil:
		return -1
	}
	if c := be.Compare(*ae); c != 0 {
		return c
	}
	return tieBreak(a, b)
}

func compareDates(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return a.Compare(*b)
}

func tieBreak(a, b domain.Trip) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return bytes.Compare(a.ID[:], b.ID[:])
}
