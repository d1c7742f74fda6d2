package repo

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pkordes/fleet-schedule/internal/domain"
)

// FirestoreOptions selects the Firebase project and credentials.
// CredentialsBase64 suits hosts where a credentials file cannot be uploaded.
type FirestoreOptions struct {
	ProjectID         string
	CredentialsFile   string
	CredentialsBase64 string
}

// NewFirestoreClient initialises a Firebase app and returns its Firestore client.
// With neither credential set, application default credentials are used.
func NewFirestoreClient(ctx context.Context, opts FirestoreOptions) (*firestore.Client, error) {
	var clientOpts []option.ClientOption
	switch {
	case opts.CredentialsBase64 != "":
		raw, err := base64.StdEncoding.DecodeString(opts.CredentialsBase64)
		if err != nil {
			return nil, fmt.Errorf("repo.NewFirestoreClient: decode credentials: %w", err)
		}
		clientOpts = append(clientOpts, option.WithCredentialsJSON(raw))
	case opts.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: opts.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("repo.NewFirestoreClient: init app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("repo.NewFirestoreClient: firestore: %w", err)
	}
	return client, nil
}

// FirestoreTripRepo stores each collection as a Firestore collection of the
// same name. It implements both TripRepo and TripWatcher.
type FirestoreTripRepo struct {
	client *firestore.Client
	now    domain.Clock

	// keys remembers the document key of trips whose key is not their UUID,
	// so writes go back to the document they were read from.
	keys sync.Map // uuid.UUID -> string
}

// NewFirestoreTripRepo constructs a Firestore-backed trip repo.
func NewFirestoreTripRepo(client *firestore.Client, now domain.Clock) *FirestoreTripRepo {
	if now == nil {
		now = domain.SystemClock
	}
	return &FirestoreTripRepo{client: client, now: now}
}

var (
	_ TripRepo    = (*FirestoreTripRepo)(nil)
	_ TripWatcher = (*FirestoreTripRepo)(nil)
)

func (r *FirestoreTripRepo) ref(coll domain.Collection, id uuid.UUID) *firestore.DocumentRef {
	key := id.String()
	if k, ok := r.keys.Load(id); ok {
		key = k.(string)
	}
	return r.client.Collection(string(coll)).Doc(key)
}

func (r *FirestoreTripRepo) decode(docs []*firestore.DocumentSnapshot) ([]domain.Trip, error) {
	trips := make([]domain.Trip, 0, len(docs))
	for _, d := range docs {
		t, err := normalizeTrip(d.Ref.ID, d.Data())
		if err != nil {
			return nil, err
		}
		if t.ID.String() != d.Ref.ID {
			r.keys.Store(t.ID, d.Ref.ID)
		}
		trips = append(trips, t)
	}
	return trips, nil
}

// List implements TripRepo.
func (r *FirestoreTripRepo) List(ctx context.Context, coll domain.Collection) ([]domain.Trip, error) {
	docs, err := r.client.Collection(string(coll)).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("repo.FirestoreTripRepo.List: %w", err)
	}
	trips, err := r.decode(docs)
	if err != nil {
		return nil, fmt.Errorf("repo.FirestoreTripRepo.List: %w", err)
	}
	return trips, nil
}

// Upsert implements TripRepo. Timestamps are maintained here because
// Firestore has no column defaults.
func (r *FirestoreTripRepo) Upsert(ctx context.Context, coll domain.Collection, trip domain.Trip) (domain.Trip, error) {
	now := r.now().UTC()
	if trip.CreatedAt.IsZero() {
		trip.CreatedAt = now
	}
	trip.UpdatedAt = now

	if _, err := r.ref(coll, trip.ID).Set(ctx, tripDocument(trip)); err != nil {
		return domain.Trip{}, fmt.Errorf("repo.FirestoreTripRepo.Upsert: %w", err)
	}
	return trip, nil
}

// Delete implements TripRepo.
func (r *FirestoreTripRepo) Delete(ctx context.Context, coll domain.Collection, id uuid.UUID) error {
	if _, err := r.ref(coll, id).Delete(ctx, firestore.Exists); err != nil {
		return fmt.Errorf("repo.FirestoreTripRepo.Delete: %w", mapFirestoreErr(err))
	}
	return nil
}

// Move implements TripRepo with a transaction: the source document must
// exist, and the write to the target and the delete of the source commit
// together.
func (r *FirestoreTripRepo) Move(ctx context.Context, trip domain.Trip, from, to domain.Collection) (domain.Trip, error) {
	src := r.ref(from, trip.ID)
	dst := r.ref(to, trip.ID)
	trip.UpdatedAt = r.now().UTC()

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(src); err != nil {
			return err
		}
		if err := tx.Set(dst, tripDocument(trip)); err != nil {
			return err
		}
		return tx.Delete(src)
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.FirestoreTripRepo.Move: %w", mapFirestoreErr(err))
	}
	return trip, nil
}

// Watch implements TripWatcher with one snapshot listener per collection.
func (r *FirestoreTripRepo) Watch(ctx context.Context, fn SnapshotFunc) error {
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for _, coll := range []domain.Collection{domain.CollectionLive, domain.CollectionArchive} {
		g.Go(func() error {
			it := r.client.Collection(string(coll)).Snapshots(ctx)
			defer it.Stop()
			for {
				snap, err := it.Next()
				if err != nil {
					if ctx.Err() != nil || status.Code(err) == codes.Canceled {
						return ctx.Err()
					}
					return fmt.Errorf("repo.FirestoreTripRepo.Watch %s: %w", coll, err)
				}
				docs, err := snap.Documents.GetAll()
				if err != nil {
					return fmt.Errorf("repo.FirestoreTripRepo.Watch %s: %w", coll, err)
				}
				trips, err := r.decode(docs)
				if err != nil {
					return fmt.Errorf("repo.FirestoreTripRepo.Watch %s: %w", coll, err)
				}
				mu.Lock()
				fn(coll, trips)
				mu.Unlock()
			}
		})
	}
	return g.Wait()
}

// FirestoreCounterRepo keeps counters as documents under counters/{key}.
type FirestoreCounterRepo struct {
	client *firestore.Client
}

// NewFirestoreCounterRepo constructs a Firestore-backed CounterRepo.
func NewFirestoreCounterRepo(client *firestore.Client) *FirestoreCounterRepo {
	return &FirestoreCounterRepo{client: client}
}

var _ CounterRepo = (*FirestoreCounterRepo)(nil)

func (r *FirestoreCounterRepo) ref(key string) *firestore.DocumentRef {
	return r.client.Collection("counters").Doc(key)
}

// Peek implements CounterRepo.
func (r *FirestoreCounterRepo) Peek(ctx context.Context, key string) (int64, error) {
	snap, err := r.ref(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("repo.FirestoreCounterRepo.Peek: %w", err)
	}
	return counterValue(snap), nil
}

// Increment implements CounterRepo inside a transaction so concurrent
// callers never receive the same value.
func (r *FirestoreCounterRepo) Increment(ctx context.Context, key string) (int64, error) {
	ref := r.ref(key)
	var next int64
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		current := int64(0)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return err
		default:
			current = counterValue(snap)
		}
		next = current + 1
		return tx.Set(ref, map[string]any{"value": next, "updatedAt": firestore.ServerTimestamp})
	})
	if err != nil {
		return 0, fmt.Errorf("repo.FirestoreCounterRepo.Increment: %w", err)
	}
	return next, nil
}

func counterValue(snap *firestore.DocumentSnapshot) int64 {
	switch v := snap.Data()["value"].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

// mapFirestoreErr converts a NotFound status into domain.ErrNotFound.
func mapFirestoreErr(err error) error {
	if status.Code(err) == codes.NotFound || errors.Is(err, domain.ErrNotFound) {
		return domain.ErrNotFound
	}
	return err
}

// firestoreDocs is the shared List/Upsert/Delete of the reference-data
// collections. Like trips, legacy documents may be keyed by something other
// than their UUID.
type firestoreDocs struct {
	client *firestore.Client
	coll   string
	now    domain.Clock
	keys   sync.Map // uuid.UUID -> string
}

func (f *firestoreDocs) ref(id uuid.UUID) *firestore.DocumentRef {
	key := id.String()
	if k, ok := f.keys.Load(id); ok {
		key = k.(string)
	}
	return f.client.Collection(f.coll).Doc(key)
}

func (f *firestoreDocs) all(ctx context.Context) ([]*firestore.DocumentSnapshot, error) {
	docs, err := f.client.Collection(f.coll).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if id := docIDToUUID(d.Ref.ID); id.String() != d.Ref.ID {
			f.keys.Store(id, d.Ref.ID)
		}
	}
	return docs, nil
}

func (f *firestoreDocs) set(ctx context.Context, id uuid.UUID, doc map[string]any) error {
	_, err := f.ref(id).Set(ctx, doc)
	return err
}

func (f *firestoreDocs) delete(ctx context.Context, id uuid.UUID) error {
	_, err := f.ref(id).Delete(ctx, firestore.Exists)
	return mapFirestoreErr(err)
}

func (f *firestoreDocs) stamp(created, updated *time.Time) {
	now := f.now().UTC()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

// FirestoreDriverRepo stores drivers in the drivers collection.
type FirestoreDriverRepo struct {
	docs *firestoreDocs
}

// NewFirestoreDriverRepo constructs a Firestore-backed DriverRepo.
func NewFirestoreDriverRepo(client *firestore.Client, now domain.Clock) *FirestoreDriverRepo {
	if now == nil {
		now = domain.SystemClock
	}
	return &FirestoreDriverRepo{docs: &firestoreDocs{client: client, coll: "drivers", now: now}}
}

var _ DriverRepo = (*FirestoreDriverRepo)(nil)

// List implements DriverRepo, ordered by name like the Postgres repo.
func (r *FirestoreDriverRepo) List(ctx context.Context) ([]domain.Driver, error) {
	docs, err := r.docs.all(ctx)
	if err != nil {
		return nil, fmt.Errorf("repo.FirestoreDriverRepo.List: %w", err)
	}
	out := make([]domain.Driver, 0, len(docs))
	for _, d := range docs {
		out = append(out, normalizeDriver(d.Ref.ID, d.Data()))
	}
	slices.SortStableFunc(out, func(a, b domain.Driver) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// Upsert implements DriverRepo.
func (r *FirestoreDriverRepo) Upsert(ctx context.Context, d domain.Driver) (domain.Driver, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	r.docs.stamp(&d.CreatedAt, &d.UpdatedAt)
	if err := r.docs.set(ctx, d.ID, driverDocument(d)); err != nil {
		return domain.Driver{}, fmt.Errorf("repo.FirestoreDriverRepo.Upsert: %w", err)
	}
	return d, nil
}

// Delete implements DriverRepo.
func (r *FirestoreDriverRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.docs.delete(ctx, id); err != nil {
		return fmt.Errorf("repo.FirestoreDriverRepo.Delete: %w", err)
	}
	return nil
}

// FirestoreVehicleRepo keeps tractors in trucks and tankers in tankers, the
// collection names the dashboard has always used.
type FirestoreVehicleRepo struct {
	tractors *firestoreDocs
	tankers  *firestoreDocs
}

// NewFirestoreVehicleRepo constructs a Firestore-backed VehicleRepo.
func NewFirestoreVehicleRepo(client *firestore.Client, now domain.Clock) *FirestoreVehicleRepo {
	if now == nil {
		now = domain.SystemClock
	}
	return &FirestoreVehicleRepo{
		tractors: &firestoreDocs{client: client, coll: "trucks", now: now},
		tankers:  &firestoreDocs{client: client, coll: "tankers", now: now},
	}
}

var _ VehicleRepo = (*FirestoreVehicleRepo)(nil)

func (r *FirestoreVehicleRepo) docsFor(kind domain.VehicleKind) *firestoreDocs {
	if kind == domain.VehicleTanker {
		return r.tankers
	}
	return r.tractors
}

// List implements VehicleRepo, ordered by kind then number.
func (r *FirestoreVehicleRepo) List(ctx context.Context) ([]domain.Vehicle, error) {
	var out []domain.Vehicle
	for _, kind := range []domain.VehicleKind{domain.VehicleTanker, domain.VehicleTractor} {
		docs, err := r.docsFor(kind).all(ctx)
		if err != nil {
			return nil, fmt.Errorf("repo.FirestoreVehicleRepo.List: %w", err)
		}
		for _, d := range docs {
			v := normalizeVehicle(d.Ref.ID, d.Data(), kind)
			v.Kind = kind
			out = append(out, v)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Vehicle) int {
		if c := strings.Compare(string(a.Kind), string(b.Kind)); c != 0 {
			return c
		}
		return strings.Compare(a.Number, b.Number)
	})
	if out == nil {
		out = []domain.Vehicle{}
	}
	return out, nil
}

// Upsert implements VehicleRepo. A vehicle whose kind changed is moved to
// the other collection.
func (r *FirestoreVehicleRepo) Upsert(ctx context.Context, v domain.Vehicle) (domain.Vehicle, error) {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	docs := r.docsFor(v.Kind)
	docs.stamp(&v.CreatedAt, &v.UpdatedAt)
	if err := docs.set(ctx, v.ID, vehicleDocument(v)); err != nil {
		return domain.Vehicle{}, fmt.Errorf("repo.FirestoreVehicleRepo.Upsert: %w", err)
	}
	other := r.tankers
	if docs == r.tankers {
		other = r.tractors
	}
	if err := other.delete(ctx, v.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.Vehicle{}, fmt.Errorf("repo.FirestoreVehicleRepo.Upsert: %w", err)
	}
	return v, nil
}

// Delete implements VehicleRepo. The ID is looked up in both collections.
func (r *FirestoreVehicleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.tractors.delete(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		err = r.tankers.delete(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("repo.FirestoreVehicleRepo.Delete: %w", err)
	}
	return nil
}

// FirestoreCompanyRepo keeps clients and subcontractors in collections of
// those names.
type FirestoreCompanyRepo struct {
	clients        *firestoreDocs
	subcontractors *firestoreDocs
}

// NewFirestoreCompanyRepo constructs a Firestore-backed CompanyRepo.
func NewFirestoreCompanyRepo(client *firestore.Client, now domain.Clock) *FirestoreCompanyRepo {
	if now == nil {
		now = domain.SystemClock
	}
	return &FirestoreCompanyRepo{
		clients:        &firestoreDocs{client: client, coll: "clients", now: now},
		subcontractors: &firestoreDocs{client: client, coll: "subcontractors", now: now},
	}
}

var _ CompanyRepo = (*FirestoreCompanyRepo)(nil)

func (r *FirestoreCompanyRepo) docsFor(kind domain.CompanyKind) *firestoreDocs {
	if kind == domain.CompanySubcontractor {
		return r.subcontractors
	}
	return r.clients
}

// List implements CompanyRepo, ordered by name like the Postgres repo.
func (r *FirestoreCompanyRepo) List(ctx context.Context, kind domain.CompanyKind) ([]domain.Company, error) {
	docs, err := r.docsFor(kind).all(ctx)
	if err != nil {
		return nil, fmt.Errorf("repo.FirestoreCompanyRepo.List: %w", err)
	}
	out := make([]domain.Company, 0, len(docs))
	for _, d := range docs {
		out = append(out, normalizeCompany(d.Ref.ID, d.Data(), kind))
	}
	slices.SortStableFunc(out, func(a, b domain.Company) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// Upsert implements CompanyRepo.
func (r *FirestoreCompanyRepo) Upsert(ctx context.Context, c domain.Company) (domain.Company, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	docs := r.docsFor(c.Kind)
	docs.stamp(&c.CreatedAt, &c.UpdatedAt)
	if err := docs.set(ctx, c.ID, companyDocument(c)); err != nil {
		return domain.Company{}, fmt.Errorf("repo.FirestoreCompanyRepo.Upsert: %w", err)
	}
	return c, nil
}

// Delete implements CompanyRepo.
func (r *FirestoreCompanyRepo) Delete(ctx context.Context, kind domain.CompanyKind, id uuid.UUID) error {
	if err := r.docsFor(kind).delete(ctx, id); err != nil {
		return fmt.Errorf("repo.FirestoreCompanyRepo.Delete: %w", err)
	}
	return nil
}

// FirestoreRouteRepo stores routes in the routes collection.
type FirestoreRouteRepo struct {
	docs *firestoreDocs
}

// NewFirestoreRouteRepo constructs a Firestore-backed RouteRepo.
func NewFirestoreRouteRepo(client *firestore.Client, now domain.Clock) *FirestoreRouteRepo {
	if now == nil {
		now = domain.SystemClock
	}
	return &FirestoreRouteRepo{docs: &firestoreDocs{client: client, coll: "routes", now: now}}
}

var _ RouteRepo = (*FirestoreRouteRepo)(nil)

// List implements RouteRepo, ordered by name.
func (r *FirestoreRouteRepo) List(ctx context.Context) ([]domain.Route, error) {
	docs, err := r.docs.all(ctx)
	if err != nil {
		return nil, fmt.Errorf("repo.FirestoreRouteRepo.List: %w", err)
	}
	out := make([]domain.Route, 0, len(docs))
	for _, d := range docs {
		out = append(out, normalizeRoute(d.Ref.ID, d.Data()))
	}
	slices.SortStableFunc(out, func(a, b domain.Route) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// Upsert implements RouteRepo.
func (r *FirestoreRouteRepo) Upsert(ctx context.Context, rt domain.Route) (domain.Route, error) {
	if rt.ID == uuid.Nil {
		rt.ID = uuid.New()
	}
	r.docs.stamp(&rt.CreatedAt, &rt.UpdatedAt)
	if err := r.docs.set(ctx, rt.ID, routeDocument(rt)); err != nil {
		return domain.Route{}, fmt.Errorf("repo.FirestoreRouteRepo.Upsert: %w", err)
	}
	return rt, nil
}

// Delete implements RouteRepo.
func (r *FirestoreRouteRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.docs.delete(ctx, id); err != nil {
		return fmt.Errorf("repo.FirestoreRouteRepo.Delete: %w", err)
	}
	return nil
}
