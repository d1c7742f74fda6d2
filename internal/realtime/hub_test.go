package realtime_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/fleet-schedule/internal/domain"
	"github.com/pkordes/fleet-schedule/internal/realtime"
)

// fakeStore is a hand-written realtime.Store holding one live trip.
type fakeStore struct {
	trip domain.Trip

	mu        sync.Mutex
	patches   []domain.TripPatch
	recompute int
}

func (f *fakeStore) Update(_ context.Context, id uuid.UUID, p domain.TripPatch) (domain.Trip, bool, error) {
	if id != f.trip.ID {
		return domain.Trip{}, false, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, p)
	return f.trip, true, nil
}

func (f *fakeStore) Get(id uuid.UUID) (domain.Trip, error) {
	if id != f.trip.ID {
		return domain.Trip{}, domain.ErrNotFound
	}
	return f.trip, nil
}

func (f *fakeStore) List() []domain.Trip     { return []domain.Trip{f.trip} }
func (f *fakeStore) Archived() []domain.Trip { return nil }

func (f *fakeStore) RecomputeStatuses() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recompute++
	return 0
}

func (f *fakeStore) patchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.patches)
}

func (f *fakeStore) recomputeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recompute
}

func newTestHub(t *testing.T) (*realtime.Hub, *fakeStore, *websocket.Conn) {
	t.Helper()
	store := &fakeStore{trip: domain.Trip{
		ID:         uuid.New(),
		DriverName: "Ivan",
		ClientName: "Lukoil",
		RouteName:  "Burgas",
		StartDate:  domain.DatePtr(domain.MustParseDate("10.09.2025")),
	}}
	hub := realtime.NewHub(store, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Run(ctx) }()
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return hub, store, conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(v))
}

func TestHub_SnapshotsOnConnect(t *testing.T) {
	_, store, conn := newTestHub(t)

	var live, archive realtime.Snapshot
	readJSON(t, conn, &live)
	readJSON(t, conn, &archive)

	assert.Equal(t, realtime.TypeSnapshot, live.Type)
	assert.Equal(t, domain.CollectionLive, live.Collection)
	require.Len(t, live.Trips, 1)
	assert.Equal(t, store.trip.ID, live.Trips[0].ID)
	assert.Equal(t, domain.CollectionArchive, archive.Collection)
	assert.Empty(t, archive.Trips)
}

func TestHub_Publish(t *testing.T) {
	hub, _, conn := newTestHub(t)
	var skip realtime.Snapshot
	readJSON(t, conn, &skip)
	readJSON(t, conn, &skip)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(domain.CollectionArchive, []domain.Trip{{ID: uuid.New()}})

	var got realtime.Snapshot
	readJSON(t, conn, &got)
	assert.Equal(t, domain.CollectionArchive, got.Collection)
	assert.Len(t, got.Trips, 1)
}

func TestHub_DragGesture(t *testing.T) {
	_, store, conn := newTestHub(t)

	require.NoError(t, conn.WriteJSON(realtime.Inbound{Type: realtime.TypeDragStart, TripID: store.trip.ID, Mode: "move", DayWidth: 120}))
	require.NoError(t, conn.WriteJSON(realtime.Inbound{Type: realtime.TypeDragEnd, TripID: store.trip.ID, DX: 240}))

	require.Eventually(t, func() bool { return store.patchCount() == 1 }, time.Second, 10*time.Millisecond)
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, domain.DatePtr(domain.MustParseDate("12.09.2025")), store.patches[0].StartDate)
}

func TestHub_RejectsMoveWithoutStart(t *testing.T) {
	_, store, conn := newTestHub(t)
	var skip realtime.Snapshot
	readJSON(t, conn, &skip)
	readJSON(t, conn, &skip)

	require.NoError(t, conn.WriteJSON(realtime.Inbound{Type: realtime.TypeDragMove, TripID: store.trip.ID, DX: 120}))

	var got realtime.ErrorMessage
	readJSON(t, conn, &got)
	assert.Equal(t, realtime.TypeError, got.Type)
	assert.Equal(t, realtime.TypeDragMove, got.Request)
	assert.Zero(t, store.patchCount())
}

func TestHub_FocusRecomputes(t *testing.T) {
	_, store, conn := newTestHub(t)

	require.NoError(t, conn.WriteJSON(realtime.Inbound{Type: realtime.TypeFocus}))

	require.Eventually(t, func() bool { return store.recomputeCount() == 1 }, time.Second, 10*time.Millisecond)
}
