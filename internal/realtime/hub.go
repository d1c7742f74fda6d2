// Package realtime pushes trip snapshots to browsers over WebSocket and
// accepts timeline gestures from them.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pkordes/fleet-schedule/internal/domain"
	"github.com/pkordes/fleet-schedule/internal/timeline"
)

// Store is the part of the trip store a connection needs.
// *service.ScheduleService satisfies it.
type Store interface {
	timeline.Updater
	Get(id uuid.UUID) (domain.Trip, error)
	List() []domain.Trip
	Archived() []domain.Trip
	RecomputeStatuses() int
}

// Hub keeps the open connections and fans snapshots out to them.
type Hub struct {
	store    Store
	log      *slog.Logger
	upgrader websocket.Upgrader

	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}

	mu sync.RWMutex
}

// NewHub creates a Hub serving store. checkOrigin may be nil to accept every
// origin.
func NewHub(store Store, checkOrigin func(*http.Request) bool, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		store: store,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run is the hub's main loop. It returns when ctx is cancelled, after
// closing every connection.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				c.close()
			}
			h.mu.Unlock()
			return nil

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Info("websocket client connected", "remote", c.remote, "clients", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Info("websocket client disconnected", "remote", c.remote, "clients", n)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Too slow to keep up; it reconnects and gets a fresh snapshot.
					delete(h.clients, c)
					c.close()
					h.log.Warn("websocket client buffer full, disconnecting", "remote", c.remote)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish broadcasts a snapshot of coll to every connection. Its signature
// matches service.SnapshotObserver so it can be passed to Subscribe. It never
// blocks the caller.
func (h *Hub) Publish(coll domain.Collection, trips []domain.Trip) {
	data, err := json.Marshal(newSnapshot(coll, trips))
	if err != nil {
		h.log.Error("marshal snapshot", "error", err, "collection", coll)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("websocket broadcast queue full, snapshot dropped", "collection", coll)
	}
}

// ClientCount returns the number of open connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a WebSocket and serves it until the
// peer goes away. The first messages on a new connection are snapshots of
// both trip sets.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	c := newClient(h, conn, r.RemoteAddr)
	c.queue(newSnapshot(domain.CollectionLive, h.store.List()))
	c.queue(newSnapshot(domain.CollectionArchive, h.store.Archived()))

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go c.writePump()
	c.readPump(context.WithoutCancel(r.Context()))
}
