package realtime

import (
	"github.com/google/uuid"

	"github.com/pkordes/fleet-schedule/internal/domain"
)

// Outbound message types.
const (
	TypeSnapshot = "snapshot"
	TypeError    = "error"
	TypePong     = "pong"
)

// Inbound message types.
const (
	TypeDragStart = "drag_start"
	TypeDragMove  = "drag_move"
	TypeDragEnd   = "drag_end"
	TypeFocus     = "focus"
	TypePing      = "ping"
)

// Snapshot carries the full, ordered contents of one trip set.
type Snapshot struct {
	Type       string            `json:"type"`
	Collection domain.Collection `json:"collection"`
	Trips      []domain.Trip     `json:"trips"`
}

func newSnapshot(coll domain.Collection, trips []domain.Trip) Snapshot {
	if trips == nil {
		trips = []domain.Trip{}
	}
	return Snapshot{Type: TypeSnapshot, Collection: coll, Trips: trips}
}

// ErrorMessage reports a rejected inbound message back to its sender.
type ErrorMessage struct {
	Type    string `json:"type"`
	Request string `json:"request"`
	Message string `json:"message"`
}

// Pong answers a ping.
type Pong struct {
	Type string `json:"type"`
}

// Inbound is any message a browser sends. Gesture fields are only read for
// the drag_* types; dx is the pointer offset in pixels from where the drag
// started.
type Inbound struct {
	Type     string    `json:"type"`
	TripID   uuid.UUID `json:"tripId"`
	Mode     string    `json:"mode"`
	DX       float64   `json:"dx"`
	DayWidth float64   `json:"dayWidth"`
}
