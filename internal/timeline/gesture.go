package timeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/pkordes/fleet-schedule/internal/domain"
)

// ErrGestureEnded is returned by a Gesture after End.
var ErrGestureEnded = errors.New("timeline: gesture has ended")

// Updater applies a partial update to a live trip. found is false when no
// live trip has the id. *service.ScheduleService satisfies it.
type Updater interface {
	Update(ctx context.Context, id uuid.UUID, patch domain.TripPatch) (trip domain.Trip, found bool, err error)
}

// Gesture is one drag or resize of a trip bar, from pointer down to pointer
// up. Pointer offsets are always measured from where the gesture started,
// and every update is computed from the trip's dates at that moment, so a
// dropped intermediate update loses nothing.
//
// A Gesture is safe for concurrent use.
type Gesture struct {
	updater  Updater
	tripID   uuid.UUID
	mode     Mode
	start    time.Time
	end      *time.Time
	dayWidth float64
	throttle *rate.Sometimes

	mu      sync.Mutex
	applied int
	ended   bool
}

// NewGesture starts a gesture on trip. A trip without a start date cannot
// be moved on the grid.
func NewGesture(u Updater, trip domain.Trip, mode Mode, dayWidth float64) (*Gesture, error) {
	if trip.StartDate == nil {
		return nil, fmt.Errorf("%w: trip %s has no dates to move", domain.ErrValidation, trip.ID)
	}
	if dayWidth <= 0 {
		dayWidth = DefaultDayWidth
	}
	g := &Gesture{
		updater:  u,
		tripID:   trip.ID,
		mode:     mode,
		start:    domain.DateOf(*trip.StartDate),
		dayWidth: dayWidth,
		throttle: &rate.Sometimes{Interval: FrameInterval},
	}
	if trip.EndDate != nil {
		g.end = domain.DatePtr(domain.DateOf(*trip.EndDate))
	}
	return g, nil
}

// TripID returns the trip being moved.
func (g *Gesture) TripID() uuid.UUID { return g.tripID }

// Mode returns the kind of gesture.
func (g *Gesture) Mode() Mode { return g.mode }

// Move reports the pointer at dx pixels from where the gesture began. It
// issues at most one update per FrameInterval and none when the trip already
// sits at the matching day offset. The returned bool reports whether an
// update was sent.
func (g *Gesture) Move(ctx context.Context, dx float64) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ended {
		return false, ErrGestureEnded
	}

	delta := DayDelta(dx, g.dayWidth)
	if delta == g.applied {
		return false, nil
	}
	var (
		sent bool
		err  error
	)
	g.throttle.Do(func() {
		sent = true
		err = g.apply(ctx, delta)
	})
	return sent, err
}

// End finishes the gesture at dx, flushing the final position if a throttled
// Move left the trip behind.
func (g *Gesture) End(ctx context.Context, dx float64) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ended {
		return false, ErrGestureEnded
	}
	g.ended = true

	delta := DayDelta(dx, g.dayWidth)
	if delta == g.applied {
		return false, nil
	}
	return true, g.apply(ctx, delta)
}

func (g *Gesture) apply(ctx context.Context, delta int) error {
	start, end := Apply(g.mode, g.start, g.end, delta)

	var patch domain.TripPatch
	switch g.mode {
	case ModeResizeRight:
		patch.EndDate = end
	default:
		patch.StartDate = &start
		patch.EndDate = end
	}
	_, found, err := g.updater.Update(ctx, g.tripID, patch)
	if err != nil {
		return fmt.Errorf("timeline.Gesture.apply: %w", err)
	}
	if !found {
		// Archived or deleted by someone else mid-drag.
		return fmt.Errorf("timeline.Gesture.apply: %w", domain.ErrNotFound)
	}
	g.applied = delta
	return nil
}
