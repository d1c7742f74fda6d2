package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pkordes/fleet-schedule/internal/domain"
	"github.com/pkordes/fleet-schedule/internal/repo"
)

// DocumentNumbers issues travel-order numbers. ScheduleService depends on
// this interface rather than on DocumentNumberer so tests can stub it.
type DocumentNumbers interface {
	Next(ctx context.Context, date time.Time, leg domain.Leg, commit bool) (string, error)
}

// DocumentNumberer formats travel-order numbers as "<n>/<DD.MM>" from a
// counter that restarts every calendar year.
type DocumentNumberer struct {
	counters repo.CounterRepo
}

// NewDocumentNumberer constructs a DocumentNumberer backed by counters.
func NewDocumentNumberer(counters repo.CounterRepo) *DocumentNumberer {
	return &DocumentNumberer{counters: counters}
}

// CounterKey is the counter that numbers documents dated in year.
func CounterKey(year int) string {
	return fmt.Sprintf("kmd-%d", year)
}

// Peek returns the last number issued in date's year without changing it.
func (n *DocumentNumberer) Peek(ctx context.Context, date time.Time) (int64, error) {
	v, err := n.counters.Peek(ctx, CounterKey(date.Year()))
	if err != nil {
		return 0, fmt.Errorf("service.DocumentNumberer.Peek: %w", err)
	}
	return v, nil
}

// Next returns the number for a document dated date.
// Only a committed Outbound request consumes a number; a preview, or a
// Return leg which shares its outbound's sequence, reports the number the
// next commit would receive.
func (n *DocumentNumberer) Next(ctx context.Context, date time.Time, leg domain.Leg, commit bool) (string, error) {
	date = domain.DateOf(date)
	key := CounterKey(date.Year())

	var (
		v   int64
		err error
	)
	if commit && leg == domain.LegOutbound {
		v, err = n.counters.Increment(ctx, key)
	} else {
		v, err = n.counters.Peek(ctx, key)
		v++
	}
	if err != nil {
		return "", fmt.Errorf("service.DocumentNumberer.Next: %w", err)
	}
	return fmt.Sprintf("%d/%s", v, date.Format("02.01")), nil
}
