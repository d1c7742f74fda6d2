// Package timeline maps trips onto the horizontal day grid of the schedule
// view and turns pointer gestures on that grid into date changes.
//
// Positions are in pixels relative to the left edge of the window; one day
// is DayWidth pixels wide. All dates are naive calendar dates (see
// domain.DateOf).
package timeline

import (
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/pkordes/fleet-schedule/internal/domain"
)

const (
	// DefaultDayWidth is the width of one day column in pixels.
	DefaultDayWidth = 120.0
	// DefaultDays is the number of days a window shows.
	DefaultDays = 7
	// FrameInterval is the minimum gap between two store updates issued by
	// one gesture: one animation frame at 60Hz.
	FrameInterval = 16 * time.Millisecond
)

// Window is the visible range of the timeline.
type Window struct {
	Start    time.Time
	Days     int
	DayWidth float64
}

// NewWindow returns a window starting at start. Non-positive days or
// dayWidth fall back to the defaults.
func NewWindow(start time.Time, days int, dayWidth float64) Window {
	if days <= 0 {
		days = DefaultDays
	}
	if dayWidth <= 0 {
		dayWidth = DefaultDayWidth
	}
	return Window{Start: domain.DateOf(start), Days: days, DayWidth: dayWidth}
}

// End returns the last day shown by the window.
func (w Window) End() time.Time {
	return domain.AddDays(w.Start, w.Days-1)
}

// Width returns the total width of the window in pixels.
func (w Window) Width() float64 {
	return float64(w.Days) * w.DayWidth
}

// Dates returns every day of the window in order.
func (w Window) Dates() []time.Time {
	out := make([]time.Time, w.Days)
	for i := range out {
		out[i] = domain.AddDays(w.Start, i)
	}
	return out
}

// Shift returns the window moved by days; negative pages back.
func (w Window) Shift(days int) Window {
	w.Start = domain.AddDays(w.Start, days)
	return w
}

// Span returns the horizontal extent of a trip running from start to end.
// A nil end means a one-day trip. A trip that runs past either edge of the
// window is clipped to it, never hidden; visible is false only when the trip
// has no start date or lies entirely outside the window.
func (w Window) Span(start, end *time.Time) (left, width float64, visible bool) {
	if start == nil {
		return 0, 0, false
	}
	s := domain.DateOf(*start)
	e := s
	if end != nil && !end.Before(*start) {
		e = domain.DateOf(*end)
	}
	last := w.End()
	if e.Before(w.Start) || s.After(last) {
		return 0, 0, false
	}

	if s.Before(w.Start) {
		s = w.Start
	}
	if e.After(last) {
		e = last
	}
	left = float64(domain.DaysBetween(w.Start, s)) * w.DayWidth
	width = float64(domain.DaysBetween(s, e)+1) * w.DayWidth
	return left, width, true
}

// DateAt returns the day under pixel position px.
func (w Window) DateAt(px float64) time.Time {
	return domain.AddDays(w.Start, int(math.Floor(px/w.DayWidth)))
}

// DayDelta converts a horizontal pointer movement into whole days, rounding
// half away from zero.
func DayDelta(px, dayWidth float64) int {
	if dayWidth <= 0 {
		return 0
	}
	return int(math.Round(px / dayWidth))
}

// Mode is the kind of pointer gesture on a trip bar.
type Mode string

const (
	ModeMove        Mode = "move"
	ModeResizeLeft  Mode = "resize_left"
	ModeResizeRight Mode = "resize_right"
)

// ParseMode parses the wire name of a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.TrimSpace(s)); m {
	case ModeMove, ModeResizeLeft, ModeResizeRight:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown gesture mode %q", domain.ErrValidation, s)
}

// Drag shifts both dates by days. A nil end stays nil.
func Drag(start time.Time, end *time.Time, days int) (time.Time, *time.Time) {
	newStart := domain.AddDays(start, days)
	if end == nil {
		return newStart, nil
	}
	return newStart, domain.DatePtr(domain.AddDays(*end, days))
}

// ResizeLeft moves the start by days. When the new start passes the end,
// the end follows it.
func ResizeLeft(start time.Time, end *time.Time, days int) (time.Time, *time.Time) {
	newStart := domain.AddDays(start, days)
	newEnd := newStart
	if end != nil {
		newEnd = domain.DateOf(*end)
	}
	if newEnd.Before(newStart) {
		newEnd = newStart
	}
	return newStart, domain.DatePtr(newEnd)
}

// ResizeRight moves the end by days, never before start. A nil end is
// treated as start.
func ResizeRight(start time.Time, end *time.Time, days int) (time.Time, *time.Time) {
	start = domain.DateOf(start)
	base := start
	if end != nil {
		base = domain.DateOf(*end)
	}
	newEnd := domain.AddDays(base, days)
	if newEnd.Before(start) {
		newEnd = start
	}
	return start, domain.DatePtr(newEnd)
}

// Apply runs the date rule of mode.
func Apply(mode Mode, start time.Time, end *time.Time, days int) (time.Time, *time.Time) {
	switch mode {
	case ModeResizeLeft:
		return ResizeLeft(start, end, days)
	case ModeResizeRight:
		return ResizeRight(start, end, days)
	default:
		return Drag(start, end, days)
	}
}

// Rows returns the distinct driver names of trips, sorted for display.
// Trips without a driver have no row.
func Rows(trips []domain.Trip) []string {
	seen := map[string]bool{}
	rows := []string{}
	for _, t := range trips {
		name := trimmed(t.DriverName)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		rows = append(rows, name)
	}
	// A Collator is not safe for concurrent use.
	collate.New(language.Bulgarian, collate.IgnoreCase).SortStrings(rows)
	return rows
}

func trimmed(s string) string { return strings.TrimSpace(s) }
