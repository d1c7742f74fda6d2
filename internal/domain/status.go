package domain

import (
	"fmt"
	"strings"
	"time"
)

// TripStatus is derived from a trip's date range and today's date.
// It is never accepted as input.
type TripStatus int

const (
	StatusPlanned TripStatus = iota
	StatusInProgress
	StatusDone
)

// String returns the wire name of the status.
func (s TripStatus) String() string {
	switch s {
	case StatusPlanned:
		return "planned"
	case StatusInProgress:
		return "in_progress"
	case StatusDone:
		return "done"
	}
	return fmt.Sprintf("TripStatus(%d)", int(s))
}

// MarshalText encodes the status by name.
func (s TripStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name. Used when reading cached snapshots;
// the value is recomputed before anything relies on it.
func (s *TripStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "planned":
		*s = StatusPlanned
	case "in_progress":
		*s = StatusInProgress
	case "done":
		*s = StatusDone
	default:
		return fmt.Errorf("%w: unknown trip status %q", ErrValidation, string(b))
	}
	return nil
}

// DeriveStatus maps a date range to a status for the given day.
// A missing start is Planned; a missing end means a one-day trip.
func DeriveStatus(start, end *time.Time, today time.Time) TripStatus {
	if start == nil {
		return StatusPlanned
	}
	s := DateOf(*start)
	e := s
	if end != nil {
		e = DateOf(*end)
	}
	t := DateOf(today)
	switch {
	case t.Before(s):
		return StatusPlanned
	case t.After(e):
		return StatusDone
	default:
		return StatusInProgress
	}
}

// Leg is the direction of a trip within an outbound/return pair.
type Leg int

const (
	LegOutbound Leg = iota
	LegReturn
)

// String returns the wire name of the leg.
func (l Leg) String() string {
	switch l {
	case LegOutbound:
		return "outbound"
	case LegReturn:
		return "return"
	}
	return fmt.Sprintf("Leg(%d)", int(l))
}

// MarshalText encodes the leg by name.
func (l Leg) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a leg via ParseLeg.
func (l *Leg) UnmarshalText(b []byte) error {
	v, err := ParseLeg(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// ParseLeg accepts the canonical names and the labels stored by older
// dashboard versions. Empty input is Outbound.
func ParseLeg(s string) (Leg, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "outbound", "прав":
		return LegOutbound, nil
	case "return", "обратен":
		return LegReturn, nil
	}
	return LegOutbound, fmt.Errorf("%w: unknown leg %q", ErrValidation, s)
}
