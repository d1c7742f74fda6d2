// Package domain contains the core data types and pure rules of the fleet
// schedule: trips, their derived status, compliance expiry and date handling.
// It depends on nothing but uuid and is imported by every other internal
// package (repo, service, timeline, handler).
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Collection names one of the two disjoint trip sets.
type Collection string

const (
	// CollectionLive holds trips relevant to day-to-day operations.
	CollectionLive Collection = "trips-live"
	// CollectionArchive holds trips moved out of the daily view.
	CollectionArchive Collection = "trips-archived"
)

// Valid reports whether c is one of the known collections.
func (c Collection) Valid() bool {
	return c == CollectionLive || c == CollectionArchive
}

// Trip is a scheduled transport assignment ("load").
// Driver, client and route are referenced by name only; nothing checks that
// they exist. Status and DriverCompany are derived and recomputed at every
// read/write boundary.
type Trip struct {
	ID             uuid.UUID  `json:"id"`
	DriverName     string     `json:"driver_name"`
	DriverCompany  string     `json:"driver_company"`
	ClientName     string     `json:"client_name"`
	RouteName      string     `json:"route_name"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date,omitempty"` // nil means same day as StartDate
	Leg            Leg        `json:"leg"`
	DocumentNumber string     `json:"document_number"`
	Notes          string     `json:"notes"`
	Status         TripStatus `json:"status"`
	ArchivedAt     *time.Time `json:"archived_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// EffectiveEnd returns EndDate, falling back to StartDate.
// It returns nil only when the trip has no dates at all.
func (t Trip) EffectiveEnd() *time.Time {
	if t.EndDate != nil {
		return t.EndDate
	}
	return t.StartDate
}

// WithStatus returns a copy of t with Status derived for today.
func (t Trip) WithStatus(today time.Time) Trip {
	t.Status = DeriveStatus(t.StartDate, t.EndDate, today)
	return t
}

// Summary is the one-line text the dashboard copies to the clipboard.
func (t Trip) Summary() string {
	dash := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "—"
		}
		return s
	}
	return strings.Join([]string{
		"Client: " + dash(t.ClientName),
		"Route: " + dash(t.RouteName),
		"Driver: " + dash(t.DriverName),
		fmt.Sprintf("Dates: %s – %s", dash(FormatOptionalDate(t.StartDate)), dash(FormatOptionalDate(t.EndDate))),
		"No: " + dash(t.DocumentNumber),
		"Notes: " + dash(t.Notes),
	}, " | ")
}

// TripInput carries the user-supplied fields of a new trip.
type TripInput struct {
	DriverName     string
	ClientName     string
	RouteName      string
	StartDate      *time.Time
	EndDate        *time.Time
	Leg            Leg
	DocumentNumber string
	Notes          string

	// AssignDocumentNumber asks the store to take the next number from the
	// document counter when DocumentNumber is empty.
	AssignDocumentNumber bool
}

// Validate checks the fields required on creation.
func (in TripInput) Validate() error {
	if strings.TrimSpace(in.ClientName) == "" {
		return fmt.Errorf("%w: client is required", ErrValidation)
	}
	if strings.TrimSpace(in.RouteName) == "" {
		return fmt.Errorf("%w: route is required", ErrValidation)
	}
	return validateRange(in.StartDate, in.EndDate)
}

// TripPatch is a partial update. Nil fields are left unchanged.
// ClearEndDate unsets EndDate and wins over EndDate.
type TripPatch struct {
	DriverName     *string
	ClientName     *string
	RouteName      *string
	StartDate      *time.Time
	EndDate        *time.Time
	ClearEndDate   bool
	Leg            *Leg
	DocumentNumber *string
	Notes          *string
}

// Apply merges p into t and returns the result. Derived fields are left for
// the caller to recompute.
func (p TripPatch) Apply(t Trip) (Trip, error) {
	if p.ClientName != nil {
		if strings.TrimSpace(*p.ClientName) == "" {
			return Trip{}, fmt.Errorf("%w: client is required", ErrValidation)
		}
		t.ClientName = *p.ClientName
	}
	if p.RouteName != nil {
		if strings.TrimSpace(*p.RouteName) == "" {
			return Trip{}, fmt.Errorf("%w: route is required", ErrValidation)
		}
		t.RouteName = *p.RouteName
	}
	if p.DriverName != nil {
		t.DriverName = *p.DriverName
	}
	if p.StartDate != nil {
		t.StartDate = DatePtr(DateOf(*p.StartDate))
	}
	if p.EndDate != nil {
		t.EndDate = DatePtr(DateOf(*p.EndDate))
	}
	if p.ClearEndDate {
		t.EndDate = nil
	}
	if p.Leg != nil {
		t.Leg = *p.Leg
	}
	if p.DocumentNumber != nil {
		t.DocumentNumber = *p.DocumentNumber
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	if err := validateRange(t.StartDate, t.EndDate); err != nil {
		return Trip{}, err
	}
	return t, nil
}

// validateRange rejects an end date without a start and an end before start.
func validateRange(start, end *time.Time) error {
	if end == nil {
		return nil
	}
	if start == nil {
		return fmt.Errorf("%w: end date requires a start date", ErrValidation)
	}
	if DateOf(*end).Before(DateOf(*start)) {
		return fmt.Errorf("%w: end date must not be before start date", ErrValidation)
	}
	return nil
}
