package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CompanyKind separates the clients trips are run for from the
// subcontractors whose drivers run them.
type CompanyKind string

const (
	CompanyClient        CompanyKind = "client"
	CompanySubcontractor CompanyKind = "subcontractor"
)

// Valid reports whether k is a known kind.
func (k CompanyKind) Valid() bool {
	return k == CompanyClient || k == CompanySubcontractor
}

// Company is a client or subcontractor with its registration details.
// Names are unique per kind, ignoring case.
type Company struct {
	ID        uuid.UUID   `json:"id"`
	Kind      CompanyKind `json:"kind"`
	Name      string      `json:"name"`
	EIK       string      `json:"eik"` // Bulgarian company registration number
	Address   string      `json:"address"`
	MOL       string      `json:"mol"` // legally responsible person
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Normalize trims every text field.
func (c *Company) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.EIK = strings.TrimSpace(c.EIK)
	c.Address = strings.TrimSpace(c.Address)
	c.MOL = strings.TrimSpace(c.MOL)
}

// Route is a named relation between two places. DurationDays drives the
// suggested unload date of new trips on the route.
type Route struct {
	ID            uuid.UUID   `json:"id"`
	Name          string      `json:"name"`
	From          string      `json:"from"`
	To            string      `json:"to"`
	DistanceKm    *float64    `json:"distance_km,omitempty"`
	DurationDays  *int        `json:"duration_days,omitempty"`
	Bidirectional bool        `json:"bidirectional"`
	Notes         string      `json:"notes"`
	ClientIDs     []uuid.UUID `json:"client_ids"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Normalize trims the text fields, names an unnamed route "From → To" and
// drops nil and repeated client IDs. A non-positive distance or duration
// is treated as unknown.
func (r *Route) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.From = strings.TrimSpace(r.From)
	r.To = strings.TrimSpace(r.To)
	r.Notes = strings.TrimSpace(r.Notes)
	if r.Name == "" && r.From != "" && r.To != "" {
		r.Name = r.From + " → " + r.To
	}
	if r.DistanceKm != nil && *r.DistanceKm <= 0 {
		r.DistanceKm = nil
	}
	if r.DurationDays != nil && *r.DurationDays <= 0 {
		r.DurationDays = nil
	}

	ids := make([]uuid.UUID, 0, len(r.ClientIDs))
	for _, id := range r.ClientIDs {
		if id != uuid.Nil && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	r.ClientIDs = ids
}

// ServesClient reports whether the route is bound to the client.
func (r Route) ServesClient(id uuid.UUID) bool {
	return slices.Contains(r.ClientIDs, id)
}

// SuggestEnd returns the unload date proposed for a trip on the route that
// starts on start: DurationDays later, or one day later when the duration
// is unknown.
func (r Route) SuggestEnd(start time.Time) time.Time {
	days := 1
	if r.DurationDays != nil && *r.DurationDays > 0 {
		days = *r.DurationDays
	}
	return AddDays(start, days)
}

// SameName compares reference-data names the way duplicates are detected:
// surrounding blanks and letter case are ignored.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// ReferenceDataVersion is the format version written by the reference
// data export.
const ReferenceDataVersion = 2

// ReferenceData is the export and import document of the clients,
// subcontractors and routes.
type ReferenceData struct {
	Version        int       `json:"version"`
	ExportedAt     time.Time `json:"exported_at"`
	Clients        []Company `json:"clients"`
	Subcontractors []Company `json:"subcontractors"`
	Routes         []Route   `json:"routes"`
}
