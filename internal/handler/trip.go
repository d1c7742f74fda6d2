package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/fleet-schedule/internal/domain"
)

// TripRequest is the body of POST /trips and each element of POST
// /trips/bulk. Dates are "DD.MM.YYYY" or "YYYY-MM-DD".
type TripRequest struct {
	DriverName           string  `json:"driver_name"`
	ClientName           string  `json:"client_name"`
	RouteName            string  `json:"route_name"`
	StartDate            *string `json:"start_date"`
	EndDate              *string `json:"end_date"`
	Leg                  string  `json:"leg"`
	DocumentNumber       string  `json:"document_number"`
	Notes                string  `json:"notes"`
	AssignDocumentNumber bool    `json:"assign_document_number"`
}

// TripPatchRequest is the body of PATCH /trips/{id} and PATCH
// /archive/{id}. Absent fields are left unchanged; an empty end_date
// clears it.
type TripPatchRequest struct {
	DriverName     *string `json:"driver_name"`
	ClientName     *string `json:"client_name"`
	RouteName      *string `json:"route_name"`
	StartDate      *string `json:"start_date"`
	EndDate        *string `json:"end_date"`
	Leg            *string `json:"leg"`
	DocumentNumber *string `json:"document_number"`
	Notes          *string `json:"notes"`
}

// TripResponse is a trip as returned by the API. Dates are ISO; the
// *_display fields carry the "DD.MM.YYYY" form the dashboard shows.
type TripResponse struct {
	ID             openapi_types.UUID  `json:"id"`
	DriverName     string              `json:"driver_name"`
	DriverCompany  string              `json:"driver_company"`
	ClientName     string              `json:"client_name"`
	RouteName      string              `json:"route_name"`
	StartDate      *openapi_types.Date `json:"start_date"`
	EndDate        *openapi_types.Date `json:"end_date,omitempty"`
	StartDisplay   string              `json:"start_display"`
	EndDisplay     string              `json:"end_display"`
	Leg            domain.Leg          `json:"leg"`
	DocumentNumber string              `json:"document_number"`
	Notes          string              `json:"notes"`
	Status         domain.TripStatus   `json:"status"`
	ArchivedAt     *time.Time          `json:"archived_at,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// TripList wraps a list of trips.
type TripList struct {
	Data []TripResponse `json:"data"`
}

// IDResponse carries the ID of a created trip.
type IDResponse struct {
	ID openapi_types.UUID `json:"id"`
}

// ListTrips handles GET /trips?view=all|upcoming|past.
func (s *Server) ListTrips(w http.ResponseWriter, r *http.Request) {
	var view *string
	if err := queryParam(r, "view", &view); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var trips []domain.Trip
	switch v := deref(view); v {
	case "", "all":
		trips = s.schedule.List()
	case "upcoming":
		trips = s.schedule.Upcoming()
	case "past":
		trips = s.schedule.Past()
	default:
		writeBadRequest(w, "view must be all, upcoming or past")
		return
	}
	writeJSON(w, http.StatusOK, tripsToResponse(trips))
}

// CreateTrip handles POST /trips.
func (s *Server) CreateTrip(w http.ResponseWriter, r *http.Request) {
	var body TripRequest
	if err := decodeBody(r, &body); err != nil {
		writeBodyError(w, err)
		return
	}
	in, err := requestToInput(body)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	id, err := s.schedule.Add(r.Context(), in)
	if err != nil {
		writeError(w, r, err, "trip not found")
		return
	}
	s.writeTrip(w, r, http.StatusCreated, id)
}

// BulkCreateTrips handles POST /trips/bulk. The trips are added in order;
// the first failure stops the batch and trips already added stay.
func (s *Server) BulkCreateTrips(w http.ResponseWriter, r *http.Request) {
	var body []TripRequest
	if err := decodeBody(r, &body); err != nil {
		writeBodyError(w, err)
		return
	}
	ins := make([]domain.TripInput, 0, len(body))
	for _, b := range body {
		in, err := requestToInput(b)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		ins = append(ins, in)
	}

	ids, err := s.schedule.BulkAdd(r.Context(), ins)
	if err != nil {
		writeError(w, r, err, "trip not found")
		return
	}
	out := make([]IDResponse, 0, len(ids))
	for _, id := range ids {
		out = append(out, IDResponse{ID: id})
	}
	writeJSON(w, http.StatusCreated, out)
}

// GetTrip handles GET /trips/{id}. Archived trips are found too.
func (s *Server) GetTrip(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	trip, err := s.schedule.Get(id)
	if err != nil {
		writeError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(trip))
}

// UpdateTrip handles PATCH /trips/{id}.
func (s *Server) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	s.patch(w, r, s.schedule.Update)
}

// DeleteTrip handles DELETE /trips/{id}. It removes the trip from whichever
// set holds it.
func (s *Server) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := s.schedule.Remove(r.Context(), id); err != nil {
		writeError(w, r, err, "trip not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CloneTrip handles POST /trips/{id}/clone.
func (s *Server) CloneTrip(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	cloneID, err := s.schedule.Clone(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "trip not found")
		return
	}
	s.writeTrip(w, r, http.StatusCreated, cloneID)
}

// GetTripSummary handles GET /trips/{id}/summary, the text copied to the
// clipboard.
func (s *Server) GetTripSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	text, err := s.schedule.Summary(id)
	if err != nil {
		writeError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": text})
}

// PastPage is the response of GET /trips/past.
type PastPage struct {
	Data       []TripResponse `json:"data"`
	Pagination Pagination     `json:"pagination"`
}

// Pagination describes the window returned in a PastPage.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// ListPastTrips handles GET /trips/past?limit=&offset=.
// Defaults: limit=20 (max 100), offset=0.
func (s *Server) ListPastTrips(w http.ResponseWriter, r *http.Request) {
	var limit, offset *int
	if err := queryParam(r, "limit", &limit); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := queryParam(r, "offset", &offset); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	page := domain.NewPage(limit, offset)
	writeJSON(w, http.StatusOK, PastPage{
		Data: tripsToResponse(s.schedule.PastSlice(page)).Data,
		Pagination: Pagination{
			Limit:  page.Limit,
			Offset: page.Offset,
			Total:  s.schedule.PastCount(),
		},
	})
}

// ListPastTripsSince handles GET /trips/past/since?days=N: past trips that
// ended within the last N days.
func (s *Server) ListPastTripsSince(w http.ResponseWriter, r *http.Request) {
	var days *int
	if err := queryParam(r, "days", &days); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if days == nil || *days < 0 {
		writeBadRequest(w, "days must be a non-negative integer")
		return
	}
	writeJSON(w, http.StatusOK, tripsToResponse(s.schedule.PastSince(*days)))
}

// GetConflicts handles GET /trips/conflicts?driver=&start=&end=&exclude=.
func (s *Server) GetConflicts(w http.ResponseWriter, r *http.Request) {
	var driver, start, end *string
	var exclude *openapi_types.UUID
	for name, dest := range map[string]any{"driver": &driver, "start": &start, "end": &end, "exclude": &exclude} {
		if err := queryParam(r, name, dest); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
	}
	if strings.TrimSpace(deref(driver)) == "" || start == nil {
		writeBadRequest(w, "driver and start are required")
		return
	}
	startDate, err := parseDate(*start)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	endDate, err := optionalDate(end)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	excludeID := uuid.Nil
	if exclude != nil {
		excludeID = *exclude
	}

	conflicts := s.schedule.Conflicts(*driver, startDate, endDate, excludeID)
	writeJSON(w, http.StatusOK, tripsToResponse(conflicts))
}

// RecomputeStatuses handles POST /trips/recompute, sent by a client that
// regained focus.
func (s *Server) RecomputeStatuses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"changed": s.schedule.RecomputeStatuses()})
}

// --- helpers ----------------------------------------------------------------

// patch decodes a TripPatchRequest and applies it with update. The store
// ignores unknown ids; over HTTP they are a 404.
func (s *Server) patch(w http.ResponseWriter, r *http.Request, update func(ctx context.Context, id uuid.UUID, p domain.TripPatch) (domain.Trip, bool, error)) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	var body TripPatchRequest
	if err := decodeBody(r, &body); err != nil {
		writeBodyError(w, err)
		return
	}
	p, err := requestToPatch(body)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	updated, found, err := update(r.Context(), id, p)
	if err != nil {
		writeError(w, r, err, "trip not found")
		return
	}
	if !found {
		writeError(w, r, domain.ErrNotFound, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(updated))
}

// writeTrip responds with the current state of trip id.
func (s *Server) writeTrip(w http.ResponseWriter, r *http.Request, status int, id uuid.UUID) {
	trip, err := s.schedule.Get(id)
	if err != nil {
		writeError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, status, tripToResponse(trip))
}

// --- mapping helpers --------------------------------------------------------

// requestToInput converts a TripRequest into a domain.TripInput.
func requestToInput(b TripRequest) (domain.TripInput, error) {
	start, err := optionalDate(b.StartDate)
	if err != nil {
		return domain.TripInput{}, err
	}
	end, err := optionalDate(b.EndDate)
	if err != nil {
		return domain.TripInput{}, err
	}
	leg, err := domain.ParseLeg(b.Leg)
	if err != nil {
		return domain.TripInput{}, errors.New(unwrapMessage(err))
	}
	return domain.TripInput{
		DriverName:           strings.TrimSpace(b.DriverName),
		ClientName:           strings.TrimSpace(b.ClientName),
		RouteName:            strings.TrimSpace(b.RouteName),
		StartDate:            start,
		EndDate:              end,
		Leg:                  leg,
		DocumentNumber:       strings.TrimSpace(b.DocumentNumber),
		Notes:                b.Notes,
		AssignDocumentNumber: b.AssignDocumentNumber,
	}, nil
}

// requestToPatch converts a TripPatchRequest into a domain.TripPatch.
func requestToPatch(b TripPatchRequest) (domain.TripPatch, error) {
	p := domain.TripPatch{
		DriverName:     b.DriverName,
		ClientName:     b.ClientName,
		RouteName:      b.RouteName,
		DocumentNumber: b.DocumentNumber,
		Notes:          b.Notes,
	}
	if b.StartDate != nil {
		start, err := optionalDate(b.StartDate)
		if err != nil {
			return domain.TripPatch{}, err
		}
		if start == nil {
			return domain.TripPatch{}, errors.New("start_date cannot be cleared")
		}
		p.StartDate = start
	}
	if b.EndDate != nil {
		end, err := optionalDate(b.EndDate)
		if err != nil {
			return domain.TripPatch{}, err
		}
		p.EndDate = end
		p.ClearEndDate = end == nil
	}
	if b.Leg != nil {
		leg, err := domain.ParseLeg(*b.Leg)
		if err != nil {
			return domain.TripPatch{}, errors.New(unwrapMessage(err))
		}
		p.Leg = &leg
	}
	return p, nil
}

// tripToResponse converts a domain.Trip into its API shape.
func tripToResponse(t domain.Trip) TripResponse {
	return TripResponse{
		ID:             t.ID,
		DriverName:     t.DriverName,
		DriverCompany:  t.DriverCompany,
		ClientName:     t.ClientName,
		RouteName:      t.RouteName,
		StartDate:      apiDate(t.StartDate),
		EndDate:        apiDate(t.EndDate),
		StartDisplay:   domain.FormatOptionalDate(t.StartDate),
		EndDisplay:     domain.FormatOptionalDate(t.EndDate),
		Leg:            t.Leg,
		DocumentNumber: t.DocumentNumber,
		Notes:          t.Notes,
		Status:         t.Status,
		ArchivedAt:     t.ArchivedAt,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func tripsToResponse(trips []domain.Trip) TripList {
	data := make([]TripResponse, len(trips))
	for i, t := range trips {
		data[i] = tripToResponse(t)
	}
	return TripList{Data: data}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
