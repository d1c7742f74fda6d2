package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/fleet-schedule/internal/domain"
	"github.com/pkordes/fleet-schedule/internal/service"
)

// CompanyRequest is the body of POST and PUT on /clients and /subcontractors.
type CompanyRequest struct {
	Name    string `json:"name"`
	EIK     string `json:"eik"`
	Address string `json:"address"`
	MOL     string `json:"mol"`
}

// CompanyResponse is a client or subcontractor as returned by the API.
type CompanyResponse struct {
	ID        openapi_types.UUID `json:"id"`
	Kind      domain.CompanyKind `json:"kind"`
	Name      string             `json:"name"`
	EIK       string             `json:"eik"`
	Address   string             `json:"address"`
	MOL       string             `json:"mol"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// RouteRequest is the body of POST /routes and PUT /routes/{id}.
type RouteRequest struct {
	Name          string               `json:"name"`
	From          string               `json:"from"`
	To            string               `json:"to"`
	DistanceKm    *float64             `json:"distance_km"`
	DurationDays  *int                 `json:"duration_days"`
	Bidirectional bool                 `json:"bidirectional"`
	Notes         string               `json:"notes"`
	ClientIDs     []openapi_types.UUID `json:"client_ids"`
}

// RouteResponse is a route as returned by the API.
type RouteResponse struct {
	ID            openapi_types.UUID   `json:"id"`
	Name          string               `json:"name"`
	From          string               `json:"from"`
	To            string               `json:"to"`
	DistanceKm    *float64             `json:"distance_km,omitempty"`
	DurationDays  *int                 `json:"duration_days,omitempty"`
	Bidirectional bool                 `json:"bidirectional"`
	Notes         string               `json:"notes"`
	ClientIDs     []openapi_types.UUID `json:"client_ids"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// RelationRequest is the body of POST /trips/relation: an outbound trip
// and optionally its return. Dates are "DD.MM.YYYY" or "YYYY-MM-DD"; an
// absent end date is suggested from the route.
type RelationRequest struct {
	DriverName           string                 `json:"driver_name"`
	ClientName           string                 `json:"client_name"`
	RouteName            string                 `json:"route_name"`
	StartDate            *string                `json:"start_date"`
	EndDate              *string                `json:"end_date"`
	Notes                string                 `json:"notes"`
	DocumentNumber       string                 `json:"document_number"`
	AssignDocumentNumber bool                   `json:"assign_document_number"`
	Return               *RelationReturnRequest `json:"return"`
}

// RelationReturnRequest is the return leg of a RelationRequest.
type RelationReturnRequest struct {
	RouteName string  `json:"route_name"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
	Notes     string  `json:"notes"`
}

// companyRoutes serves the collection of one company kind.
func (s *Server) companyRoutes(kind domain.CompanyKind) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) { s.listCompanies(w, r, kind) })
		r.Post("/", func(w http.ResponseWriter, r *http.Request) { s.saveCompany(w, r, kind, uuid.Nil, http.StatusCreated) })
		r.Post("/bulk", func(w http.ResponseWriter, r *http.Request) { s.bulkSaveCompanies(w, r, kind) })
		r.Get("/duplicate", func(w http.ResponseWriter, r *http.Request) { s.checkDuplicateName(w, r, kind) })
		r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, err := pathID(r)
			if err != nil {
				writeBadRequest(w, err.Error())
				return
			}
			s.saveCompany(w, r, kind, id, http.StatusOK)
		})
		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) { s.deleteCompany(w, r, kind) })
	}
}

// listCompanies handles GET /clients and GET /subcontractors, optionally
// filtered by ?q=.
func (s *Server) listCompanies(w http.ResponseWriter, r *http.Request, kind domain.CompanyKind) {
	var q *string
	if err := queryParam(r, "q", &q); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	cs, err := s.reference.ListCompanies(r.Context(), kind, deref(q))
	if err != nil {
		writeError(w, r, err, string(kind)+" not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": companiesToResponse(cs)})
}

func (s *Server) saveCompany(w http.ResponseWriter, r *http.Request, kind domain.CompanyKind, id uuid.UUID, status int) {
	var body CompanyRequest
	if err := decodeBody(r, &body); err != nil {
		writeBodyError(w, err)
		return
	}
	saved, err := s.reference.SaveCompany(r.Context(), requestToCompany(kind, id, body))
	if err != nil {
		writeError(w, r, err, string(kind)+" not found")
		return
	}
	writeJSON(w, status, companyToResponse(saved))
}

// bulkSaveCompanies handles POST /clients/bulk and POST
// /subcontractors/bulk.
func (s *Server) bulkSaveCompanies(w http.ResponseWriter, r *http.Request, kind domain.CompanyKind) {
	var body []CompanyRequest
	if err := decodeBody(r, &body); err != nil {
		writeBodyError(w, err)
		return
	}
	cs := make([]domain.Company, len(body))
	for i, b := range body {
		cs[i] = requestToCompany(kind, uuid.Nil, b)
	}
	saved, err := s.reference.BulkSaveCompanies(r.Context(), kind, cs)
	if err != nil {
		writeError(w, r, err, string(kind)+" not found")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"data": companiesToResponse(saved)})
}

// checkDuplicateName handles GET /clients/duplicate?name=&ignore=, the
// check the entry form runs while typing.
func (s *Server) checkDuplicateName(w http.ResponseWriter, r *http.Request, kind domain.CompanyKind) {
	var (
		name   *string
		ignore *openapi_types.UUID
	)
	if err := queryParam(r, "name", &name); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := queryParam(r, "ignore", &ignore); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(deref(name)) == "" {
		writeBadRequest(w, "name is required")
		return
	}
	ignoreID := uuid.Nil
	if ignore != nil {
		ignoreID = *ignore
	}
	dup, err := s.reference.IsDuplicateName(r.Context(), kind, *name, ignoreID)
	if err != nil {
		writeError(w, r, err, string(kind)+" not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"duplicate": dup})
}

func (s *Server) deleteCompany(w http.ResponseWriter, r *http.Request, kind domain.CompanyKind) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := s.reference.DeleteCompany(r.Context(), kind, id); err != nil {
		writeError(w, r, err, string(kind)+" not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRoutes handles GET /routes?q=&client=. With client set only the
// routes bound to that client are returned.
func (s *Server) ListRoutes(w http.ResponseWriter, r *http.Request) {
	var (
		q      *string
		client *openapi_types.UUID
	)
	if err := queryParam(r, "q", &q); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := queryParam(r, "client", &client); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var (
		routes []domain.Route
		err    error
	)
	if client != nil {
		routes, err = s.reference.RoutesForClient(r.Context(), *client)
	} else {
		routes, err = s.reference.ListRoutes(r.Context(), deref(q))
	}
	if err != nil {
		writeError(w, r, err, "route not found")
		return
	}
	if client != nil {
		routes = filterRoutes(routes, deref(q))
	}
	out := make([]RouteResponse, len(routes))
	for i, rt := range routes {
		out[i] = routeToResponse(rt)
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

// CreateRoute handles POST /routes.
func (s *Server) CreateRoute(w http.ResponseWriter, r *http.Request) {
	s.saveRoute(w, r, uuid.Nil, http.StatusCreated)
}

// PutRoute handles PUT /routes/{id}.
func (s *Server) PutRoute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	s.saveRoute(w, r, id, http.StatusOK)
}

func (s *Server) saveRoute(w http.ResponseWriter, r *http.Request, id uuid.UUID, status int) {
	var body RouteRequest
	if err := decodeBody(r, &body); err != nil {
		writeBodyError(w, err)
		return
	}
	saved, err := s.reference.SaveRoute(r.Context(), requestToRoute(id, body))
	if err != nil {
		writeError(w, r, err, "route not found")
		return
	}
	writeJSON(w, status, routeToResponse(saved))
}

// BulkCreateRoutes handles POST /routes/bulk.
func (s *Server) BulkCreateRoutes(w http.ResponseWriter, r *http.Request) {
	var body []RouteRequest
	if err := decodeBody(r, &body); err != nil {
		writeBodyError(w, err)
		return
	}
	rs := make([]domain.Route, len(body))
	for i, b := range body {
		rs[i] = requestToRoute(uuid.Nil, b)
	}
	saved, err := s.reference.BulkSaveRoutes(r.Context(), rs)
	if err != nil {
		writeError(w, r, err, "route not found")
		return
	}
	out := make([]RouteResponse, len(saved))
	for i, rt := range saved {
		out[i] = routeToResponse(rt)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"data": out})
}

// DeleteRoute handles DELETE /routes/{id}.
func (s *Server) DeleteRoute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := s.reference.DeleteRoute(r.Context(), id); err != nil {
		writeError(w, r, err, "route not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSuggestedEnd handles GET /routes/suggest-end?route=&start=: the
// unload date proposed for a trip on the route.
func (s *Server) GetSuggestedEnd(w http.ResponseWriter, r *http.Request) {
	var route, start *string
	if err := queryParam(r, "route", &route); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := queryParam(r, "start", &start); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if start == nil {
		writeBadRequest(w, "start is required")
		return
	}
	from, err := parseDate(*start)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	end, err := s.reference.SuggestEnd(r.Context(), deref(route), from)
	if err != nil {
		writeError(w, r, err, "route not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"end_date": openapi_types.Date{Time: end}})
}

// GetReferenceExport handles GET /reference/export as a JSON attachment.
func (s *Server) GetReferenceExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.reference.Export(r.Context())
	if err != nil {
		writeError(w, r, err, "not found")
		return
	}
	name := "reference-" + data.ExportedAt.Format("2006-01-02") + ".json"
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	writeJSON(w, http.StatusOK, data)
}

// ImportReference handles POST /reference/import with a document produced
// by GET /reference/export.
func (s *Server) ImportReference(w http.ResponseWriter, r *http.Request) {
	var body domain.ReferenceData
	if err := decodeBody(r, &body); err != nil {
		writeBodyError(w, err)
		return
	}
	res, err := s.reference.Import(r.Context(), body)
	if err != nil {
		writeError(w, r, err, "not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CreateRelation handles POST /trips/relation: the outbound trip and its
// optional return are added together.
func (s *Server) CreateRelation(w http.ResponseWriter, r *http.Request) {
	var body RelationRequest
	if err := decodeBody(r, &body); err != nil {
		writeBodyError(w, err)
		return
	}
	in, err := requestToRelation(body)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	trips, err := s.reference.PlanRelation(r.Context(), in)
	if err != nil {
		writeError(w, r, err, "route not found")
		return
	}
	ids, err := s.schedule.BulkAdd(r.Context(), trips)
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

// --- mapping helpers --------------------------------------------------------

func requestToCompany(kind domain.CompanyKind, id uuid.UUID, b CompanyRequest) domain.Company {
	return domain.Company{ID: id, Kind: kind, Name: b.Name, EIK: b.EIK, Address: b.Address, MOL: b.MOL}
}

func companyToResponse(c domain.Company) CompanyResponse {
	return CompanyResponse{
		ID:        c.ID,
		Kind:      c.Kind,
		Name:      c.Name,
		EIK:       c.EIK,
		Address:   c.Address,
		MOL:       c.MOL,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func companiesToResponse(cs []domain.Company) []CompanyResponse {
	out := make([]CompanyResponse, len(cs))
	for i, c := range cs {
		out[i] = companyToResponse(c)
	}
	return out
}

func requestToRoute(id uuid.UUID, b RouteRequest) domain.Route {
	return domain.Route{
		ID:            id,
		Name:          b.Name,
		From:          b.From,
		To:            b.To,
		DistanceKm:    b.DistanceKm,
		DurationDays:  b.DurationDays,
		Bidirectional: b.Bidirectional,
		Notes:         b.Notes,
		ClientIDs:     b.ClientIDs,
	}
}

func routeToResponse(rt domain.Route) RouteResponse {
	clients := rt.ClientIDs
	if clients == nil {
		clients = []uuid.UUID{}
	}
	return RouteResponse{
		ID:            rt.ID,
		Name:          rt.Name,
		From:          rt.From,
		To:            rt.To,
		DistanceKm:    rt.DistanceKm,
		DurationDays:  rt.DurationDays,
		Bidirectional: rt.Bidirectional,
		Notes:         rt.Notes,
		ClientIDs:     clients,
		CreatedAt:     rt.CreatedAt,
		UpdatedAt:     rt.UpdatedAt,
	}
}

func filterRoutes(rs []domain.Route, q string) []domain.Route {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return rs
	}
	out := []domain.Route{}
	for _, rt := range rs {
		if strings.Contains(strings.ToLower(rt.Name), q) {
			out = append(out, rt)
		}
	}
	return out
}

func requestToRelation(b RelationRequest) (service.RelationInput, error) {
	start, err := optionalDate(b.StartDate)
	if err != nil {
		return service.RelationInput{}, err
	}
	end, err := optionalDate(b.EndDate)
	if err != nil {
		return service.RelationInput{}, err
	}
	in := service.RelationInput{
		DriverName:           strings.TrimSpace(b.DriverName),
		ClientName:           strings.TrimSpace(b.ClientName),
		RouteName:            strings.TrimSpace(b.RouteName),
		StartDate:            start,
		EndDate:              end,
		Notes:                b.Notes,
		DocumentNumber:       strings.TrimSpace(b.DocumentNumber),
		AssignDocumentNumber: b.AssignDocumentNumber,
	}
	if ret := b.Return; ret != nil {
		rs, err := optionalDate(ret.StartDate)
		if err != nil {
			return service.RelationInput{}, err
		}
		re, err := optionalDate(ret.EndDate)
		if err != nil {
			return service.RelationInput{}, err
		}
		in.Return = &service.RelationLeg{
			RouteName: strings.TrimSpace(ret.RouteName),
			StartDate: rs,
			EndDate:   re,
			Notes:     ret.Notes,
		}
	}
	return in, nil
}
