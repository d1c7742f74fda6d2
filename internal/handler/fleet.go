package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/fleet-schedule/internal/domain"
)

// DriverRequest is the body of POST /drivers and PUT /drivers/{id}.
// Expiry dates are "DD.MM.YYYY" or "YYYY-MM-DD"; empty means unknown.
type DriverRequest struct {
	Name             string  `json:"name"`
	Phone            string  `json:"phone"`
	Company          string  `json:"company"`
	IsOwn            bool    `json:"is_own"`
	Tractor          string  `json:"tractor"`
	Tanker           string  `json:"tanker"`
	DriverCardExpiry *string `json:"driver_card_expiry"`
	ADRExpiry        *string `json:"adr_expiry"`
}

// DriverResponse is a driver as returned by the API.
type DriverResponse struct {
	ID               openapi_types.UUID  `json:"id"`
	Name             string              `json:"name"`
	Phone            string              `json:"phone"`
	Company          string              `json:"company"`
	IsOwn            bool                `json:"is_own"`
	Tractor          string              `json:"tractor"`
	Tanker           string              `json:"tanker"`
	DriverCardExpiry *openapi_types.Date `json:"driver_card_expiry,omitempty"`
	ADRExpiry        *openapi_types.Date `json:"adr_expiry,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// VehicleRequest is the body of POST /vehicles and PUT /vehicles/{id}.
type VehicleRequest struct {
	Number           string  `json:"number"`
	Kind             string  `json:"kind"`
	InsuranceExpiry  *string `json:"insurance_expiry"`
	ADRExpiry        *string `json:"adr_expiry"`
	InspectionExpiry *string `json:"inspection_expiry"`
	Brand            string  `json:"brand"`
	Model            string  `json:"model"`
	VIN              string  `json:"vin"`
	Notes            string  `json:"notes"`
}

// VehicleResponse is a vehicle as returned by the API.
type VehicleResponse struct {
	ID               openapi_types.UUID  `json:"id"`
	Number           string              `json:"number"`
	Kind             domain.VehicleKind  `json:"kind"`
	InsuranceExpiry  *openapi_types.Date `json:"insurance_expiry,omitempty"`
	ADRExpiry        *openapi_types.Date `json:"adr_expiry,omitempty"`
	InspectionExpiry *openapi_types.Date `json:"inspection_expiry,omitempty"`
	Brand            string              `json:"brand"`
	Model            string              `json:"model"`
	VIN              string              `json:"vin"`
	Notes            string              `json:"notes"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// ComplianceResponse is one classified compliance document.
type ComplianceResponse struct {
	OwnerID   openapi_types.UUID  `json:"owner_id"`
	OwnerKind string              `json:"owner_kind"`
	OwnerName string              `json:"owner_name"`
	Document  domain.Document     `json:"document"`
	Date      *openapi_types.Date `json:"date,omitempty"`
	Status    domain.ExpiryStatus `json:"status"`
	Days      *int                `json:"days,omitempty"` // absent when no date is on file
}

// ListDrivers handles GET /drivers.
func (s *Server) ListDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := s.fleet.ListDrivers(r.Context())
	if err != nil {
		writeError(w, r, err, "driver not found")
		return
	}
	out := make([]DriverResponse, len(drivers))
	for i, d := range drivers {
		out[i] = driverToResponse(d)
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

// CreateDriver handles POST /drivers.
func (s *Server) CreateDriver(w http.ResponseWriter, r *http.Request) {
	s.saveDriver(w, r, uuid.Nil, http.StatusCreated)
}

// PutDriver handles PUT /drivers/{id}.
func (s *Server) PutDriver(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	s.saveDriver(w, r, id, http.StatusOK)
}

func (s *Server) saveDriver(w http.ResponseWriter, r *http.Request, id uuid.UUID, status int) {
	var body DriverRequest
	if err := decodeBody(r, &body); err != nil {
		writeBodyError(w, err)
		return
	}
	d, err := requestToDriver(id, body)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	saved, err := s.fleet.SaveDriver(r.Context(), d)
	if err != nil {
		writeError(w, r, err, "driver not found")
		return
	}
	writeJSON(w, status, driverToResponse(saved))
}

// DeleteDriver handles DELETE /drivers/{id}.
func (s *Server) DeleteDriver(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := s.fleet.DeleteDriver(r.Context(), id); err != nil {
		writeError(w, r, err, "driver not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAvailability handles GET /drivers/availability: who is on a trip today.
func (s *Server) GetAvailability(w http.ResponseWriter, r *http.Request) {
	out, err := s.fleet.Availability(r.Context(), s.schedule)
	if err != nil {
		writeError(w, r, err, "driver not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ListVehicles handles GET /vehicles.
func (s *Server) ListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := s.fleet.ListVehicles(r.Context())
	if err != nil {
		writeError(w, r, err, "vehicle not found")
		return
	}
	out := make([]VehicleResponse, len(vehicles))
	for i, v := range vehicles {
		out[i] = vehicleToResponse(v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

// CreateVehicle handles POST /vehicles.
func (s *Server) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	s.saveVehicle(w, r, uuid.Nil, http.StatusCreated)
}

// PutVehicle handles PUT /vehicles/{id}.
func (s *Server) PutVehicle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	s.saveVehicle(w, r, id, http.StatusOK)
}

func (s *Server) saveVehicle(w http.ResponseWriter, r *http.Request, id uuid.UUID, status int) {
	var body VehicleRequest
	if err := decodeBody(r, &body); err != nil {
		writeBodyError(w, err)
		return
	}
	v, err := requestToVehicle(id, body)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	saved, err := s.fleet.SaveVehicle(r.Context(), v)
	if err != nil {
		writeError(w, r, err, "vehicle not found")
		return
	}
	writeJSON(w, status, vehicleToResponse(saved))
}

// DeleteVehicle handles DELETE /vehicles/{id}.
func (s *Server) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := s.fleet.DeleteVehicle(r.Context(), id); err != nil {
		writeError(w, r, err, "vehicle not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetCompliance handles GET /compliance.
func (s *Server) GetCompliance(w http.ResponseWriter, r *http.Request) {
	items, err := s.fleet.Compliance(r.Context())
	if err != nil {
		writeError(w, r, err, "not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": complianceToResponse(items)})
}

// GetComplianceAlerts handles GET /compliance/alerts: expired and
// expiring-soon documents only, most urgent first.
func (s *Server) GetComplianceAlerts(w http.ResponseWriter, r *http.Request) {
	items, err := s.fleet.Alerts(r.Context())
	if err != nil {
		writeError(w, r, err, "not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": complianceToResponse(items)})
}

// --- mapping helpers --------------------------------------------------------

func requestToDriver(id uuid.UUID, b DriverRequest) (domain.Driver, error) {
	card, err := optionalDate(b.DriverCardExpiry)
	if err != nil {
		return domain.Driver{}, err
	}
	adr, err := optionalDate(b.ADRExpiry)
	if err != nil {
		return domain.Driver{}, err
	}
	return domain.Driver{
		ID:               id,
		Name:             b.Name,
		Phone:            strings.TrimSpace(b.Phone),
		Company:          strings.TrimSpace(b.Company),
		IsOwn:            b.IsOwn,
		Tractor:          strings.TrimSpace(b.Tractor),
		Tanker:           strings.TrimSpace(b.Tanker),
		DriverCardExpiry: card,
		ADRExpiry:        adr,
	}, nil
}

func driverToResponse(d domain.Driver) DriverResponse {
	return DriverResponse{
		ID:               d.ID,
		Name:             d.Name,
		Phone:            d.Phone,
		Company:          d.Company,
		IsOwn:            d.IsOwn,
		Tractor:          d.Tractor,
		Tanker:           d.Tanker,
		DriverCardExpiry: apiDate(d.DriverCardExpiry),
		ADRExpiry:        apiDate(d.ADRExpiry),
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func requestToVehicle(id uuid.UUID, b VehicleRequest) (domain.Vehicle, error) {
	dates := make([]*time.Time, 3)
	for i, s := range []*string{b.InsuranceExpiry, b.ADRExpiry, b.InspectionExpiry} {
		d, err := optionalDate(s)
		if err != nil {
			return domain.Vehicle{}, err
		}
		dates[i] = d
	}
	return domain.Vehicle{
		ID:               id,
		Number:           b.Number,
		Kind:             domain.VehicleKind(strings.ToLower(strings.TrimSpace(b.Kind))),
		InsuranceExpiry:  dates[0],
		ADRExpiry:        dates[1],
		InspectionExpiry: dates[2],
		Brand:            b.Brand,
		Model:            b.Model,
		VIN:              strings.TrimSpace(b.VIN),
		Notes:            b.Notes,
	}, nil
}

func vehicleToResponse(v domain.Vehicle) VehicleResponse {
	return VehicleResponse{
		ID:               v.ID,
		Number:           v.Number,
		Kind:             v.Kind,
		InsuranceExpiry:  apiDate(v.InsuranceExpiry),
		ADRExpiry:        apiDate(v.ADRExpiry),
		InspectionExpiry: apiDate(v.InspectionExpiry),
		Brand:            v.Brand,
		Model:            v.Model,
		VIN:              v.VIN,
		Notes:            v.Notes,
		CreatedAt:        v.CreatedAt,
		UpdatedAt:        v.UpdatedAt,
	}
}

func complianceToResponse(items []domain.ComplianceItem) []ComplianceResponse {
	out := make([]ComplianceResponse, len(items))
	for i, it := range items {
		var days *int
		if it.Expiry.Status != domain.ExpiryNotApplicable {
			days = &it.Expiry.Days
		}
		out[i] = ComplianceResponse{
			OwnerID:   it.OwnerID,
			OwnerKind: it.OwnerKind,
			OwnerName: it.OwnerName,
			Document:  it.Document,
			Date:      apiDate(it.Date),
			Status:    it.Expiry.Status,
			Days:      days,
		}
	}
	return out
}
