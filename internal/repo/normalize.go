package repo

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/fleet-schedule/internal/domain"
)

// legacyIDSpace namespaces the UUIDs derived for documents whose key is not
// itself a UUID (records written by the older web dashboard).
var legacyIDSpace = uuid.MustParse("6f1c2a4e-3d7b-4e8a-9c55-0b2f7d1e9a63")

// docIDToUUID maps a document key to a trip ID. UUID keys map to themselves;
// any other key maps to a stable name-based UUID.
func docIDToUUID(key string) uuid.UUID {
	if id, err := uuid.Parse(key); err == nil {
		return id
	}
	return uuid.NewSHA1(legacyIDSpace, []byte(key))
}

// firstString returns the first non-blank string value among keys.
func firstString(data map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := data[k]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// firstDate returns the first value among keys that holds a date, accepting
// stored timestamps as well as display and input format strings.
func firstDate(data map[string]any, keys ...string) *time.Time {
	for _, k := range keys {
		switch v := data[k].(type) {
		case time.Time:
			if !v.IsZero() {
				d := domain.DateOf(v)
				return &d
			}
		case string:
			if d, ok := domain.ParseDisplayDate(v); ok {
				return &d
			}
		}
	}
	return nil
}

func firstTime(data map[string]any, keys ...string) *time.Time {
	for _, k := range keys {
		if v, ok := data[k].(time.Time); ok && !v.IsZero() {
			return &v
		}
	}
	return nil
}

// normalizeTrip maps a stored trip document to the canonical Trip.
// Older records use other field names (date/unloadDate, driver, company,
// komandirovka) and Bulgarian leg labels; all of them are folded here so
// nothing past the repo ever sees them.
func normalizeTrip(key string, data map[string]any) (domain.Trip, error) {
	t := domain.Trip{
		ID:             docIDToUUID(key),
		DriverName:     firstString(data, "driverName", "driver"),
		ClientName:     firstString(data, "clientName", "company", "client"),
		RouteName:      firstString(data, "routeName", "route", "relation", "title"),
		StartDate:      firstDate(data, "startDate", "date"),
		EndDate:        firstDate(data, "endDate", "unloadDate"),
		DocumentNumber: firstString(data, "documentNumber", "komandirovka"),
		Notes:          firstString(data, "notes"),
		ArchivedAt:     firstTime(data, "archivedAt"),
	}
	leg, err := domain.ParseLeg(firstString(data, "leg"))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("document %s: %w", key, err)
	}
	t.Leg = leg
	if c := firstTime(data, "createdAt"); c != nil {
		t.CreatedAt = *c
	}
	if u := firstTime(data, "updatedAt"); u != nil {
		t.UpdatedAt = *u
	}
	return t, nil
}

// tripDocument is the canonical stored form of a trip. Dates are stored as
// input-format strings so they sort lexically; status is written for
// external readers only and never read back.
func tripDocument(t domain.Trip) map[string]any {
	doc := map[string]any{
		"id":             t.ID.String(),
		"driverName":     t.DriverName,
		"clientName":     t.ClientName,
		"routeName":      t.RouteName,
		"startDate":      optionalInputDate(t.StartDate),
		"endDate":        optionalInputDate(t.EndDate),
		"leg":            t.Leg.String(),
		"documentNumber": t.DocumentNumber,
		"notes":          t.Notes,
		"status":         t.Status.String(),
		"createdAt":      t.CreatedAt,
		"updatedAt":      t.UpdatedAt,
	}
	if t.ArchivedAt != nil {
		doc["archivedAt"] = *t.ArchivedAt
	} else {
		doc["archivedAt"] = nil
	}
	return doc
}

func optionalInputDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return domain.FormatInputDate(*t)
}

// normalizeDriver maps a stored driver document to the canonical Driver.
func normalizeDriver(key string, data map[string]any) domain.Driver {
	d := domain.Driver{
		ID:               docIDToUUID(key),
		Name:             firstString(data, "name"),
		Phone:            firstString(data, "phone"),
		Company:          firstString(data, "company"),
		Tractor:          firstString(data, "tractor"),
		Tanker:           firstString(data, "tanker"),
		DriverCardExpiry: firstDate(data, "driverCardExpiry"),
		ADRExpiry:        firstDate(data, "adrExpiry"),
	}
	if own, ok := data["isOwn"].(bool); ok {
		d.IsOwn = own
	}
	if c := firstTime(data, "createdAt"); c != nil {
		d.CreatedAt = *c
	}
	if u := firstTime(data, "updatedAt"); u != nil {
		d.UpdatedAt = *u
	}
	return d
}

func driverDocument(d domain.Driver) map[string]any {
	return map[string]any{
		"name":             d.Name,
		"phone":            d.Phone,
		"company":          d.Company,
		"isOwn":            d.IsOwn,
		"tractor":          d.Tractor,
		"tanker":           d.Tanker,
		"driverCardExpiry": optionalInputDate(d.DriverCardExpiry),
		"adrExpiry":        optionalInputDate(d.ADRExpiry),
		"createdAt":        d.CreatedAt,
		"updatedAt":        d.UpdatedAt,
	}
}

// normalizeVehicle maps a stored tractor or tanker document. Older records
// kept insurance as goExpiry and inspection as techExpiry.
func normalizeVehicle(key string, data map[string]any, defaultKind domain.VehicleKind) domain.Vehicle {
	v := domain.Vehicle{
		ID:               docIDToUUID(key),
		Number:           firstString(data, "number"),
		Kind:             domain.VehicleKind(firstString(data, "kind", "type")),
		InsuranceExpiry:  firstDate(data, "insuranceExpiry", "goExpiry"),
		ADRExpiry:        firstDate(data, "adrExpiry"),
		InspectionExpiry: firstDate(data, "inspectionExpiry", "techExpiry"),
		Brand:            firstString(data, "brand"),
		Model:            firstString(data, "model"),
		VIN:              firstString(data, "vin"),
		Notes:            firstString(data, "notes"),
	}
	if v.Kind != domain.VehicleTractor && v.Kind != domain.VehicleTanker {
		// The first dashboard called tractors "truck".
		v.Kind = defaultKind
	}
	if c := firstTime(data, "createdAt"); c != nil {
		v.CreatedAt = *c
	}
	if u := firstTime(data, "updatedAt"); u != nil {
		v.UpdatedAt = *u
	}
	return v
}

func vehicleDocument(v domain.Vehicle) map[string]any {
	return map[string]any{
		"number":           v.Number,
		"kind":             string(v.Kind),
		"insuranceExpiry":  optionalInputDate(v.InsuranceExpiry),
		"adrExpiry":        optionalInputDate(v.ADRExpiry),
		"inspectionExpiry": optionalInputDate(v.InspectionExpiry),
		"brand":            v.Brand,
		"model":            v.Model,
		"vin":              v.VIN,
		"notes":            v.Notes,
		"createdAt":        v.CreatedAt,
		"updatedAt":        v.UpdatedAt,
	}
}

// normalizeCompany maps a stored client or subcontractor document. Some
// early clients were saved with the name under company or client.
func normalizeCompany(key string, data map[string]any, kind domain.CompanyKind) domain.Company {
	c := domain.Company{
		ID:      docIDToUUID(key),
		Kind:    kind,
		Name:    firstString(data, "name", "company", "client"),
		EIK:     firstString(data, "eik"),
		Address: firstString(data, "address"),
		MOL:     firstString(data, "mol"),
	}
	if t := firstTime(data, "createdAt"); t != nil {
		c.CreatedAt = *t
	}
	if t := firstTime(data, "updatedAt"); t != nil {
		c.UpdatedAt = *t
	}
	return c
}

func companyDocument(c domain.Company) map[string]any {
	return map[string]any{
		"name":      c.Name,
		"eik":       c.EIK,
		"address":   c.Address,
		"mol":       c.MOL,
		"createdAt": c.CreatedAt,
		"updatedAt": c.UpdatedAt,
	}
}

// normalizeRoute maps a stored route document. The dashboard wrote an empty
// string for an unknown distance or duration and sometimes a numeric
// string for a known one; clientIds hold the document keys of clients.
func normalizeRoute(key string, data map[string]any) domain.Route {
	r := domain.Route{
		ID:         docIDToUUID(key),
		Name:       firstString(data, "name", "route"),
		From:       firstString(data, "from"),
		To:         firstString(data, "to"),
		DistanceKm: firstNumber(data, "distance"),
		Notes:      firstString(data, "notes"),
	}
	if d := firstNumber(data, "duration"); d != nil {
		days := int(*d)
		r.DurationDays = &days
	}
	if b, ok := data["isBidirectional"].(bool); ok {
		r.Bidirectional = b
	}
	if ids, ok := data["clientIds"].([]any); ok {
		for _, v := range ids {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				r.ClientIDs = append(r.ClientIDs, docIDToUUID(strings.TrimSpace(s)))
			}
		}
	}
	if t := firstTime(data, "createdAt"); t != nil {
		r.CreatedAt = *t
	}
	if t := firstTime(data, "updatedAt"); t != nil {
		r.UpdatedAt = *t
	}
	r.Normalize()
	return r
}

func routeDocument(r domain.Route) map[string]any {
	clients := make([]string, len(r.ClientIDs))
	for i, id := range r.ClientIDs {
		clients[i] = id.String()
	}
	doc := map[string]any{
		"name":            r.Name,
		"from":            r.From,
		"to":              r.To,
		"distance":        "",
		"duration":        "",
		"isBidirectional": r.Bidirectional,
		"notes":           r.Notes,
		"clientIds":       clients,
		"createdAt":       r.CreatedAt,
		"updatedAt":       r.UpdatedAt,
	}
	if r.DistanceKm != nil {
		doc["distance"] = *r.DistanceKm
	}
	if r.DurationDays != nil {
		doc["duration"] = int64(*r.DurationDays)
	}
	return doc
}

// firstNumber returns the first positive number among keys, accepting
// numeric strings.
func firstNumber(data map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		var f float64
		switch v := data[k].(type) {
		case int64:
			f = float64(v)
		case float64:
			f = v
		case string:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				continue
			}
			f = parsed
		default:
			continue
		}
		if f > 0 {
			return &f
		}
	}
	return nil
}
