package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/fleet-schedule/internal/domain"
	"github.com/pkordes/fleet-schedule/internal/handler"
	"github.com/pkordes/fleet-schedule/internal/service"
)

func TestListClients_PassesKindAndQuery(t *testing.T) {
	ref := &mockReference{
		listCompanies: func(_ context.Context, kind domain.CompanyKind, q string) ([]domain.Company, error) {
			assert.Equal(t, domain.CompanyClient, kind)
			assert.Equal(t, "petrol", q)
			return []domain.Company{{ID: uuid.New(), Kind: kind, Name: "Petrol AD"}}, nil
		},
	}
	rec := httptest.NewRecorder()
	newHTTPHandler(handler.Deps{Reference: ref}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clients?q=petrol", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data []handler.CompanyResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Petrol AD", resp.Data[0].Name)
}

func TestCreateSubcontractor_201(t *testing.T) {
	var got domain.Company
	ref := &mockReference{
		saveCompany: func(_ context.Context, c domain.Company) (domain.Company, error) {
			got = c
			c.ID = uuid.New()
			return c, nil
		},
	}
	body := jsonBody(t, map[string]any{"name": "Kaka Lachka EOOD", "eik": "204"})
	rec := httptest.NewRecorder()
	newHTTPHandler(handler.Deps{Reference: ref}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/subcontractors", body))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, domain.CompanySubcontractor, got.Kind)
	assert.Equal(t, uuid.Nil, got.ID)
	assert.Equal(t, "204", got.EIK)
}

func TestPutClient_422_DuplicateName(t *testing.T) {
	id := uuid.New()
	ref := &mockReference{
		saveCompany: func(_ context.Context, c domain.Company) (domain.Company, error) {
			assert.Equal(t, id, c.ID)
			return domain.Company{}, fmt.Errorf("service.ReferenceService.SaveCompany: %w: client %q already exists", domain.ErrValidation, c.Name)
		},
	}
	rec := httptest.NewRecorder()
	newHTTPHandler(handler.Deps{Reference: ref}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/clients/"+id.String(), jsonBody(t, map[string]any{"name": "Petrol AD"})))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, `client "Petrol AD" already exists`, resp.Error.Message)
}

func TestDeleteClient_404(t *testing.T) {
	ref := &mockReference{
		deleteCompany: func(_ context.Context, kind domain.CompanyKind, _ uuid.UUID) error {
			assert.Equal(t, domain.CompanyClient, kind)
			return fmt.Errorf("repo: %w", domain.ErrNotFound)
		},
	}
	rec := httptest.NewRecorder()
	newHTTPHandler(handler.Deps{Reference: ref}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/clients/"+uuid.New().String(), nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBulkCreateClients_201(t *testing.T) {
	ref := &mockReference{
		bulkSaveCompanies: func(_ context.Context, kind domain.CompanyKind, cs []domain.Company) ([]domain.Company, error) {
			assert.Equal(t, domain.CompanyClient, kind)
			require.Len(t, cs, 2)
			return cs, nil
		},
	}
	body := jsonBody(t, []map[string]any{{"name": "A"}, {"name": "B"}})
	rec := httptest.NewRecorder()
	newHTTPHandler(handler.Deps{Reference: ref}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/clients/bulk", body))

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestClientDuplicate(t *testing.T) {
	ignore := uuid.New()
	ref := &mockReference{
		isDuplicateName: func(_ context.Context, _ domain.CompanyKind, name string, got uuid.UUID) (bool, error) {
			assert.Equal(t, "Petrol AD", name)
			assert.Equal(t, ignore, got)
			return true, nil
		},
	}
	h := newHTTPHandler(handler.Deps{Reference: ref})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clients/duplicate?name=Petrol%20AD&ignore="+ignore.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"duplicate":true}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clients/duplicate", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "name is required")
}

func TestListRoutes_ByClient(t *testing.T) {
	client := uuid.New()
	ref := &mockReference{
		routesForClient: func(_ context.Context, id uuid.UUID) ([]domain.Route, error) {
			assert.Equal(t, client, id)
			return []domain.Route{
				{ID: uuid.New(), Name: "Sofia → Varna", ClientIDs: []uuid.UUID{client}},
				{ID: uuid.New(), Name: "Ruse → Burgas", ClientIDs: []uuid.UUID{client}},
			}, nil
		},
	}
	rec := httptest.NewRecorder()
	newHTTPHandler(handler.Deps{Reference: ref}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/routes?client="+client.String()+"&q=varna", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data []handler.RouteResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Sofia → Varna", resp.Data[0].Name)
}

func TestListRoutes_422_BadClient(t *testing.T) {
	rec := httptest.NewRecorder()
	newHTTPHandler(handler.Deps{Reference: &mockReference{}}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/routes?client=nope", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateRoute_201(t *testing.T) {
	client := uuid.New()
	ref := &mockReference{
		saveRoute: func(_ context.Context, r domain.Route) (domain.Route, error) {
			assert.Equal(t, []uuid.UUID{client}, r.ClientIDs)
			require.NotNil(t, r.DurationDays)
			assert.Equal(t, 2, *r.DurationDays)
			r.ID = uuid.New()
			return r, nil
		},
	}
	body := jsonBody(t, map[string]any{"from": "Sofia", "to": "Varna", "duration_days": 2, "client_ids": []string{client.String()}})
	rec := httptest.NewRecorder()
	newHTTPHandler(handler.Deps{Reference: ref}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/routes", body))

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestGetSuggestedEnd(t *testing.T) {
	ref := &mockReference{
		suggestEnd: func(_ context.Context, route string, start time.Time) (time.Time, error) {
			assert.Equal(t, "Sofia → Varna", route)
			return domain.AddDays(start, 2), nil
		},
	}
	h := newHTTPHandler(handler.Deps{Reference: ref})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/routes/suggest-end?route=Sofia%20%E2%86%92%20Varna&start=10.09.2025", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"end_date":"2025-09-12"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/routes/suggest-end?route=x", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "start is required")
}

func TestGetReferenceExport_Attachment(t *testing.T) {
	ref := &mockReference{
		export: func(context.Context) (domain.ReferenceData, error) {
			return domain.ReferenceData{
				Version:    domain.ReferenceDataVersion,
				ExportedAt: time.Date(2025, 9, 10, 8, 0, 0, 0, time.UTC),
				Clients:    []domain.Company{{Name: "Petrol AD"}},
			}, nil
		},
	}
	rec := httptest.NewRecorder()
	newHTTPHandler(handler.Deps{Reference: ref}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reference/export", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="reference-2025-09-10.json"`, rec.Header().Get("Content-Disposition"))
	var got domain.ReferenceData
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, 2, got.Version)
	require.Len(t, got.Clients, 1)
}

func TestImportReference(t *testing.T) {
	ref := &mockReference{
		importData: func(_ context.Context, data domain.ReferenceData) (service.ImportResult, error) {
			require.Len(t, data.Routes, 1)
			return service.ImportResult{Routes: 1}, nil
		},
	}
	body := jsonBody(t, map[string]any{"version": 2, "routes": []map[string]any{{"name": "Express"}}})
	rec := httptest.NewRecorder()
	newHTTPHandler(handler.Deps{Reference: ref}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reference/import", body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"clients":0,"subcontractors":0,"routes":1}`, rec.Body.String())
}

func TestCreateRelation_AddsBothLegs(t *testing.T) {
	outID, backID := uuid.New(), uuid.New()
	ref := &mockReference{
		planRelation: func(_ context.Context, in service.RelationInput) ([]domain.TripInput, error) {
			assert.Equal(t, "Ivan", in.DriverName)
			require.NotNil(t, in.Return)
			assert.Equal(t, domain.MustParseDate("12.09.2025"), *in.Return.StartDate)
			return []domain.TripInput{{RouteName: in.RouteName}, {RouteName: in.Return.RouteName, Leg: domain.LegReturn}}, nil
		},
	}
	svc := &mockSchedule{
		bulkAdd: func(_ context.Context, ins []domain.TripInput) ([]uuid.UUID, error) {
			require.Len(t, ins, 2)
			assert.Equal(t, domain.LegReturn, ins[1].Leg)
			return []uuid.UUID{outID, backID}, nil
		},
	}
	body := jsonBody(t, map[string]any{
		"driver_name": " Ivan ",
		"client_name": "Petrol AD",
		"route_name":  "Sofia → Varna",
		"start_date":  "10.09.2025",
		"return":      map[string]any{"route_name": "Varna → Sofia", "start_date": "2025-09-12"},
	})
	rec := httptest.NewRecorder()
	newHTTPHandler(handler.Deps{Schedule: svc, Reference: ref}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trips/relation", body))

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp []handler.IDResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 2)
	assert.Equal(t, backID, resp[1].ID)
}

func TestCreateRelation_422_Invalid(t *testing.T) {
	ref := &mockReference{
		planRelation: func(context.Context, service.RelationInput) ([]domain.TripInput, error) {
			return nil, fmt.Errorf("%w: driver is required", domain.ErrValidation)
		},
	}
	svc := &mockSchedule{
		bulkAdd: func(context.Context, []domain.TripInput) ([]uuid.UUID, error) {
			t.Fatal("nothing is added when the relation is invalid")
			return nil, nil
		},
	}
	rec := httptest.NewRecorder()
	newHTTPHandler(handler.Deps{Schedule: svc, Reference: ref}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trips/relation", jsonBody(t, map[string]any{"client_name": "Petrol AD"})))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
