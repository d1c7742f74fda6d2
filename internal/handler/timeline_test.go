package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/fleet-schedule/internal/domain"
	"github.com/pkordes/fleet-schedule/internal/handler"
)

func TestGetTimeline_DefaultsToToday(t *testing.T) {
	trip := tripFixture() // 10.09 - 12.09, driver Ivan
	unassigned := tripFixture()
	unassigned.DriverName = ""
	svc := &mockSchedule{upcoming: func() []domain.Trip { return []domain.Trip{trip, unassigned} }}

	rec := httptest.NewRecorder()
	newHTTPHandler(handler.Deps{Schedule: svc}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/timeline", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp handler.TimelineResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "2025-09-10", resp.Start.String())
	assert.Len(t, resp.Days, 7)
	assert.Equal(t, 120.0, resp.DayWidth)
	assert.Equal(t, []string{"Ivan"}, resp.Rows)
	require.Len(t, resp.Bars, 1)
	assert.Equal(t, trip.ID, resp.Bars[0].TripID)
	assert.Equal(t, 0.0, resp.Bars[0].Left)
	assert.Equal(t, 360.0, resp.Bars[0].Width)
	assert.Equal(t, "Lukoil · Burgas - Sofia", resp.Bars[0].Label)
}

func TestGetTimeline_ExplicitWindow(t *testing.T) {
	svc := &mockSchedule{upcoming: func() []domain.Trip { return []domain.Trip{tripFixture()} }}

	rec := httptest.NewRecorder()
	newHTTPHandler(handler.Deps{Schedule: svc}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/timeline?start=11.09.2025&days=3&dayWidth=50", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp handler.TimelineResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "2025-09-11", resp.Start.String())
	assert.Len(t, resp.Days, 3)
	require.Len(t, resp.Bars, 1)
	// The trip began the day before the window: only 11.09 and 12.09 show.
	assert.Equal(t, 0.0, resp.Bars[0].Left)
	assert.Equal(t, 100.0, resp.Bars[0].Width)
}

func TestGetTimeline_422(t *testing.T) {
	h := newHTTPHandler(handler.Deps{Schedule: &mockSchedule{}})
	for _, q := range []string{"?days=400", "?start=tomorrow", "?dayWidth=wide"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/timeline"+q, nil))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, q)
	}
}

func TestGetNextDocumentNumber(t *testing.T) {
	var (
		gotDate   time.Time
		gotLeg    domain.Leg
		gotCommit bool
	)
	nums := &mockNumbers{
		next: func(_ context.Context, date time.Time, leg domain.Leg, commit bool) (string, error) {
			gotDate, gotLeg, gotCommit = date, leg, commit
			return "7/10.09", nil
		},
	}
	h := newHTTPHandler(handler.Deps{Numbers: nums})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/next", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"document_number":"7/10.09"}`, rec.Body.String())
	assert.Equal(t, today, gotDate)
	assert.Equal(t, domain.LegOutbound, gotLeg)
	assert.False(t, gotCommit)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/next?date=2025-09-15&commit=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.MustParseDate("15.09.2025"), gotDate)
	assert.True(t, gotCommit)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/next?leg=sideways", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
