package handler

import (
	"net/http"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/fleet-schedule/internal/timeline"
)

// TimelineResponse is a timeline.Layout with ISO dates.
type TimelineResponse struct {
	Start    openapi_types.Date   `json:"start"`
	End      openapi_types.Date   `json:"end"`
	Days     []openapi_types.Date `json:"days"`
	DayWidth float64              `json:"day_width"`
	Rows     []string             `json:"rows"`
	Bars     []timeline.Bar       `json:"bars"`
}

// GetTimeline handles GET /timeline?start=&days=&dayWidth=.
// It lays out the upcoming trips, one row per driver. start defaults to
// today, days to 7 and dayWidth to 120.
func (s *Server) GetTimeline(w http.ResponseWriter, r *http.Request) {
	var (
		start    *string
		days     *int
		dayWidth *float64
	)
	if err := queryParam(r, "start", &start); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := queryParam(r, "days", &days); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := queryParam(r, "dayWidth", &dayWidth); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	from := s.clock.Today()
	if d, err := optionalDate(start); err != nil {
		writeBadRequest(w, err.Error())
		return
	} else if d != nil {
		from = *d
	}
	if deref(days) > 366 {
		writeBadRequest(w, "days must not exceed 366")
		return
	}

	win := timeline.NewWindow(from, deref(days), deref(dayWidth))
	layout := timeline.Build(win, s.schedule.Upcoming())

	out := TimelineResponse{
		Start:    openapi_types.Date{Time: layout.Start},
		End:      openapi_types.Date{Time: layout.End},
		Days:     make([]openapi_types.Date, len(layout.Days)),
		DayWidth: layout.DayWidth,
		Rows:     layout.Rows,
		Bars:     layout.Bars,
	}
	for i, d := range layout.Days {
		out.Days[i] = openapi_types.Date{Time: d}
	}
	writeJSON(w, http.StatusOK, out)
}
