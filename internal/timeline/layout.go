package timeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/fleet-schedule/internal/domain"
)

// Bar is one trip drawn on the timeline.
type Bar struct {
	TripID    uuid.UUID         `json:"trip_id"`
	Row       int               `json:"row"`
	Left      float64           `json:"left"`
	Width     float64           `json:"width"`
	Label     string            `json:"label"`
	Status    domain.TripStatus `json:"status"`
	Draggable bool              `json:"draggable"`
}

// Layout is everything a client needs to draw one window of the timeline.
type Layout struct {
	Start    time.Time   `json:"start"`
	End      time.Time   `json:"end"`
	Days     []time.Time `json:"days"`
	DayWidth float64     `json:"day_width"`
	Rows     []string    `json:"rows"`
	Bars     []Bar       `json:"bars"`
}

// Build lays out trips in w: one row per driver, one bar per trip that
// intersects the window. Trips without a driver are left out.
func Build(w Window, trips []domain.Trip) Layout {
	rows := Rows(trips)
	index := make(map[string]int, len(rows))
	for i, name := range rows {
		index[name] = i
	}

	bars := []Bar{}
	for _, t := range trips {
		row, ok := index[trimmed(t.DriverName)]
		if !ok {
			continue
		}
		left, width, visible := w.Span(t.StartDate, t.EndDate)
		if !visible {
			continue
		}
		bars = append(bars, Bar{
			TripID:    t.ID,
			Row:       row,
			Left:      left,
			Width:     width,
			Label:     label(t),
			Status:    t.Status,
			Draggable: t.StartDate != nil,
		})
	}

	return Layout{
		Start:    w.Start,
		End:      w.End(),
		Days:     w.Dates(),
		DayWidth: w.DayWidth,
		Rows:     rows,
		Bars:     bars,
	}
}

func label(t domain.Trip) string {
	if t.RouteName == "" {
		return t.ClientName
	}
	if t.ClientName == "" {
		return t.RouteName
	}
	return t.ClientName + " · " + t.RouteName
}
