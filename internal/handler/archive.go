package handler

import (
	"net/http"
)

// ArchiveResult reports whether a single archive or restore moved a trip.
// Moved is false when the trip was not in the source set, which is not an
// error.
type ArchiveResult struct {
	Moved bool `json:"moved"`
}

// ArchiveCount reports how many trips a bulk archive moved.
type ArchiveCount struct {
	Archived int `json:"archived"`
}

// ArchiveAutoRequest is the body of POST /archive/auto.
type ArchiveAutoRequest struct {
	CutoffDays int `json:"cutoff_days"`
}

// ArchiveUntilRequest is the body of POST /archive/until.
type ArchiveUntilRequest struct {
	Date string `json:"date"`
}

// ListArchive handles GET /archive, most recently ended first.
func (s *Server) ListArchive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tripsToResponse(s.schedule.Archived()))
}

// ArchiveTrip handles POST /trips/{id}/archive.
func (s *Server) ArchiveTrip(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	moved, err := s.schedule.ArchiveByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, ArchiveResult{Moved: moved})
}

// RestoreTrip handles POST /archive/{id}/restore.
func (s *Server) RestoreTrip(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	moved, err := s.schedule.UnarchiveByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, ArchiveResult{Moved: moved})
}

// UpdateArchivedTrip handles PATCH /archive/{id}. The trip stays archived.
func (s *Server) UpdateArchivedTrip(w http.ResponseWriter, r *http.Request) {
	s.patch(w, r, s.schedule.UpdateArchived)
}

// GetArchiveStatus handles GET /archive/{id}/status.
func (s *Server) GetArchiveStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"archived": s.schedule.IsArchived(id)})
}

// ArchiveAuto handles POST /archive/auto: archives live trips that ended
// more than cutoff_days ago.
func (s *Server) ArchiveAuto(w http.ResponseWriter, r *http.Request) {
	var body ArchiveAutoRequest
	if err := decodeBody(r, &body); err != nil {
		writeBodyError(w, err)
		return
	}
	n, err := s.schedule.ArchiveAuto(r.Context(), body.CutoffDays)
	if err != nil {
		writeError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, ArchiveCount{Archived: n})
}

// ArchiveUntil handles POST /archive/until: archives live trips that ended
// on or before date.
func (s *Server) ArchiveUntil(w http.ResponseWriter, r *http.Request) {
	var body ArchiveUntilRequest
	if err := decodeBody(r, &body); err != nil {
		writeBodyError(w, err)
		return
	}
	date, err := parseDate(body.Date)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	n, err := s.schedule.ArchiveUntil(r.Context(), date)
	if err != nil {
		writeError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, ArchiveCount{Archived: n})
}
