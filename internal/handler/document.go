package handler

import (
	"net/http"

	"github.com/pkordes/fleet-schedule/internal/domain"
)

// GetNextDocumentNumber handles GET /documents/next?date=&leg=&commit=.
// Without commit=true it previews the number the next outbound trip dated
// date would receive.
func (s *Server) GetNextDocumentNumber(w http.ResponseWriter, r *http.Request) {
	var (
		date, leg *string
		commit    *bool
	)
	if err := queryParam(r, "date", &date); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := queryParam(r, "leg", &leg); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := queryParam(r, "commit", &commit); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	on := s.clock.Today()
	if d, err := optionalDate(date); err != nil {
		writeBadRequest(w, err.Error())
		return
	} else if d != nil {
		on = *d
	}
	l, err := domain.ParseLeg(deref(leg))
	if err != nil {
		writeError(w, r, err, "")
		return
	}

	number, err := s.numbers.Next(r.Context(), on, l, deref(commit))
	if err != nil {
		writeError(w, r, err, "counter not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"document_number": number})
}
