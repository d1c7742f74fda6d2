package handler

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/pkordes/fleet-schedule/internal/domain"
)

// csvHeaders defines the column names written as the first row of any CSV export.
var csvHeaders = []string{
	"index", "trip_id", "driver", "company", "client", "route",
	"start_date", "end_date", "leg", "status", "document_number", "notes",
}

// GetExport implements GET /export?set=live|archive&format=csv|json.
// It returns one flat row per trip of the chosen set. Default is the live
// set as JSON.
func (s *Server) GetExport(w http.ResponseWriter, r *http.Request) {
	var set, format *string
	if err := queryParam(r, "set", &set); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := queryParam(r, "format", &format); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	coll := domain.CollectionLive
	switch deref(set) {
	case "", "live":
	case "archive":
		coll = domain.CollectionArchive
	default:
		writeBadRequest(w, "set must be live or archive")
		return
	}

	rows, err := s.export.Export(coll)
	if err != nil {
		writeError(w, r, err, "not found")
		return
	}

	switch deref(format) {
	case "", "json":
		writeJSON(w, http.StatusOK, rows)
	case "csv":
		writeCSV(w, coll, rows)
	default:
		writeBadRequest(w, "format must be csv or json")
	}
}

// writeCSV encodes rows as an attachment named after the set and today's
// date.
func writeCSV(w http.ResponseWriter, coll domain.Collection, rows []domain.ExportRow) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	//nolint:errcheck // bytes.Buffer.Write never returns an error.
	cw.Write(csvHeaders)
	for _, r := range rows {
		//nolint:errcheck
		cw.Write(domainRowToCSVRecord(r))
	}
	cw.Flush()

	name := string(coll) + "-" + time.Now().Format("2006-01-02") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// domainRowToCSVRecord encodes a domain.ExportRow as a flat string slice.
func domainRowToCSVRecord(r domain.ExportRow) []string {
	return []string{
		strconv.Itoa(r.Index),
		r.TripID,
		r.DriverName,
		r.DriverCompany,
		r.ClientName,
		r.RouteName,
		r.StartDate,
		r.EndDate,
		r.Leg,
		r.Status,
		r.DocumentNumber,
		r.Notes,
	}
}
