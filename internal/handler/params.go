package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/fleet-schedule/internal/domain"
)

// pathID binds the {id} path parameter.
func pathID(r *http.Request) (uuid.UUID, error) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id: %w", err)
	}
	return id, nil
}

// queryParam binds an optional form-style query parameter into dest, which
// must be a pointer to a pointer (e.g. **int).
func queryParam(r *http.Request, name string, dest any) error {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dest); err != nil {
		return fmt.Errorf("invalid query parameter %s: %w", name, err)
	}
	return nil
}

// parseDate accepts "DD.MM.YYYY" or "YYYY-MM-DD".
func parseDate(s string) (time.Time, error) {
	t, ok := domain.ParseDisplayDate(strings.TrimSpace(s))
	if !ok {
		return time.Time{}, fmt.Errorf("invalid date %q: want DD.MM.YYYY or YYYY-MM-DD", s)
	}
	return t, nil
}

// optionalDate parses s, treating nil and "" as no date.
func optionalDate(s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := parseDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// apiDate converts a stored date for output.
func apiDate(t *time.Time) *openapi_types.Date {
	if t == nil {
		return nil
	}
	return &openapi_types.Date{Time: *t}
}

var errNoBody = errors.New("request body is required")

// decodeBody decodes the JSON request body into v. An oversized body
// reports *http.MaxBytesError.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return errNoBody
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errNoBody
		}
		return err
	}
	return nil
}

// writeBodyError reports a body that could not be decoded.
func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: ErrorDetail{
			Code:    "request_too_large",
			Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
		}})
		return
	}
	if errors.Is(err, errNoBody) {
		writeBadRequest(w, err.Error())
		return
	}
	writeBadRequest(w, "malformed request body: "+err.Error())
}
