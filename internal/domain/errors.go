package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// trip, driver or vehicle does not exist.
// Handlers map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails a business rule (missing client
// or route, end date before start date, unknown leg).
// Handlers map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")
