package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest      = errors.New("bad request")
	ErrKeyInFlight     = errors.New("idempotency key is being processed")
	ErrMissingDeadline = errors.New("registration_deadline is required")
)
