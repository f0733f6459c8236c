package client

import "errors"

// Errors for client construction.
var (
	ErrEndpointRequired = errors.New("endpoint is required")
	ErrSignerRequired   = errors.New("signer is required")
)

// Errors for input validation.
var (
	ErrEmptyPath     = errors.New("path is required")
	ErrEmptyJobID    = errors.New("job id is required")
	ErrNoKeys        = errors.New("no keys provided")
	ErrNilJob        = errors.New("job definition is required")
	ErrInvalidEntry  = errors.New("listing entry has an unknown type")
	ErrEmptyLocation = errors.New("response has no location")
)
