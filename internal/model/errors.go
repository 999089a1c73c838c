package model

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")

	// ErrUnderstandingUnavailable is the hard-stop failure when the
	// understanding service stays down past its retry budget.
	ErrUnderstandingUnavailable = errors.New("understanding unavailable")
)
