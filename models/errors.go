package models

import "errors"

// Sentinel errors returned by every ledger mutation. Handlers match on these
// to pick an HTTP status; wrap with %w, never compare strings.
var (
	ErrNotFound           = errors.New("record not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrWorkCenterRequired = errors.New("work center is required")
	ErrAlreadyDispatched  = errors.New("already dispatched")
)
