package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: a uniqueness constraint was violated
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrAccountBlocked: account exists but is blocked for balance mutation
// - ErrInsufficientBalance: a debit would drive the balance negative
// - ErrDestinationUnavailable: transfer destination missing or blocked
// - ErrUnavailable: transient store failure (retryable serialization conflict)
//
// For validation errors (bad input, missing fields), use pkg/domain-errors
// directly.
var (
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrInvalidState           = errors.New("invalid state")
	ErrAccountBlocked         = errors.New("account blocked")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrDestinationUnavailable = errors.New("destination unavailable")
	ErrUnavailable            = errors.New("unavailable")
)
