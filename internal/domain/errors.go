package domain

import "errors"

// Domain error kinds. Callers distinguish them with errors.Is; wrapped
// messages carry the offending field or status pair so they can be surfaced
// verbatim. ErrConcurrentModification is the only kind a caller should retry.
var (
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrUnauthenticated        = errors.New("unauthenticated")
	ErrForbidden              = errors.New("forbidden")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrAlreadyRated           = errors.New("already rated")
	ErrNotYetResolvable       = errors.New("not yet resolvable")
	ErrIdentifierUnavailable  = errors.New("identifier unavailable")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrNotFound               = errors.New("not found")

	// ErrStoreFailure marks store-level failures (connectivity, constraint
	// violations) as distinct from request-was-invalid domain errors.
	ErrStoreFailure = errors.New("store failure")
)
