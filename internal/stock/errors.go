package stock

import "errors"

// Business-rule errors are surfaced to callers as-is and are never retried.
// ErrVersionConflict stays inside the engine: the use case retries it and
// surfaces ErrContention once the retry budget is spent. Contention is
// transient and safe to retry after a backoff; everything else means the
// input has to change.
var (
	ErrNotFound              = errors.New("stock record not found")
	ErrDuplicateLocation     = errors.New("stock record already exists for this location and item")
	ErrInsufficientAvailable = errors.New("insufficient available stock")
	ErrInsufficientQuantity  = errors.New("insufficient quantity on hand")
	ErrInsufficientDefective = errors.New("insufficient defective units")
	ErrInvalidCancellation   = errors.New("cancellation exceeds reserved quantity")
	ErrInvalidInput          = errors.New("invalid input")
	ErrVersionConflict       = errors.New("stock record version conflict")
	ErrContention            = errors.New("stock record under contention, retries exhausted")
)
