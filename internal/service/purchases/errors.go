package purchases

import "errors"

var (
	ErrPurchaseNotFound = errors.New("purchase not found")
	ErrAlreadyCancelled = errors.New("purchase already cancelled")
	ErrRateLimited      = errors.New("rate limited")

	// ErrPersistence marks a durable write that failed after the
	// computation succeeded. The in-memory result is not committed; the
	// caller must retry the whole operation so state is recomputed from the
	// freshly reloaded source of truth.
	ErrPersistence = errors.New("persistence failed")
)
