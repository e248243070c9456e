package domain

import "errors"

// Error kinds for the caching subsystem. The degradation controller catches
// all of these and converts them into a fallback path; they never reach the
// user as errors of the caching layer.
var (
	// ErrStoreUnavailable covers I/O, permission, corruption, and lock
	// timeout failures of the persistent store.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrSchemaError means the store opened but its tables or columns do
	// not match the expected shape.
	ErrSchemaError = errors.New("store schema mismatch")

	// ErrCacheUnavailable wraps any cache manager operation failure.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrCacheDisabled is returned while the circuit breaker is open.
	ErrCacheDisabled = errors.New("cache disabled")

	// ErrEntryNotFound means no cache entry exists for the given hash.
	ErrEntryNotFound = errors.New("cache entry not found")
)
