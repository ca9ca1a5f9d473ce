package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// and services translate them into domain failures:
// - ErrNotFound: no row matches the lookup
// - ErrConflict: a uniqueness constraint rejected the write
// - ErrExhausted: a finite resource has no capacity left
// - ErrUnavailable: the backing store could not be reached
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrExhausted   = errors.New("exhausted")
	ErrUnavailable = errors.New("unavailable")
)
