package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// and services translate them into protocol or domain errors:
//   - ErrNotFound: no row matched, including rows filtered out by lifecycle
//     predicates such as an already consumed code
//   - ErrExpired: a flow or code is past its lifetime
//   - ErrConflict: a uniqueness constraint rejected the write
//   - ErrUnavailable: the backing store could not be reached
var (
	ErrNotFound    = errors.New("not found")
	ErrExpired     = errors.New("expired")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
