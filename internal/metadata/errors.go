package metadata

import "errors"

// ErrUnavailable marks a metadata lookup that failed after retries were
// exhausted. Callers must treat this as "skip the show, keep prior ledger
// state", never as "the show has zero episodes".
var ErrUnavailable = errors.New("metadata unavailable")

// ErrNotFound marks a show that could not be resolved to a TMDB id. It is
// surfaced to the user as needing a manual override, not retried.
var ErrNotFound = errors.New("show not found")
