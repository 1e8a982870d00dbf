package mirror

import "errors"

// ErrInvalidThreadURL is returned when a thread identifier fails validation
// before any fetch or cache access.
var ErrInvalidThreadURL = errors.New("mirror: invalid thread URL")

// ErrThreadNotCached is returned when a stale-fallback read finds no cache
// entry to fall back to.
var ErrThreadNotCached = errors.New("mirror: thread not cached")
