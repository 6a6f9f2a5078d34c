package persistence

import "errors"

// ErrNotFound is returned when no stored event matches the requested
// identifier.
var ErrNotFound = errors.New("persistence: event not found")
