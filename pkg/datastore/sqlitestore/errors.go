package sqlitestore

import "errors"

// ErrNotFound is returned when a preference row does not exist.
var ErrNotFound = errors.New("sqlitestore: not found")
