package query

import "errors"

var (
	ErrClosed = errors.New("query client closed")
	// ErrNotFetchable is returned for keys that have no loader, e.g. entries
	// that only ever came from hydration.
	ErrNotFetchable = errors.New("query has no loader")
)
