package core

import "errors"

// Common errors.
var (
	// ErrNotFound indicates a document, bookmark, or target line is absent.
	// Recoverable: callers degrade to empty results, never to a crash.
	ErrNotFound = errors.New("not found")

	// ErrDocumentGone indicates the target document no longer exists
	// (deleted or moved). The affected bookmark is left in its last-known
	// state.
	ErrDocumentGone = errors.New("document gone")

	// ErrStaleBatch indicates a debounced batch became stale because the
	// document changed again mid-processing. The batch is re-queued, not
	// applied.
	ErrStaleBatch = errors.New("stale batch")
)
