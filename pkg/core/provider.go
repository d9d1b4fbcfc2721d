package core

import "context"

// DocumentProvider gives the matcher and coordinator access to document
// text. Adhering to this interface keeps the core independent of where
// documents actually live (filesystem, editor buffers, in-memory views).
//
// Implementations return ErrDocumentGone (wrapped) for a document that no
// longer exists; they never panic.
type DocumentProvider interface {
	// Lines returns every line of the document, unstripped.
	Lines(ctx context.Context, documentID string) ([]string, error)

	// Line returns a single line. Out-of-range lines are an ErrNotFound.
	Line(ctx context.Context, documentID string, line int) (string, error)

	// LineCount returns the number of lines in the document.
	LineCount(ctx context.Context, documentID string) (int, error)
}

// SearchExecutor produces the line set of a derived view by applying an
// ordered chain of filter steps to a source document. The core treats its
// output purely as an opaque line array to re-anchor against.
type SearchExecutor interface {
	// Execute runs the chain identified by chainID against the source
	// document and returns the resulting lines.
	Execute(ctx context.Context, sourceURI string, chainID string) ([]string, error)
}

// DocumentWriter is implemented by providers that can host derived
// documents. Regenerated views are published through it.
type DocumentWriter interface {
	Set(documentID string, lines []string)
}

// Persister serializes and deserializes the full bookmark set. Workspace
// path rewriting (location-relative round-tripping) is the persister's
// concern, not the core's.
type Persister interface {
	Save(ctx context.Context, bookmarks []Bookmark) error
	Load(ctx context.Context) ([]Bookmark, error)
}
