// Bookmark is the central entity of the domain.
package core

import (
	"strings"
	"time"
)

// AnchorKind distinguishes the canonical bookmark from its mirrors.
type AnchorKind int

const (
	// AnchorSource marks the canonical bookmark living in the origin document.
	AnchorSource AnchorKind = iota

	// AnchorMirror marks a bookmark living in a derived (filtered) view.
	AnchorMirror
)

// String returns a human-readable name for the anchor kind.
func (k AnchorKind) String() string {
	switch k {
	case AnchorSource:
		return "source"
	case AnchorMirror:
		return "mirror"
	default:
		return "unknown"
	}
}

// Anchor identifies where a bookmark lives. A mirror carries the ID of the
// derived document it belongs to; for a source anchor DocumentID is empty
// and the bookmark lives in its SourceURI document.
//
// This replaces the "empty document ID means canonical" convention: the kind
// is explicit, so an actually-empty derived-document ID can never be
// mistaken for a source bookmark.
type Anchor struct {
	Kind       AnchorKind `json:"kind"`
	DocumentID string     `json:"documentId,omitempty"`
}

// Source returns a canonical anchor.
func Source() Anchor {
	return Anchor{Kind: AnchorSource}
}

// Mirror returns an anchor bound to a derived document.
func Mirror(documentID string) Anchor {
	return Anchor{Kind: AnchorMirror, DocumentID: documentID}
}

// AnchorContext is the positional fingerprint captured around a bookmark.
// It is used for re-anchoring after edits, never for display.
type AnchorContext struct {
	// BeforeLines holds up to N trimmed lines preceding the anchor,
	// in document order (the last element is the line immediately above).
	BeforeLines []string `json:"beforeLines"`

	// AfterLines holds up to N trimmed lines following the anchor,
	// in document order (the first element is the line immediately below).
	AfterLines []string `json:"afterLines"`

	// OccurrenceIndex counts lines with identical trimmed text appearing
	// earlier in the same document. Negative means "not recorded".
	OccurrenceIndex int `json:"occurrenceIndex"`

	// RelativePosition is lineNumber / total-line-count at capture time.
	// It is a tie-break signal only, never authoritative.
	RelativePosition float64 `json:"relativePosition"`
}

// Bookmark is a user-marked line of interest in a document.
type Bookmark struct {
	ID         string        `json:"id"`
	Anchor     Anchor        `json:"anchor"`
	SourceURI  string        `json:"sourceUri"`
	LineNumber int           `json:"lineNumber"` // 0-based, current best-known line
	LineText   string        `json:"lineText"`   // trimmed text at last successful anchor
	Label      string        `json:"label,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
	LinkedID   string        `json:"linkedId,omitempty"` // paired Source/Mirror bookmark
	Context    AnchorContext `json:"context"`
}

// DocumentID returns the identifier of the document this bookmark lives in:
// the derived document for mirrors, the source URI otherwise.
func (b Bookmark) DocumentID() string {
	if b.Anchor.Kind == AnchorMirror {
		return b.Anchor.DocumentID
	}
	return b.SourceURI
}

// IsSource reports whether this is the canonical bookmark.
func (b Bookmark) IsSource() bool {
	return b.Anchor.Kind == AnchorSource
}

// Edit describes a single contiguous change to a document, expressed in
// 0-based line coordinates. Text is the replacement for the range.
type Edit struct {
	StartLine int
	EndLine   int
	Text      string
}

// SingleLine reports whether the edit touches exactly one line and does not
// introduce or remove newlines. Such edits qualify for the cheap in-place
// re-anchor path.
func (e Edit) SingleLine() bool {
	return e.StartLine == e.EndLine && !strings.Contains(e.Text, "\n")
}

// LinkState tracks the reciprocal-link handshake of a Source/Mirror pair.
// Transient asymmetry (PendingLink) is tolerated during synchronization and
// must settle to Linked within one sync pass.
type LinkState int

const (
	Unlinked LinkState = iota
	PendingLink
	Linked
)

// String returns a human-readable name for the link state.
func (s LinkState) String() string {
	switch s {
	case Unlinked:
		return "unlinked"
	case PendingLink:
		return "pending"
	case Linked:
		return "linked"
	default:
		return "unknown"
	}
}

// EventType represents the type of change observable by presentation
// collaborators.
type EventType string

const (
	EventCreate  EventType = "CREATE"
	EventModify  EventType = "MODIFY"
	EventDelete  EventType = "DELETE"
	EventRefresh EventType = "REFRESH"
)

// Event represents an observable change in the bookmark set.
type Event struct {
	Type      EventType
	ID        string
	Timestamp int64 // Unix timestamp
}

// String implements lifecycle.Event so events can be bridged to supervised
// consumers.
func (e Event) String() string {
	return string(e.Type) + " " + e.ID
}
