package core

import (
	"sync"
)

// Criteria narrows a bookmark query. Zero-value fields are ignored; pointer
// fields distinguish "unset" from legitimate zero values (line 0, empty
// text).
type Criteria struct {
	ID              string
	DocumentID      string // derived-document ID for mirrors
	SourceURI       string
	Line            *int
	LinkedID        string
	OccurrenceIndex *int
	LineText        *string
}

// Store is the authoritative bookmark set plus line-indexed lookup
// structures. All mutations go through a single writer lock, so the store
// stays consistent regardless of which goroutine the debounced batches run
// on.
type Store struct {
	mu sync.RWMutex

	bookmarks map[string]Bookmark

	// mirrorIndex maps derived-document ID -> line -> bookmark IDs.
	mirrorIndex map[string]map[int][]string

	// sourceIndex maps source URI -> line -> bookmark IDs (sources only).
	sourceIndex map[string]map[int][]string
}

// NewStore creates an empty bookmark store.
func NewStore() *Store {
	return &Store{
		bookmarks:   make(map[string]Bookmark),
		mirrorIndex: make(map[string]map[int][]string),
		sourceIndex: make(map[string]map[int][]string),
	}
}

// Add upserts a bookmark by ID. When updating, an existing LinkedID is
// preserved if the incoming record lacks one, so a re-anchor pass can never
// sever an established Source/Mirror pair by accident.
func (s *Store) Add(b Bookmark) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.bookmarks[b.ID]; ok {
		if b.LinkedID == "" {
			b.LinkedID = old.LinkedID
		}
		s.unindex(old)
	}

	s.bookmarks[b.ID] = b
	s.index(b)
}

// Remove deletes a bookmark and its index entries. Removing an unknown ID
// is a no-op, not an error. If the bookmark had a LinkedID, the partner's
// back-reference is cleared only if the partner still points at it.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookmarks[id]
	if !ok {
		return
	}

	s.unindex(b)
	delete(s.bookmarks, id)

	if b.LinkedID != "" {
		if partner, ok := s.bookmarks[b.LinkedID]; ok && partner.LinkedID == id {
			partner.LinkedID = ""
			s.bookmarks[partner.ID] = partner
		}
	}
}

// Get retrieves a bookmark by ID.
func (s *Store) Get(id string) (Bookmark, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookmarks[id]
	return b, ok
}

// Query returns all bookmarks matching the criteria. Lookups by ID or by
// (document, line) / (sourceURI, line) hit the indices; anything else is a
// full scan filtered by the remaining fields.
func (s *Store) Query(c Criteria) []Bookmark {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Fast path: direct ID lookup.
	if c.ID != "" {
		if b, ok := s.bookmarks[c.ID]; ok && s.matches(b, c) {
			return []Bookmark{b}
		}
		return nil
	}

	// Fast path: indexed (document, line) lookups.
	if c.Line != nil {
		if c.DocumentID != "" {
			return s.collect(s.mirrorIndex[c.DocumentID][*c.Line], c)
		}
		if c.SourceURI != "" {
			return s.collect(s.sourceIndex[c.SourceURI][*c.Line], c)
		}
	}

	var out []Bookmark
	for _, b := range s.bookmarks {
		if s.matches(b, c) {
			out = append(out, b)
		}
	}
	return out
}

// All returns every bookmark in the store.
func (s *Store) All() []Bookmark {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Bookmark, 0, len(s.bookmarks))
	for _, b := range s.bookmarks {
		out = append(out, b)
	}
	return out
}

// ForDocument returns every bookmark living in the given document, whether
// as a source or as a mirror.
func (s *Store) ForDocument(documentID string) []Bookmark {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Bookmark
	for _, b := range s.bookmarks {
		if b.DocumentID() == documentID {
			out = append(out, b)
		}
	}
	return out
}

// PurgeSource removes every bookmark belonging to a source document,
// including mirrors in derived views. Used when the source is deleted.
func (s *Store) PurgeSource(sourceURI string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int
	for id, b := range s.bookmarks {
		if b.SourceURI != sourceURI {
			continue
		}
		s.unindex(b)
		delete(s.bookmarks, id)
		removed++
	}
	return removed
}

// Len returns the number of bookmarks in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bookmarks)
}

func (s *Store) collect(ids []string, c Criteria) []Bookmark {
	var out []Bookmark
	for _, id := range ids {
		if b, ok := s.bookmarks[id]; ok && s.matches(b, c) {
			out = append(out, b)
		}
	}
	return out
}

func (s *Store) matches(b Bookmark, c Criteria) bool {
	if c.SourceURI != "" && b.SourceURI != c.SourceURI {
		return false
	}
	if c.DocumentID != "" && !(b.Anchor.Kind == AnchorMirror && b.Anchor.DocumentID == c.DocumentID) {
		return false
	}
	if c.Line != nil && b.LineNumber != *c.Line {
		return false
	}
	if c.LinkedID != "" && b.LinkedID != c.LinkedID {
		return false
	}
	if c.OccurrenceIndex != nil && b.Context.OccurrenceIndex != *c.OccurrenceIndex {
		return false
	}
	if c.LineText != nil && b.LineText != *c.LineText {
		return false
	}
	return true
}

// index adds b to the line index matching its anchor kind.
// Callers hold the write lock.
func (s *Store) index(b Bookmark) {
	idx, key := s.indexFor(b)
	lines, ok := idx[key]
	if !ok {
		lines = make(map[int][]string)
		idx[key] = lines
	}
	lines[b.LineNumber] = append(lines[b.LineNumber], b.ID)
}

// unindex removes b's entry. Callers hold the write lock.
func (s *Store) unindex(b Bookmark) {
	idx, key := s.indexFor(b)
	lines, ok := idx[key]
	if !ok {
		return
	}
	ids := lines[b.LineNumber]
	for i, id := range ids {
		if id == b.ID {
			lines[b.LineNumber] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(lines[b.LineNumber]) == 0 {
		delete(lines, b.LineNumber)
	}
	if len(lines) == 0 {
		delete(idx, key)
	}
}

func (s *Store) indexFor(b Bookmark) (map[string]map[int][]string, string) {
	if b.Anchor.Kind == AnchorMirror {
		return s.mirrorIndex, b.Anchor.DocumentID
	}
	return s.sourceIndex, b.SourceURI
}
