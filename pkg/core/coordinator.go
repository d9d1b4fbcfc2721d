package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Coordinator keeps a canonical bookmark and its mirrors in derived views
// consistent. It owns the association between source documents and the
// derived views currently generated from them, the reciprocal-link state of
// every Source/Mirror pair, and the last-saved text used by Revert.
//
// Failures on one document never roll back updates already applied to
// another: consistency is eventual, restored on the next edit or view
// regeneration.
type Coordinator struct {
	store    *Store
	matcher  *Matcher
	provider DocumentProvider
	logger   *slog.Logger

	mu sync.Mutex

	// views maps source URI -> set of derived-document IDs.
	views map[string]map[string]bool

	// links tracks the handshake state per Source/Mirror pair.
	links map[string]LinkState

	// saved maps bookmark ID -> line text at last save, for Revert.
	saved map[string]string
}

// NewCoordinator wires a coordinator over the store, matcher and document
// provider.
func NewCoordinator(store *Store, matcher *Matcher, provider DocumentProvider, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:    store,
		matcher:  matcher,
		provider: provider,
		logger:   logger,
		views:    make(map[string]map[string]bool),
		links:    make(map[string]LinkState),
		saved:    make(map[string]string),
	}
}

// AttachView associates a derived document with its source. Subsequent
// propagation passes will maintain mirrors in it.
func (c *Coordinator) AttachView(sourceURI, documentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.views[sourceURI]
	if !ok {
		set = make(map[string]bool)
		c.views[sourceURI] = set
	}
	set[documentID] = true
}

// DetachView drops the association and removes all mirrors living in the
// derived document. Their source bookmarks survive.
func (c *Coordinator) DetachView(sourceURI, documentID string) {
	c.mu.Lock()
	delete(c.views[sourceURI], documentID)
	if len(c.views[sourceURI]) == 0 {
		delete(c.views, sourceURI)
	}
	c.mu.Unlock()

	for _, m := range c.store.Query(Criteria{DocumentID: documentID}) {
		c.clearLink(m.ID, m.LinkedID)
		c.store.Remove(m.ID)
	}
}

// Views returns the derived documents currently associated with a source.
func (c *Coordinator) Views(sourceURI string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []string
	for id := range c.views[sourceURI] {
		out = append(out, id)
	}
	return out
}

// LinkStateOf reports the handshake state of a bookmark pair. Exposed so
// tests can assert that transient asymmetry settles instead of being
// silently patched.
func (c *Coordinator) LinkStateOf(a, b string) LinkState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.links[pairKey(a, b)]
}

// PropagateFromSource finds or creates a mirror of the source bookmark in
// every derived document associated with its source: reuse one already
// linked by ID; else adopt an existing bookmark at the matched line whose
// occurrence index agrees; else synthesize a new mirror. Idempotent:
// repeated calls never create a second mirror for the same pair.
func (c *Coordinator) PropagateFromSource(ctx context.Context, src Bookmark) error {
	if !src.IsSource() {
		return fmt.Errorf("bookmark %s is not a source anchor", src.ID)
	}

	var firstErr error
	for _, docID := range c.Views(src.SourceURI) {
		if err := c.propagateToView(ctx, src, docID); err != nil {
			if c.logger != nil {
				c.logger.Warn("mirror propagation failed", "bookmark", src.ID, "document", docID, "error", err)
			}
			if firstErr == nil {
				firstErr = err
			}
			// Keep going: one bad view must not block the rest.
		}
	}
	return firstErr
}

func (c *Coordinator) propagateToView(ctx context.Context, src Bookmark, docID string) error {
	lines, err := c.provider.Lines(ctx, docID)
	if err != nil {
		return fmt.Errorf("derived document %s unavailable: %w", docID, err)
	}

	// Reuse the mirror already linked by ID.
	if src.LinkedID != "" {
		if m, ok := c.store.Get(src.LinkedID); ok && m.Anchor.DocumentID == docID {
			return c.refreshMirror(src, m, lines)
		}
	}
	// A previous pass may have linked the mirror without the source's
	// back-reference surviving; look it up by link target.
	for _, m := range c.store.Query(Criteria{DocumentID: docID, LinkedID: src.ID}) {
		return c.refreshMirror(src, m, lines)
	}

	line, ok := c.matcher.Match(src, docID, lines)
	if !ok {
		if c.logger != nil {
			c.logger.Debug("source not present in view", "bookmark", src.ID, "document", docID)
		}
		return nil
	}

	// Adopt an unlinked bookmark already at the matched line, if its
	// occurrence index agrees.
	occ := occurrenceIndex(lines, line)
	for _, cand := range c.store.Query(Criteria{DocumentID: docID, Line: &line}) {
		if cand.LinkedID == "" && cand.Context.OccurrenceIndex == occ {
			return c.linkPair(src, cand, lines, line)
		}
	}

	// Synthesize a new mirror.
	mirror := Bookmark{
		ID:         uuid.NewString(),
		Anchor:     Mirror(docID),
		SourceURI:  src.SourceURI,
		LineNumber: line,
		LineText:   strings.TrimSpace(lines[line]),
		Label:      src.Label,
		Timestamp:  time.Now(),
	}
	mirror.Context = CaptureContext(lines, line, c.matcher.Params().ContextWindow)
	return c.linkPair(src, mirror, lines, line)
}

// refreshMirror re-anchors an existing mirror against the view's current
// lines and heals a one-sided link.
func (c *Coordinator) refreshMirror(src, mirror Bookmark, lines []string) error {
	if line, ok := c.matcher.Match(src, mirror.Anchor.DocumentID, lines); ok {
		mirror.LineNumber = line
		mirror.LineText = strings.TrimSpace(lines[line])
		mirror.Context = CaptureContext(lines, line, c.matcher.Params().ContextWindow)
	}
	return c.linkPair(src, mirror, lines, mirror.LineNumber)
}

// linkPair writes both halves of the reciprocal link and advances the pair
// state machine to Linked.
func (c *Coordinator) linkPair(a, b Bookmark, lines []string, line int) error {
	key := pairKey(a.ID, b.ID)

	c.mu.Lock()
	if c.links[key] == Unlinked {
		c.links[key] = PendingLink
	}
	c.mu.Unlock()

	a.LinkedID = b.ID
	b.LinkedID = a.ID
	c.store.Add(a)
	c.store.Add(b)

	c.mu.Lock()
	c.links[key] = Linked
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Debug("pair linked", "source", a.ID, "mirror", b.ID, "line", line)
	}
	return nil
}

func (c *Coordinator) clearLink(a, b string) {
	if a == "" || b == "" {
		return
	}
	c.mu.Lock()
	delete(c.links, pairKey(a, b))
	c.mu.Unlock()
}

// PropagateToSource is the inverse of PropagateFromSource: when a mirror's
// text changes (edited view, or a regenerated view with different content),
// find or create the canonical source bookmark the same way.
func (c *Coordinator) PropagateToSource(ctx context.Context, mirror Bookmark) error {
	if mirror.IsSource() {
		return fmt.Errorf("bookmark %s is not a mirror anchor", mirror.ID)
	}

	lines, err := c.provider.Lines(ctx, mirror.SourceURI)
	if err != nil {
		return fmt.Errorf("source document %s unavailable: %w", mirror.SourceURI, err)
	}

	// Reuse the source already linked by ID.
	if mirror.LinkedID != "" {
		if src, ok := c.store.Get(mirror.LinkedID); ok && src.IsSource() {
			if line, ok := c.matcher.Match(mirror, mirror.SourceURI, lines); ok {
				src.LineNumber = line
				src.LineText = strings.TrimSpace(lines[line])
				src.Context = CaptureContext(lines, line, c.matcher.Params().ContextWindow)
			}
			return c.linkPair(src, mirror, lines, src.LineNumber)
		}
	}
	for _, src := range c.store.Query(Criteria{SourceURI: mirror.SourceURI, LinkedID: mirror.ID}) {
		if src.IsSource() {
			return c.linkPair(src, mirror, lines, src.LineNumber)
		}
	}

	line, ok := c.matcher.Match(mirror, mirror.SourceURI, lines)
	if !ok {
		if c.logger != nil {
			c.logger.Debug("mirror text not present in source", "bookmark", mirror.ID, "source", mirror.SourceURI)
		}
		return nil
	}

	occ := occurrenceIndex(lines, line)
	for _, cand := range c.store.Query(Criteria{SourceURI: mirror.SourceURI, Line: &line}) {
		if cand.IsSource() && cand.LinkedID == "" && cand.Context.OccurrenceIndex == occ {
			return c.linkPair(cand, mirror, lines, line)
		}
	}

	src := Bookmark{
		ID:         uuid.NewString(),
		Anchor:     Source(),
		SourceURI:  mirror.SourceURI,
		LineNumber: line,
		LineText:   strings.TrimSpace(lines[line]),
		Label:      mirror.Label,
		Timestamp:  time.Now(),
	}
	src.Context = CaptureContext(lines, line, c.matcher.Params().ContextWindow)
	return c.linkPair(src, mirror, lines, line)
}

// OnDocumentEdited recomputes the anchor of every bookmark belonging to the
// edited document. Single-line edits that keep the text recognizably the
// same are applied in place; everything else goes through the matcher.
//
// Returns ErrStaleBatch when the document changed again mid-processing, so
// the throttle can re-queue it instead of applying stale results.
func (c *Coordinator) OnDocumentEdited(ctx context.Context, documentID string, edits []Edit) error {
	lines, err := c.provider.Lines(ctx, documentID)
	if err != nil {
		if errors.Is(err, ErrDocumentGone) || errors.Is(err, ErrNotFound) {
			if c.logger != nil {
				c.logger.Warn("edited document unavailable, bookmarks left as-is", "document", documentID)
			}
			return nil
		}
		return err
	}
	startHash := hashLines(lines)

	for _, b := range c.store.ForDocument(documentID) {
		c.reanchor(b, documentID, lines, edits)
	}

	// Stale-batch detection: if the document moved under us, the results
	// just written describe text that no longer exists.
	current, err := c.provider.Lines(ctx, documentID)
	if err == nil && hashLines(current) != startHash {
		return ErrStaleBatch
	}
	return nil
}

// reanchor updates one bookmark against the document's current lines. Each
// bookmark depends only on its own fingerprint, so processing order within
// a batch does not matter.
func (c *Coordinator) reanchor(b Bookmark, documentID string, lines []string, edits []Edit) {
	// Cheap path: one single-line edit on the tracked line. Gate on text
	// similarity so the bookmark cannot silently move onto unrelated text.
	if len(edits) == 1 && edits[0].SingleLine() && edits[0].StartLine == b.LineNumber &&
		b.LineNumber < len(lines) {
		newText := strings.TrimSpace(lines[b.LineNumber])
		if c.matcher.BlendedSimilarity(b.LineText, newText) >= c.matcher.Params().CheapPathSimilarity {
			c.matcher.Invalidate(b.ID)
			b.LineText = newText
			b.Context = CaptureContext(lines, b.LineNumber, c.matcher.Params().ContextWindow)
			c.store.Add(b)
			return
		}
	}

	line, ok := c.matcher.Match(b, documentID, lines)
	if !ok {
		// Leave the bookmark where it was; the next successful pass will
		// pick it up.
		if c.logger != nil {
			c.logger.Debug("anchor not recovered", "bookmark", b.ID, "document", documentID)
		}
		return
	}

	if line != b.LineNumber || strings.TrimSpace(lines[line]) != b.LineText {
		b.LineNumber = line
		b.LineText = strings.TrimSpace(lines[line])
		b.Context = CaptureContext(lines, line, c.matcher.Params().ContextWindow)
		c.store.Add(b)
	}
}

// MarkSaved records the current line text of every bookmark in the document
// as its last-saved value. Revert restores to this baseline.
func (c *Coordinator) MarkSaved(documentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, b := range c.store.ForDocument(documentID) {
		c.saved[b.ID] = b.LineText
	}
}

// Revert restores bookmark line text to the last-saved value when the live
// text indicates a discarded edit: either the document line reads the saved
// text again, or the tracked text diverged from both live and saved text.
func (c *Coordinator) Revert(ctx context.Context, documentID string) {
	lines, err := c.provider.Lines(ctx, documentID)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("revert skipped, document unavailable", "document", documentID, "error", err)
		}
		return
	}

	for _, b := range c.store.ForDocument(documentID) {
		c.mu.Lock()
		saved, ok := c.saved[b.ID]
		c.mu.Unlock()
		if !ok || b.LineText == saved {
			continue
		}

		var live string
		if b.LineNumber >= 0 && b.LineNumber < len(lines) {
			live = strings.TrimSpace(lines[b.LineNumber])
		}
		if live == saved || (live != b.LineText && live != saved) {
			c.matcher.Invalidate(b.ID)
			b.LineText = saved
			c.store.Add(b)
		}
	}
}

// PurgeSource removes every bookmark of a deleted source, including mirrors
// in derived views, and forgets their link and revert state.
func (c *Coordinator) PurgeSource(sourceURI string) int {
	for _, b := range c.store.Query(Criteria{SourceURI: sourceURI}) {
		c.clearLink(b.ID, b.LinkedID)
		c.mu.Lock()
		delete(c.saved, b.ID)
		c.mu.Unlock()
		c.matcher.Invalidate(b.ID)
	}
	n := c.store.PurgeSource(sourceURI)

	c.mu.Lock()
	delete(c.views, sourceURI)
	c.mu.Unlock()
	return n
}

// pairKey builds an order-independent key for a bookmark pair.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "\x00" + b
}
