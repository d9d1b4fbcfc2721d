package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ServiceConfig carries the wiring knobs for a Service.
type ServiceConfig struct {
	Params          MatchParams
	QuietPeriod     time.Duration
	RefreshInterval time.Duration
	Persister       Persister
	Search          SearchExecutor
	Logger          *slog.Logger
	EventBuffer     int
}

// Service handles the business logic for bookmarks. It is the single entry
// point for collaborators: presentation code pulls state via FindBookmarks
// and receives a refresh signal after any observable change, never mutating
// the store directly.
type Service struct {
	store    *Store
	matcher  *Matcher
	coord    *Coordinator
	throttle *Throttle
	provider DocumentProvider

	persister Persister
	search    SearchExecutor
	logger    *slog.Logger

	mu              sync.RWMutex
	subscribers     []chan Event
	eventBufferSize int
}

// NewService creates a fully wired Service over the given document
// provider.
func NewService(provider DocumentProvider, cfg ServiceConfig) *Service {
	if cfg.Params == (MatchParams{}) {
		cfg.Params = DefaultMatchParams()
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 100
	}

	store := NewStore()
	matcher := NewMatcher(cfg.Params, cfg.Logger)
	coord := NewCoordinator(store, matcher, provider, cfg.Logger)

	s := &Service{
		store:           store,
		matcher:         matcher,
		coord:           coord,
		provider:        provider,
		persister:       cfg.Persister,
		search:          cfg.Search,
		logger:          cfg.Logger,
		eventBufferSize: cfg.EventBuffer,
	}
	s.throttle = NewThrottle(coord, cfg.QuietPeriod, cfg.RefreshInterval, func() {
		s.notify(Event{Type: EventRefresh, Timestamp: time.Now().Unix()})
	}, cfg.Logger)

	return s
}

// Store exposes the underlying bookmark store for read access.
func (s *Service) Store() *Store {
	return s.store
}

// Coordinator exposes the sync coordinator, mainly for view management.
func (s *Service) Coordinator() *Coordinator {
	return s.coord
}

// CreateBookmark marks a line in the source document, capturing the
// positional fingerprint from its current text.
func (s *Service) CreateBookmark(ctx context.Context, sourceURI string, line int, label string) (Bookmark, error) {
	lines, err := s.provider.Lines(ctx, sourceURI)
	if err != nil {
		return Bookmark{}, fmt.Errorf("cannot read %s: %w", sourceURI, err)
	}
	if line < 0 || line >= len(lines) {
		return Bookmark{}, fmt.Errorf("line %d out of range: %w", line, ErrNotFound)
	}

	b := Bookmark{
		ID:         uuid.NewString(),
		Anchor:     Source(),
		SourceURI:  sourceURI,
		LineNumber: line,
		LineText:   strings.TrimSpace(lines[line]),
		Label:      label,
		Timestamp:  time.Now(),
		Context:    CaptureContext(lines, line, s.matcher.Params().ContextWindow),
	}
	s.store.Add(b)
	s.coord.MarkSaved(sourceURI)

	if err := s.coord.PropagateFromSource(ctx, b); err != nil {
		// Mirrors catch up on the next pass; the source bookmark stands.
		if s.logger != nil {
			s.logger.Warn("initial mirror propagation incomplete", "bookmark", b.ID, "error", err)
		}
	}

	s.notify(Event{Type: EventCreate, ID: b.ID, Timestamp: time.Now().Unix()})
	return b, nil
}

// AddBookmark upserts a bookmark record. An empty ID is assigned one.
func (s *Service) AddBookmark(b Bookmark) Bookmark {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Timestamp.IsZero() {
		b.Timestamp = time.Now()
	}
	s.store.Add(b)
	s.notify(Event{Type: EventModify, ID: b.ID, Timestamp: time.Now().Unix()})
	return b
}

// RemoveBookmark deletes a bookmark and cascades to its linked counterpart.
// Removing an unknown ID is a no-op.
func (s *Service) RemoveBookmark(id string) {
	b, ok := s.store.Get(id)
	if !ok {
		return
	}

	s.matcher.Invalidate(id)
	s.store.Remove(id)

	if b.LinkedID != "" {
		if partner, ok := s.store.Get(b.LinkedID); ok {
			s.matcher.Invalidate(partner.ID)
			s.store.Remove(partner.ID)
		}
	}

	s.notify(Event{Type: EventDelete, ID: id, Timestamp: time.Now().Unix()})
}

// FindBookmarks queries the store.
func (s *Service) FindBookmarks(c Criteria) []Bookmark {
	return s.store.Query(c)
}

// OnDocumentChanged enqueues an edit notification. The actual re-anchor
// pass runs after the quiet period, coalesced per document.
func (s *Service) OnDocumentChanged(documentID string, edits []Edit) {
	s.throttle.OnEdit(documentID, edits)
}

// SynchronizeToMirrors propagates a source bookmark into every associated
// derived view.
func (s *Service) SynchronizeToMirrors(ctx context.Context, b Bookmark) error {
	return s.coord.PropagateFromSource(ctx, b)
}

// SynchronizeFromMirror propagates a mirror's position back to its
// canonical source bookmark.
func (s *Service) SynchronizeFromMirror(ctx context.Context, b Bookmark) error {
	return s.coord.PropagateToSource(ctx, b)
}

// GetAnchorContext captures the fingerprint around a line in a document.
func (s *Service) GetAnchorContext(ctx context.Context, documentID string, line, windowSize int) (AnchorContext, error) {
	lines, err := s.provider.Lines(ctx, documentID)
	if err != nil {
		return AnchorContext{}, fmt.Errorf("cannot read %s: %w", documentID, err)
	}
	if windowSize <= 0 {
		windowSize = s.matcher.Params().ContextWindow
	}
	return CaptureContext(lines, line, windowSize), nil
}

// AttachView associates a derived document with its source and immediately
// propagates every source bookmark into it.
func (s *Service) AttachView(ctx context.Context, sourceURI, documentID string) error {
	s.coord.AttachView(sourceURI, documentID)

	var firstErr error
	for _, b := range s.store.Query(Criteria{SourceURI: sourceURI}) {
		if !b.IsSource() {
			continue
		}
		if err := s.coord.PropagateFromSource(ctx, b); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.throttle.RequestRefresh()
	return firstErr
}

// RefreshView re-executes the search chain backing a derived document,
// publishes the new lines, and re-propagates source bookmarks into the
// view. Mirrors whose lines fell out of the regenerated view stay linked
// at their last-known position.
func (s *Service) RefreshView(ctx context.Context, sourceURI, chainID, viewID string) error {
	if s.search == nil {
		return fmt.Errorf("no search executor configured")
	}
	writer, ok := s.provider.(DocumentWriter)
	if !ok {
		return fmt.Errorf("document provider cannot host derived views")
	}

	lines, err := s.search.Execute(ctx, sourceURI, chainID)
	if err != nil {
		return fmt.Errorf("chain %s: %w", chainID, err)
	}
	writer.Set(viewID, lines)

	return s.AttachView(ctx, sourceURI, viewID)
}

// DetachView drops a derived document and its mirrors.
func (s *Service) DetachView(sourceURI, documentID string) {
	s.coord.DetachView(sourceURI, documentID)
	s.throttle.RequestRefresh()
}

// MarkSaved records the current bookmark text of a document as its saved
// baseline.
func (s *Service) MarkSaved(documentID string) {
	s.coord.MarkSaved(documentID)
}

// Revert restores bookmark text after a discarded edit.
func (s *Service) Revert(ctx context.Context, documentID string) {
	s.coord.Revert(ctx, documentID)
	s.throttle.RequestRefresh()
}

// PurgeSource removes all bookmarks of a deleted source document.
func (s *Service) PurgeSource(sourceURI string) int {
	n := s.coord.PurgeSource(sourceURI)
	if n > 0 {
		s.notify(Event{Type: EventDelete, ID: sourceURI, Timestamp: time.Now().Unix()})
	}
	return n
}

// Flush forces any pending re-anchor batches through without waiting for
// the quiet period.
func (s *Service) Flush() {
	s.throttle.Flush()
}

// Save persists the full bookmark set through the configured persister.
func (s *Service) Save(ctx context.Context) error {
	if s.persister == nil {
		return fmt.Errorf("no persister configured")
	}
	return s.persister.Save(ctx, s.store.All())
}

// Load replaces the store contents with the persisted bookmark set.
func (s *Service) Load(ctx context.Context) error {
	if s.persister == nil {
		return fmt.Errorf("no persister configured")
	}
	bookmarks, err := s.persister.Load(ctx)
	if err != nil {
		return err
	}
	for _, b := range bookmarks {
		s.store.Add(b)
	}
	s.throttle.RequestRefresh()
	return nil
}

// Subscribe returns a channel of change events. Slow consumers drop
// events rather than blocking mutations.
func (s *Service) Subscribe() <-chan Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, s.eventBufferSize)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

func (s *Service) notify(e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.subscribers {
		select {
		case ch <- e:
		default:
			// Buffer full; drop rather than stall the mutation path.
		}
	}
}

// Close stops the throttle and closes subscriber channels.
func (s *Service) Close() {
	s.throttle.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = nil
}
