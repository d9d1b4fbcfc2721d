package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultQuietPeriod is how long a document must stay quiet before its
	// pending edits are processed.
	DefaultQuietPeriod = 250 * time.Millisecond

	// DefaultRefreshInterval is the minimum spacing between refresh
	// signals to presentation collaborators.
	DefaultRefreshInterval = 100 * time.Millisecond
)

// Throttle coalesces rapid edit notifications into bounded re-anchor
// batches and rate-limits refresh signals. It wraps the coordinator's
// document-update path: a timer, reset on every new edit, fires after the
// quiet period and processes all pending documents in one pass.
type Throttle struct {
	coord   *Coordinator
	logger  *slog.Logger
	quiet   time.Duration
	minGap  time.Duration
	refresh func()

	mu      sync.Mutex
	pending map[string][]Edit
	timer   *time.Timer
	closed  bool

	lastRefresh    time.Time
	trailingTimer  *time.Timer
	refreshPending bool

	// wg tracks in-flight batch processing for Close.
	wg sync.WaitGroup
}

// NewThrottle wraps the coordinator. refresh is invoked (rate-limited)
// after every processed batch; it may be nil.
func NewThrottle(coord *Coordinator, quiet, minGap time.Duration, refresh func(), logger *slog.Logger) *Throttle {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	if minGap <= 0 {
		minGap = DefaultRefreshInterval
	}
	return &Throttle{
		coord:   coord,
		logger:  logger,
		quiet:   quiet,
		minGap:  minGap,
		refresh: refresh,
		pending: make(map[string][]Edit),
	}
}

// OnEdit records an edit notification for a document and restarts the quiet
// timer. N edits inside the quiet window trigger exactly one re-anchor
// pass; no partial batch is ever applied.
func (t *Throttle) OnEdit(documentID string, edits []Edit) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	t.pending[documentID] = append(t.pending[documentID], edits...)

	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.quiet, t.fire)
}

// Flush processes all pending documents immediately, without waiting for
// the quiet period. Used by tests and by shutdown paths.
func (t *Throttle) Flush() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()

	t.processPending()
}

// fire is the timer callback.
func (t *Throttle) fire() {
	t.wg.Add(1)
	defer t.wg.Done()
	t.processPending()
}

func (t *Throttle) processPending() {
	t.mu.Lock()
	if len(t.pending) == 0 {
		t.mu.Unlock()
		return
	}
	batch := t.pending
	t.pending = make(map[string][]Edit)
	t.mu.Unlock()

	ctx := context.Background()
	changed := false
	for docID, edits := range batch {
		err := t.coord.OnDocumentEdited(ctx, docID, edits)
		switch {
		case errors.Is(err, ErrStaleBatch):
			// The document moved mid-processing; queue it again rather
			// than trusting results computed against vanished text.
			if t.logger != nil {
				t.logger.Debug("stale batch re-queued", "document", docID)
			}
			t.OnEdit(docID, nil)
		case err != nil:
			if t.logger != nil {
				t.logger.Warn("re-anchor pass failed", "document", docID, "error", err)
			}
		default:
			changed = true
		}
	}

	if changed {
		t.RequestRefresh()
	}
}

// RequestRefresh emits a refresh signal, enforcing the minimum interval.
// Calls arriving faster than the interval schedule at most one trailing
// refresh.
func (t *Throttle) RequestRefresh() {
	if t.refresh == nil {
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}

	now := time.Now()
	elapsed := now.Sub(t.lastRefresh)
	if elapsed >= t.minGap {
		t.lastRefresh = now
		t.mu.Unlock()
		t.refresh()
		return
	}

	if t.refreshPending {
		t.mu.Unlock()
		return
	}
	t.refreshPending = true
	t.trailingTimer = time.AfterFunc(t.minGap-elapsed, func() {
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return
		}
		t.refreshPending = false
		t.lastRefresh = time.Now()
		t.mu.Unlock()
		t.refresh()
	})
	t.mu.Unlock()
}

// Close stops all timers and waits for the in-flight batch, if any.
func (t *Throttle) Close() {
	t.mu.Lock()
	t.closed = true
	if t.timer != nil {
		t.timer.Stop()
	}
	if t.trailingTimer != nil {
		t.trailingTimer.Stop()
	}
	t.mu.Unlock()

	t.wg.Wait()
}
