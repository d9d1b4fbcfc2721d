package core

import (
	"sync/atomic"
	"testing"
	"time"
)

// readCounter counts Lines calls per document on top of a mapProvider.
type readCounter struct {
	*mapProvider
	reads atomic.Int64
}

func (r *readCounter) count() int64 { return r.reads.Load() }

func newCountingProvider() *readCounter {
	rc := &readCounter{mapProvider: newMapProvider()}
	rc.afterRead = func(string) { rc.reads.Add(1) }
	return rc
}

func TestThrottleCoalescesBursts(t *testing.T) {
	provider := newCountingProvider()
	provider.set("/tmp/app.log", "stable content line")

	coord, _ := newTestCoordinator(provider)
	th := NewThrottle(coord, 20*time.Millisecond, 10*time.Millisecond, nil, nil)
	defer th.Close()

	// A burst of notifications inside the quiet window.
	for i := 0; i < 10; i++ {
		th.OnEdit("/tmp/app.log", nil)
	}

	time.Sleep(100 * time.Millisecond)

	// One batch costs two reads (process + stale check), regardless of how
	// many notifications fed it.
	if got := provider.count(); got != 2 {
		t.Errorf("expected exactly one batch (2 reads), got %d reads", got)
	}
}

func TestThrottleFlushSkipsQuietPeriod(t *testing.T) {
	provider := newCountingProvider()
	provider.set("/tmp/app.log", "stable content line")

	coord, _ := newTestCoordinator(provider)
	th := NewThrottle(coord, 10*time.Second, 10*time.Millisecond, nil, nil)
	defer th.Close()

	th.OnEdit("/tmp/app.log", nil)
	th.Flush()

	if got := provider.count(); got != 2 {
		t.Errorf("expected the batch processed on Flush, got %d reads", got)
	}
}

func TestThrottleTimerResetsPerEdit(t *testing.T) {
	provider := newCountingProvider()
	provider.set("/tmp/app.log", "stable content line")

	coord, _ := newTestCoordinator(provider)
	th := NewThrottle(coord, 60*time.Millisecond, 10*time.Millisecond, nil, nil)
	defer th.Close()

	// Edits spaced inside the quiet period keep pushing the deadline.
	for i := 0; i < 3; i++ {
		th.OnEdit("/tmp/app.log", nil)
		time.Sleep(20 * time.Millisecond)
	}
	if got := provider.count(); got != 0 {
		t.Errorf("no batch should run while edits keep arriving, got %d reads", got)
	}

	time.Sleep(120 * time.Millisecond)
	if got := provider.count(); got != 2 {
		t.Errorf("expected one batch after quiescence, got %d reads", got)
	}
}

func TestThrottleRefreshRateLimited(t *testing.T) {
	coord, _ := newTestCoordinator(newMapProvider())

	var refreshes atomic.Int64
	th := NewThrottle(coord, 20*time.Millisecond, 50*time.Millisecond, func() {
		refreshes.Add(1)
	}, nil)
	defer th.Close()

	// The first call fires immediately; the rest collapse into one
	// trailing refresh.
	for i := 0; i < 5; i++ {
		th.RequestRefresh()
	}
	if got := refreshes.Load(); got != 1 {
		t.Errorf("expected 1 immediate refresh, got %d", got)
	}

	time.Sleep(120 * time.Millisecond)
	if got := refreshes.Load(); got != 2 {
		t.Errorf("expected 1 trailing refresh, got %d total", got)
	}
}

func TestThrottleRequeuesStaleBatch(t *testing.T) {
	provider := newCountingProvider()
	provider.set("/tmp/app.log", "stable content line")

	// Mutate the document between the first batch's process read and its
	// stale check, then hold still.
	mutated := false
	base := provider.afterRead
	provider.afterRead = func(id string) {
		base(id)
		if !mutated {
			mutated = true
			provider.set("/tmp/app.log", "stable content line", "late arrival")
		}
	}

	coord, _ := newTestCoordinator(provider)
	var refreshes atomic.Int64
	th := NewThrottle(coord, 15*time.Millisecond, time.Millisecond, func() {
		refreshes.Add(1)
	}, nil)
	defer th.Close()

	th.OnEdit("/tmp/app.log", nil)
	time.Sleep(150 * time.Millisecond)

	// First batch went stale and was re-queued; the retry succeeded.
	if got := provider.count(); got != 4 {
		t.Errorf("expected 2 batches (4 reads), got %d reads", got)
	}
	if got := refreshes.Load(); got != 1 {
		t.Errorf("expected 1 refresh after the clean batch, got %d", got)
	}
}

func TestThrottleCloseStopsProcessing(t *testing.T) {
	provider := newCountingProvider()
	provider.set("/tmp/app.log", "stable content line")

	coord, _ := newTestCoordinator(provider)
	th := NewThrottle(coord, 20*time.Millisecond, 10*time.Millisecond, nil, nil)

	th.OnEdit("/tmp/app.log", nil)
	th.Close()

	// Edits after Close are dropped.
	th.OnEdit("/tmp/app.log", nil)
	time.Sleep(60 * time.Millisecond)

	if got := provider.count(); got != 0 {
		t.Errorf("no batch should run after Close, got %d reads", got)
	}
}
