package fs

import (
	"sync"
	"time"

	"github.com/aretw0/linemark/pkg/core"
)

// debouncer coalesces bursts of filesystem events per document ID: each new
// event for the same ID resets its timer, and only the last event is
// delivered once the burst goes quiet.
type debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
	wg      sync.WaitGroup
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:  delay,
		timers: make(map[string]*time.Timer),
	}
}

// add schedules delivery of the event after the quiet delay, replacing any
// pending delivery for the same ID.
func (d *debouncer) add(event core.Event, deliver func(core.Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if timer, ok := d.timers[event.ID]; ok {
		if timer.Stop() {
			// The pending delivery never fired; release its slot.
			d.wg.Done()
		}
	}

	d.wg.Add(1)
	d.timers[event.ID] = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()

		d.mu.Lock()
		if d.stopped {
			d.mu.Unlock()
			return
		}
		delete(d.timers, event.ID)
		d.mu.Unlock()

		deliver(event)
	})
}

// stopAndWait stops accepting new events and waits up to timeout for all
// in-flight timers to complete.
func (d *debouncer) stopAndWait(timeout time.Duration) {
	d.mu.Lock()
	d.stopped = true
	for id, timer := range d.timers {
		if timer.Stop() {
			// Timer never fired; release its waitgroup slot.
			d.wg.Done()
		}
		delete(d.timers, id)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
	}
}
