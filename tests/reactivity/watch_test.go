package reactivity_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/linemark"
	"github.com/aretw0/linemark/pkg/core"
)

// setupWatch opens a session in a temp workspace and starts a watcher on it.
func setupWatch(t *testing.T, pattern string) (string, *linemark.Session, <-chan core.Event) {
	t.Helper()
	tmp := t.TempDir()

	session, err := linemark.Open(tmp, linemark.WithPersistence(false))
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })

	events := make(chan core.Event, 16)
	watcher, err := session.NewWatcher(events, pattern)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, watcher.Start(ctx))
	t.Cleanup(func() {
		cancel()
		_ = watcher.Stop(context.Background())
	})

	// Give the watcher a moment to register directories.
	time.Sleep(100 * time.Millisecond)
	return tmp, session, events
}

func waitEvent(t *testing.T, events <-chan core.Event, timeout time.Duration) (core.Event, bool) {
	t.Helper()
	select {
	case e := <-events:
		return e, true
	case <-time.After(timeout):
		return core.Event{}, false
	}
}

func TestWatchFileChange(t *testing.T) {
	tmp, _, events := setupWatch(t, "")

	target := filepath.Join(tmp, "app.log")
	require.NoError(t, os.WriteFile(target, []byte("ERROR timeout\n"), 0644))

	e, ok := waitEvent(t, events, 3*time.Second)
	require.True(t, ok, "timed out waiting for event")
	assert.Equal(t, target, e.ID)
	// Create and the follow-up write collapse into one debounced event.
	assert.Contains(t, []core.EventType{core.EventCreate, core.EventModify}, e.Type)
}

func TestWatchFileDelete(t *testing.T) {
	tmp, _, events := setupWatch(t, "")

	target := filepath.Join(tmp, "doomed.log")
	require.NoError(t, os.WriteFile(target, []byte("short lived\n"), 0644))
	if _, ok := waitEvent(t, events, 3*time.Second); !ok {
		t.Fatal("no event for file creation")
	}

	require.NoError(t, os.Remove(target))

	e, ok := waitEvent(t, events, 3*time.Second)
	require.True(t, ok, "timed out waiting for delete event")
	assert.Equal(t, core.EventDelete, e.Type)
	assert.Equal(t, target, e.ID)
}

func TestWatchIgnoresSystemDir(t *testing.T) {
	tmp, _, events := setupWatch(t, "")

	sysDir := filepath.Join(tmp, ".linemark")
	require.NoError(t, os.MkdirAll(sysDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sysDir, "bookmarks.json"), []byte("{}"), 0644))

	if e, ok := waitEvent(t, events, 500*time.Millisecond); ok {
		// The mkdir itself may surface; writes inside must not.
		assert.NotContains(t, e.ID, "bookmarks.json", "system dir writes must be ignored")
	}
}

func TestWatchPatternFilter(t *testing.T) {
	tmp, _, events := setupWatch(t, "**/*.log")

	require.NoError(t, os.WriteFile(filepath.Join(tmp, "notes.txt"), []byte("not watched\n"), 0644))
	if e, ok := waitEvent(t, events, 500*time.Millisecond); ok {
		t.Fatalf("event for non-matching file: %+v", e)
	}

	target := filepath.Join(tmp, "app.log")
	require.NoError(t, os.WriteFile(target, []byte("watched\n"), 0644))
	e, ok := waitEvent(t, events, 3*time.Second)
	require.True(t, ok, "timed out waiting for matching event")
	assert.Equal(t, target, e.ID)
}

func TestWatchFeedsReanchoring(t *testing.T) {
	tmp, session, events := setupWatch(t, "")

	target := filepath.Join(tmp, "app.log")
	require.NoError(t, os.WriteFile(target, []byte("INFO boot\nERROR crash\n"), 0644))
	if _, ok := waitEvent(t, events, 3*time.Second); !ok {
		t.Fatal("no event for file creation")
	}

	b, err := session.Service.CreateBookmark(context.Background(), target, 1, "")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(target, []byte("INFO boot\nINFO inserted\nERROR crash\n"), 0644))
	e, ok := waitEvent(t, events, 3*time.Second)
	require.True(t, ok, "no event for modification")

	// Drive the service the way the watch command does.
	session.Service.OnDocumentChanged(e.ID, nil)
	session.Service.Flush()

	found := session.Service.FindBookmarks(linemark.Criteria{ID: b.ID})
	require.Len(t, found, 1)
	assert.Equal(t, 2, found[0].LineNumber)
}
