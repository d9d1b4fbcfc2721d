package linemark

import (
	"log/slog"
	"time"

	"github.com/aretw0/linemark/internal/platform"
	"github.com/aretw0/linemark/pkg/core"
)

// Version exposes the version of the library.
const Version = "0.3.0"

// --- Types ---

// Session is a public alias for the wired session.
type Session = platform.Session

// Bookmark is a public alias for the core entity.
type Bookmark = core.Bookmark

// Criteria is a public alias for bookmark query criteria.
type Criteria = core.Criteria

// Event is a public alias for change events.
type Event = core.Event

// MatchParams is a public alias for the anchoring policy knobs.
type MatchParams = core.MatchParams

// DefaultMatchParams returns the reference anchoring policy.
func DefaultMatchParams() MatchParams {
	return core.DefaultMatchParams()
}

// --- Configuration ---

// Option defines a functional option for configuring linemark.
type Option = platform.Option

// WithLogger sets the logger for the session.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithProvider injects a custom document provider.
func WithProvider(p core.DocumentProvider) Option {
	return platform.WithProvider(p)
}

// WithPersister injects a custom bookmark persister.
func WithPersister(p core.Persister) Option {
	return platform.WithPersister(p)
}

// WithMatchParams overrides the anchoring policy.
func WithMatchParams(params core.MatchParams) Option {
	return platform.WithMatchParams(params)
}

// WithQuietPeriod overrides the edit-coalescing quiet period.
func WithQuietPeriod(d time.Duration) Option {
	return platform.WithQuietPeriod(d)
}

// WithRefreshInterval overrides the minimum spacing of refresh signals.
func WithRefreshInterval(d time.Duration) Option {
	return platform.WithRefreshInterval(d)
}

// WithEventBuffer allows specifying the size of the subscriber buffers.
func WithEventBuffer(size int) Option {
	return platform.WithEventBuffer(size)
}

// WithSystemDir allows specifying the hidden directory name.
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithPersistence toggles loading/saving bookmarks on open/close.
func WithPersistence(enabled bool) Option {
	return platform.WithPersistence(enabled)
}

// WithConfigFile loads match parameters and intervals from a YAML file.
func WithConfigFile(path string) Option {
	return platform.WithConfigFile(path)
}

// --- Factory ---

// Open wires a session rooted at the workspace directory.
func Open(workspace string, opts ...Option) (*Session, error) {
	return platform.Open(workspace, opts...)
}
