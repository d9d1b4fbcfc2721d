package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/linemark/pkg/core"
)

// options holds the internal configuration for the linemark session.
type options struct {
	provider  core.DocumentProvider
	persister core.Persister
	logger    *slog.Logger
	config    map[string]interface{}
	params    *core.MatchParams
}

// Option defines a functional option for configuring linemark.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		provider:  nil,
		persister: nil,
		logger:    nil,
		config:    make(map[string]interface{}),
	}
}

// WithLogger sets the logger for the session.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithProvider injects a custom document provider (e.g. mock, editor
// buffers). If provided, the default filesystem provider is skipped.
func WithProvider(p core.DocumentProvider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithPersister injects a custom bookmark persister. If provided, the
// default JSON persister is skipped.
func WithPersister(p core.Persister) Option {
	return func(o *options) {
		o.persister = p
	}
}

// WithMatchParams overrides the anchoring policy.
func WithMatchParams(params core.MatchParams) Option {
	return func(o *options) {
		o.params = &params
	}
}

// WithQuietPeriod overrides the edit-coalescing quiet period.
func WithQuietPeriod(d time.Duration) Option {
	return func(o *options) {
		o.config["quiet_period"] = d
	}
}

// WithRefreshInterval overrides the minimum spacing of refresh signals.
func WithRefreshInterval(d time.Duration) Option {
	return func(o *options) {
		o.config["refresh_interval"] = d
	}
}

// WithEventBuffer allows specifying the size of the subscriber buffers.
// Zero means default (100).
func WithEventBuffer(size int) Option {
	return func(o *options) {
		o.config["event_buffer"] = size
	}
}

// WithSystemDir allows specifying the hidden directory name (e.g.
// ".linemark").
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.config["system_dir"] = name
	}
}

// WithPersistence toggles loading/saving bookmarks on open/close.
// Enabled by default.
func WithPersistence(enabled bool) Option {
	return func(o *options) {
		o.config["persistence"] = enabled
	}
}

// WithConfigFile loads match parameters and intervals from a YAML file
// before the other options apply.
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.config["config_file"] = path
	}
}
