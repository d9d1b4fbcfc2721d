package platform

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/aretw0/linemark/pkg/adapters/fs"
	"github.com/aretw0/linemark/pkg/adapters/memory"
	"github.com/aretw0/linemark/pkg/core"
	"github.com/aretw0/linemark/pkg/search"
)

// Session bundles a wired service with the collaborators the caller may
// need to drive it: the in-memory view host, the search runner, and the
// filesystem provider backing source documents.
type Session struct {
	Service *core.Service
	Views   *memory.Provider
	Runner  *search.Runner
	Files   *fs.Provider

	workspace string
	systemDir string
	persist   bool
	config    FileConfig
}

// Open wires a session rooted at the workspace directory. Persisted
// bookmarks, if any, are loaded into the store.
func Open(workspace string, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	systemDir, _ := o.config["system_dir"].(string)
	if systemDir == "" {
		systemDir = ".linemark"
	}

	// Workspace config file, overridden by explicit options.
	configPath, _ := o.config["config_file"].(string)
	if configPath == "" {
		configPath = filepath.Join(workspace, systemDir, "config.yaml")
	}
	fileCfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	params := fileCfg.Match
	if o.params != nil {
		params = *o.params
	}

	quiet := time.Duration(fileCfg.QuietPeriodMS) * time.Millisecond
	if d, ok := o.config["quiet_period"].(time.Duration); ok {
		quiet = d
	}
	refresh := time.Duration(fileCfg.RefreshIntervalMS) * time.Millisecond
	if d, ok := o.config["refresh_interval"].(time.Duration); ok {
		refresh = d
	}
	eventBuffer, _ := o.config["event_buffer"].(int)

	// Provider chain: in-memory views first, files as fallback.
	var files *fs.Provider
	base := o.provider
	if base == nil {
		files = fs.NewProvider(o.logger)
		base = files
	}
	views := memory.NewProvider(base)

	persister := o.persister
	persist := true
	if enabled, ok := o.config["persistence"].(bool); ok {
		persist = enabled
	}
	if persister == nil && persist {
		persister = fs.NewPersister(workspace, systemDir, o.logger)
	}

	runner := search.NewRunner(views)

	service := core.NewService(views, core.ServiceConfig{
		Params:          params,
		QuietPeriod:     quiet,
		RefreshInterval: refresh,
		Persister:       persister,
		Search:          runner,
		Logger:          o.logger,
		EventBuffer:     eventBuffer,
	})

	session := &Session{
		Service:   service,
		Views:     views,
		Runner:    runner,
		Files:     files,
		workspace: workspace,
		systemDir: systemDir,
		persist:   persister != nil,
		config:    fileCfg,
	}

	if session.persist {
		if err := service.Load(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to load bookmarks: %w", err)
		}
	}
	return session, nil
}

// Workspace returns the session's root directory.
func (s *Session) Workspace() string {
	return s.workspace
}

// Config returns the loaded workspace configuration.
func (s *Session) Config() FileConfig {
	return s.config
}

// NewWatcher builds a filesystem watcher for the workspace, emitting into
// the given channel. Only available when the session uses the default
// filesystem provider.
func (s *Session) NewWatcher(events chan<- core.Event, pattern string) (*fs.Watcher, error) {
	if s.Files == nil {
		return nil, fmt.Errorf("session has a custom provider; no filesystem to watch")
	}
	if pattern == "" {
		pattern = s.config.Watch.Pattern
	}
	return fs.NewWatcher(fs.WatchConfig{
		Root:      s.workspace,
		Pattern:   pattern,
		SystemDir: s.systemDir,
	}, s.Files, events), nil
}

// Close flushes pending batches, persists the bookmark set, and releases
// the service.
func (s *Session) Close() error {
	s.Service.Flush()

	var err error
	if s.persist {
		err = s.Service.Save(context.Background())
	}
	s.Service.Close()
	return err
}
