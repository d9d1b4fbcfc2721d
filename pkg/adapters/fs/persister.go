package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/linemark/pkg/core"
)

// persistedSet is the on-disk shape of the bookmark set.
type persistedSet struct {
	Version   int             `json:"version"`
	Bookmarks []core.Bookmark `json:"bookmarks"`
}

// Persister serializes the full bookmark set to
// {workspace}/{systemDir}/bookmarks.json. Source URIs inside the workspace
// are stored workspace-relative, so a relocated workspace still resolves
// its bookmarks; URIs outside the workspace round-trip unchanged.
type Persister struct {
	root   string
	path   string
	logger *slog.Logger
}

// NewPersister creates a persister rooted at the workspace directory.
// systemDir defaults to ".linemark".
func NewPersister(workspace, systemDir string, logger *slog.Logger) *Persister {
	if systemDir == "" {
		systemDir = ".linemark"
	}
	return &Persister{
		root:   workspace,
		path:   filepath.Join(workspace, systemDir, "bookmarks.json"),
		logger: logger,
	}
}

// Path returns the location of the persisted set.
func (p *Persister) Path() string {
	return p.path
}

// Save implements core.Persister using an atomic temp-file+rename write.
func (p *Persister) Save(ctx context.Context, bookmarks []core.Bookmark) error {
	set := persistedSet{Version: 1, Bookmarks: make([]core.Bookmark, 0, len(bookmarks))}
	for _, b := range bookmarks {
		b.SourceURI = p.relativize(b.SourceURI)
		set.Bookmarks = append(set.Bookmarks, b)
	}

	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize bookmarks: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("failed to create system dir: %w", err)
	}
	if err := writeFileAtomic(p.path, data, 0644); err != nil {
		return err
	}

	if p.logger != nil {
		p.logger.Debug("bookmarks persisted", "path", p.path, "count", len(set.Bookmarks))
	}
	return nil
}

// Load implements core.Persister. A missing or corrupted file yields an
// empty set rather than an error, so a workspace self-heals.
func (p *Persister) Load(ctx context.Context) ([]core.Bookmark, error) {
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return nil, nil // Start fresh
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read bookmarks: %w", err)
	}

	var set persistedSet
	if err := json.Unmarshal(data, &set); err != nil {
		if p.logger != nil {
			p.logger.Warn("corrupted bookmark file, starting fresh", "path", p.path, "error", err)
		}
		return nil, nil
	}

	for i := range set.Bookmarks {
		set.Bookmarks[i].SourceURI = p.absolutize(set.Bookmarks[i].SourceURI)
	}
	return set.Bookmarks, nil
}

// relativize maps a path under the workspace to a workspace-relative form
// with forward slashes. Paths outside the workspace are left alone.
func (p *Persister) relativize(uri string) string {
	rel, err := filepath.Rel(p.root, uri)
	if err != nil || strings.HasPrefix(rel, "..") {
		return uri
	}
	return filepath.ToSlash(rel)
}

// absolutize resolves a workspace-relative URI against the current root.
func (p *Persister) absolutize(uri string) string {
	if filepath.IsAbs(uri) {
		return uri
	}
	return filepath.Join(p.root, filepath.FromSlash(uri))
}

var _ core.Persister = (*Persister)(nil)
