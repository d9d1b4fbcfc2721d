// Package fs adapts the filesystem as a document provider: documents are
// text files identified by their path, with an mtime-validated line cache
// and an fsnotify-based watcher feeding edit notifications into the core.
package fs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/linemark/pkg/core"
)

// cachedDoc holds the split lines of a file together with the mtime they
// were read at.
type cachedDoc struct {
	mtime time.Time
	lines []string
}

// Provider reads documents from disk. Line slices are cached per path and
// invalidated by mtime comparison, so repeated reads during one re-anchor
// batch cost a single stat.
type Provider struct {
	mu     sync.Mutex
	cache  map[string]cachedDoc
	logger *slog.Logger
}

// NewProvider creates a filesystem document provider.
func NewProvider(logger *slog.Logger) *Provider {
	return &Provider{
		cache:  make(map[string]cachedDoc),
		logger: logger,
	}
}

// Lines implements core.DocumentProvider. A missing file maps to
// core.ErrDocumentGone, never to a panic.
func (p *Provider) Lines(ctx context.Context, documentID string) ([]string, error) {
	lines, err := p.load(documentID)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), lines...), nil
}

// Line implements core.DocumentProvider.
func (p *Provider) Line(ctx context.Context, documentID string, line int) (string, error) {
	lines, err := p.load(documentID)
	if err != nil {
		return "", err
	}
	if line < 0 || line >= len(lines) {
		return "", fmt.Errorf("line %d of %s: %w", line, documentID, core.ErrNotFound)
	}
	return lines[line], nil
}

// LineCount implements core.DocumentProvider.
func (p *Provider) LineCount(ctx context.Context, documentID string) (int, error) {
	lines, err := p.load(documentID)
	if err != nil {
		return 0, err
	}
	return len(lines), nil
}

// Invalidate drops the cached lines for a path. The watcher calls this on
// change events so the next read hits the disk.
func (p *Provider) Invalidate(documentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.cache, documentID)
}

func (p *Provider) load(path string) ([]string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("document %s: %w", path, core.ErrDocumentGone)
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	p.mu.Lock()
	entry, hit := p.cache[path]
	p.mu.Unlock()
	if hit && entry.mtime.Equal(info.ModTime()) {
		return entry.lines, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("document %s: %w", path, core.ErrDocumentGone)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	lines := splitLines(string(data))

	p.mu.Lock()
	p.cache[path] = cachedDoc{mtime: info.ModTime(), lines: lines}
	p.mu.Unlock()

	if p.logger != nil {
		p.logger.Debug("document loaded", "path", path, "lines", len(lines))
	}
	return lines, nil
}

// splitLines splits file content into lines, tolerating CRLF endings. A
// trailing newline does not produce a phantom empty line.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	content = strings.TrimSuffix(content, "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// ComponentType implements introspection.Component.
func (p *Provider) ComponentType() string {
	return "fs-provider"
}

var _ core.DocumentProvider = (*Provider)(nil)
