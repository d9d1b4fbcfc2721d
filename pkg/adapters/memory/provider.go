// Package memory provides an in-memory document provider. Derived views
// produced by search chains live here; an optional fallback delegates
// everything else (typically the filesystem adapter).
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/linemark/pkg/core"
)

// Provider stores documents as line slices.
type Provider struct {
	mu       sync.RWMutex
	docs     map[string][]string
	fallback core.DocumentProvider
}

// NewProvider creates an empty provider. fallback may be nil.
func NewProvider(fallback core.DocumentProvider) *Provider {
	return &Provider{
		docs:     make(map[string][]string),
		fallback: fallback,
	}
}

// Set registers or replaces a document. The line slice is copied.
func (p *Provider) Set(documentID string, lines []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docs[documentID] = append([]string(nil), lines...)
}

// Remove drops a document. Removing an unknown ID is a no-op.
func (p *Provider) Remove(documentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.docs, documentID)
}

// Has reports whether the document is held in memory (fallback excluded).
func (p *Provider) Has(documentID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.docs[documentID]
	return ok
}

// Lines implements core.DocumentProvider.
func (p *Provider) Lines(ctx context.Context, documentID string) ([]string, error) {
	p.mu.RLock()
	lines, ok := p.docs[documentID]
	p.mu.RUnlock()

	if ok {
		return append([]string(nil), lines...), nil
	}
	if p.fallback != nil {
		return p.fallback.Lines(ctx, documentID)
	}
	return nil, fmt.Errorf("document %s: %w", documentID, core.ErrDocumentGone)
}

// Line implements core.DocumentProvider.
func (p *Provider) Line(ctx context.Context, documentID string, line int) (string, error) {
	p.mu.RLock()
	lines, ok := p.docs[documentID]
	p.mu.RUnlock()

	if !ok {
		if p.fallback != nil {
			return p.fallback.Line(ctx, documentID, line)
		}
		return "", fmt.Errorf("document %s: %w", documentID, core.ErrDocumentGone)
	}
	if line < 0 || line >= len(lines) {
		return "", fmt.Errorf("line %d of %s: %w", line, documentID, core.ErrNotFound)
	}
	return lines[line], nil
}

// LineCount implements core.DocumentProvider.
func (p *Provider) LineCount(ctx context.Context, documentID string) (int, error) {
	p.mu.RLock()
	lines, ok := p.docs[documentID]
	p.mu.RUnlock()

	if ok {
		return len(lines), nil
	}
	if p.fallback != nil {
		return p.fallback.LineCount(ctx, documentID)
	}
	return 0, fmt.Errorf("document %s: %w", documentID, core.ErrDocumentGone)
}

// ComponentType implements introspection.Component.
func (p *Provider) ComponentType() string {
	return "memory-provider"
}

var _ core.DocumentProvider = (*Provider)(nil)
