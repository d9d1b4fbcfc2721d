package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/linemark/pkg/core"
)

func TestProviderSetAndRead(t *testing.T) {
	p := NewProvider(nil)
	p.Set("view-1", []string{"alpha", "beta"})

	ctx := context.Background()
	lines, err := p.Lines(ctx, "view-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 || lines[0] != "alpha" {
		t.Errorf("unexpected lines: %v", lines)
	}

	line, err := p.Line(ctx, "view-1", 1)
	if err != nil || line != "beta" {
		t.Errorf("Line(1) = %q, %v", line, err)
	}

	n, err := p.LineCount(ctx, "view-1")
	if err != nil || n != 2 {
		t.Errorf("LineCount = %d, %v", n, err)
	}
}

func TestProviderCopiesOnSetAndRead(t *testing.T) {
	src := []string{"alpha"}
	p := NewProvider(nil)
	p.Set("view-1", src)
	src[0] = "mutated"

	lines, err := p.Lines(context.Background(), "view-1")
	if err != nil {
		t.Fatal(err)
	}
	if lines[0] != "alpha" {
		t.Error("provider must not alias the caller's slice")
	}

	lines[0] = "mutated again"
	again, _ := p.Lines(context.Background(), "view-1")
	if again[0] != "alpha" {
		t.Error("readers must not be able to corrupt the stored document")
	}
}

func TestProviderMissingDocument(t *testing.T) {
	p := NewProvider(nil)
	ctx := context.Background()

	if _, err := p.Lines(ctx, "ghost"); !errors.Is(err, core.ErrDocumentGone) {
		t.Errorf("expected ErrDocumentGone, got %v", err)
	}
	if _, err := p.Line(ctx, "ghost", 0); !errors.Is(err, core.ErrDocumentGone) {
		t.Errorf("expected ErrDocumentGone, got %v", err)
	}
}

func TestProviderLineOutOfRange(t *testing.T) {
	p := NewProvider(nil)
	p.Set("view-1", []string{"only"})

	if _, err := p.Line(context.Background(), "view-1", 5); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestProviderFallback(t *testing.T) {
	base := NewProvider(nil)
	base.Set("/tmp/file.txt", []string{"from the fallback"})

	p := NewProvider(base)
	p.Set("view-1", []string{"held in memory"})

	ctx := context.Background()
	lines, err := p.Lines(ctx, "/tmp/file.txt")
	if err != nil {
		t.Fatal(err)
	}
	if lines[0] != "from the fallback" {
		t.Errorf("fallback not consulted: %v", lines)
	}

	if !p.Has("view-1") || p.Has("/tmp/file.txt") {
		t.Error("Has must report only in-memory documents")
	}
}

func TestProviderRemove(t *testing.T) {
	p := NewProvider(nil)
	p.Set("view-1", []string{"alpha"})
	p.Remove("view-1")
	p.Remove("never-existed")

	if _, err := p.Lines(context.Background(), "view-1"); !errors.Is(err, core.ErrDocumentGone) {
		t.Errorf("expected ErrDocumentGone after remove, got %v", err)
	}
}
