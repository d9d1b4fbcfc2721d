package platform

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("missing config is not an error: %v", err)
	}
	if cfg.Match.FuzzyThreshold != 0.7 {
		t.Errorf("defaults not applied: %+v", cfg.Match)
	}
}

func TestLoadConfigOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
match:
  fuzzy_threshold: 0.85
  context_window: 5
quiet_period_ms: 400
watch:
  pattern: "**/*.log"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Match.FuzzyThreshold != 0.85 {
		t.Errorf("fuzzy_threshold not overridden: %v", cfg.Match.FuzzyThreshold)
	}
	if cfg.Match.ContextWindow != 5 {
		t.Errorf("context_window not overridden: %d", cfg.Match.ContextWindow)
	}
	// Untouched fields keep their defaults.
	if cfg.Match.MinAnchorLength != 3 {
		t.Errorf("min_anchor_length should keep its default: %d", cfg.Match.MinAnchorLength)
	}
	if cfg.QuietPeriodMS != 400 {
		t.Errorf("quiet_period_ms not read: %d", cfg.QuietPeriodMS)
	}
	if cfg.Watch.Pattern != "**/*.log" {
		t.Errorf("watch pattern not read: %q", cfg.Watch.Pattern)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("match: [not a map"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("malformed config must fail loudly")
	}
}
