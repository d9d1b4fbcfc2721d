// Package search executes ordered filter chains against a source document,
// producing the derived views the sync coordinator maintains mirrors in.
// The core never looks inside a chain; it only sees the resulting lines.
package search

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"

	"github.com/aretw0/linemark/pkg/core"
)

// StepKind selects the matching strategy of a filter step.
type StepKind string

const (
	// StepContains keeps lines containing the pattern as a substring.
	StepContains StepKind = "contains"

	// StepRegex keeps lines matching the pattern as a regular expression.
	StepRegex StepKind = "regex"
)

// Step is one link of a filter chain.
type Step struct {
	Kind          StepKind `yaml:"kind"`
	Pattern       string   `yaml:"pattern"`
	CaseSensitive bool     `yaml:"case_sensitive"`

	// Invert keeps the lines that do NOT match.
	Invert bool `yaml:"invert"`
}

// String renders the step in the textual form ParseStep accepts.
func (s Step) String() string {
	var b strings.Builder
	if s.Invert {
		b.WriteByte('!')
	}
	b.WriteString(string(s.Kind))
	b.WriteByte(':')
	b.WriteString(s.Pattern)
	return b.String()
}

// ParseStep parses expressions like "contains:ERROR", "regex:^WARN" or
// "!contains:debug" (leading '!' inverts the step). A bare expression with
// no kind prefix defaults to a case-insensitive contains.
func ParseStep(expr string) (Step, error) {
	var step Step
	if strings.HasPrefix(expr, "!") {
		step.Invert = true
		expr = expr[1:]
	}

	kind, pattern, found := strings.Cut(expr, ":")
	if !found {
		step.Kind = StepContains
		step.Pattern = expr
	} else {
		switch StepKind(kind) {
		case StepContains, StepRegex:
			step.Kind = StepKind(kind)
			step.Pattern = pattern
		default:
			return Step{}, fmt.Errorf("unknown filter kind %q", kind)
		}
	}

	if step.Pattern == "" {
		return Step{}, fmt.Errorf("empty filter pattern in %q", expr)
	}
	return step, nil
}

// StepStat records match statistics for one executed step.
type StepStat struct {
	Step    Step `json:"step"`
	Input   int  `json:"input"`
	Matched int  `json:"matched"`
}

// Result is the outcome of running a chain: the surviving lines, their
// original line numbers in the source, and per-step statistics.
type Result struct {
	Lines       []string   `json:"lines"`
	SourceLines []int      `json:"sourceLines"`
	Stats       []StepStat `json:"stats"`
}

// Run applies the steps in order. Regex patterns are compiled per run;
// a bad pattern fails the whole chain rather than silently matching
// nothing.
func Run(lines []string, steps []Step) (Result, error) {
	result := Result{
		Lines:       append([]string(nil), lines...),
		SourceLines: make([]int, len(lines)),
	}
	for i := range result.SourceLines {
		result.SourceLines[i] = i
	}

	for _, step := range steps {
		match, err := compile(step)
		if err != nil {
			return Result{}, err
		}

		stat := StepStat{Step: step, Input: len(result.Lines)}
		var keptLines []string
		var keptSource []int
		for i, line := range result.Lines {
			if match(line) != step.Invert {
				keptLines = append(keptLines, line)
				keptSource = append(keptSource, result.SourceLines[i])
				stat.Matched++
			}
		}
		result.Lines = keptLines
		result.SourceLines = keptSource
		result.Stats = append(result.Stats, stat)
	}
	return result, nil
}

func compile(step Step) (func(string) bool, error) {
	switch step.Kind {
	case StepContains:
		pattern := step.Pattern
		if step.CaseSensitive {
			return func(line string) bool {
				return strings.Contains(line, pattern)
			}, nil
		}
		lower := strings.ToLower(pattern)
		return func(line string) bool {
			return strings.Contains(strings.ToLower(line), lower)
		}, nil

	case StepRegex:
		pattern := step.Pattern
		if !step.CaseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad filter pattern %q: %w", step.Pattern, err)
		}
		return re.MatchString, nil

	default:
		return nil, fmt.Errorf("unknown filter kind %q", step.Kind)
	}
}

// ViewID derives a stable identifier for the view a chain produces over a
// source, so regenerating the same chain reuses the same derived document.
func ViewID(sourceURI string, steps []Step) string {
	h := fnv.New64a()
	for _, s := range steps {
		h.Write([]byte(s.String()))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%s#chain-%x", sourceURI, h.Sum64())
}

// ViewSink receives materialized view content. *memory.Provider satisfies
// it.
type ViewSink interface {
	Set(documentID string, lines []string)
}

// Runner holds named chains and executes them against source documents
// read through the document provider.
type Runner struct {
	provider core.DocumentProvider

	mu     sync.RWMutex
	chains map[string][]Step
}

// NewRunner creates a runner reading sources through the given provider.
func NewRunner(provider core.DocumentProvider) *Runner {
	return &Runner{
		provider: provider,
		chains:   make(map[string][]Step),
	}
}

// Define registers (or replaces) a named chain.
func (r *Runner) Define(chainID string, steps []Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chains[chainID] = append([]Step(nil), steps...)
}

// Steps returns the steps of a named chain.
func (r *Runner) Steps(chainID string) ([]Step, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	steps, ok := r.chains[chainID]
	return steps, ok
}

// Execute implements core.SearchExecutor.
func (r *Runner) Execute(ctx context.Context, sourceURI, chainID string) ([]string, error) {
	result, _, err := r.run(ctx, sourceURI, chainID)
	if err != nil {
		return nil, err
	}
	return result.Lines, nil
}

// Materialize runs a named chain and publishes the resulting lines into
// the sink under a stable view ID.
func (r *Runner) Materialize(ctx context.Context, sink ViewSink, sourceURI, chainID string) (string, Result, error) {
	result, steps, err := r.run(ctx, sourceURI, chainID)
	if err != nil {
		return "", Result{}, err
	}

	viewID := ViewID(sourceURI, steps)
	sink.Set(viewID, result.Lines)
	return viewID, result, nil
}

func (r *Runner) run(ctx context.Context, sourceURI, chainID string) (Result, []Step, error) {
	steps, ok := r.Steps(chainID)
	if !ok {
		return Result{}, nil, fmt.Errorf("chain %s: %w", chainID, core.ErrNotFound)
	}

	lines, err := r.provider.Lines(ctx, sourceURI)
	if err != nil {
		return Result{}, nil, fmt.Errorf("source %s: %w", sourceURI, err)
	}

	result, err := Run(lines, steps)
	if err != nil {
		return Result{}, nil, err
	}
	return result, steps, nil
}

var _ core.SearchExecutor = (*Runner)(nil)
