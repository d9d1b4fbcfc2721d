package core

import (
	"fmt"
	"testing"
)

// anchorAt builds a bookmark whose fingerprint is captured from the given
// document, the way the service does on creation. IDs are unique per
// anchored line, mirroring the service's uuid-per-bookmark invariant that
// the matcher's cache depends on.
func anchorAt(doc []string, line int) Bookmark {
	b := newSourceBookmark(fmt.Sprintf("b-test-%d", line), "/tmp/doc.txt", line, doc[line])
	b.Context = CaptureContext(doc, line, 3)
	return b
}

func TestMatchExactUniqueLineSurvivesInsertAbove(t *testing.T) {
	original := []string{
		"INFO starting up",
		"ERROR connection refused",
		"INFO retrying",
	}
	b := anchorAt(original, 1)

	edited := []string{
		"INFO starting up",
		"DEBUG probing endpoint",
		"ERROR connection refused",
		"INFO retrying",
	}

	m := NewMatcher(DefaultMatchParams(), nil)
	line, ok := m.Match(b, "/tmp/doc.txt", edited)
	if !ok {
		t.Fatal("expected a match")
	}
	if line != 2 {
		t.Errorf("expected line 2, got %d", line)
	}
}

func TestMatchOccurrenceDisambiguation(t *testing.T) {
	doc := []string{
		"step done",
		"filler one",
		"step done",
		"filler two",
		"step done",
	}

	m := NewMatcher(DefaultMatchParams(), nil)
	for want, line := range map[int]int{0: 0, 1: 2, 2: 4} {
		b := anchorAt(doc, line)
		if b.Context.OccurrenceIndex != want {
			t.Fatalf("capture sanity: occurrence %d at line %d", b.Context.OccurrenceIndex, line)
		}
		got, ok := m.Match(b, "/tmp/doc.txt", doc)
		if !ok || got != line {
			t.Errorf("occurrence %d: expected line %d, got %d (ok=%v)", want, line, got, ok)
		}
	}
}

func TestMatchOccurrenceSurvivesReorderedFiller(t *testing.T) {
	doc := []string{
		"step done",
		"filler one",
		"step done",
	}
	b := anchorAt(doc, 2) // second occurrence

	// Insert another filler above; the second occurrence moves down.
	edited := []string{
		"step done",
		"filler zero",
		"filler one",
		"step done",
	}

	m := NewMatcher(DefaultMatchParams(), nil)
	line, ok := m.Match(b, "/tmp/doc.txt", edited)
	if !ok || line != 3 {
		t.Errorf("expected second occurrence at line 3, got %d (ok=%v)", line, ok)
	}
}

func TestMatchSecondOccurrenceAfterInsertions(t *testing.T) {
	doc := []string{
		"one fish",
		"two fish",
		"one fish",
		"red fish",
		"one fish",
	}
	b := anchorAt(doc, 2) // occurrence 1 of "one fish"

	edited := []string{
		"inserted line x",
		"inserted line y",
		"one fish",
		"two fish",
		"one fish",
		"red fish",
		"one fish",
	}

	m := NewMatcher(DefaultMatchParams(), nil)
	line, ok := m.Match(b, "/tmp/doc.txt", edited)
	if !ok {
		t.Fatal("expected a match")
	}
	if line != 4 {
		t.Errorf("expected occurrence 1 at line 4, got %d", line)
	}
}

func TestMatchFuzzyThresholdPair(t *testing.T) {
	m := NewMatcher(DefaultMatchParams(), nil)

	// One trailing word differs: comfortably above the threshold.
	original := []string{
		"padding alpha",
		"one two three four five six seven eight nine ten",
		"padding beta",
	}
	b := anchorAt(original, 1)
	edited := []string{
		"padding alpha",
		"one two three four five six seven eight nine zzz",
		"padding beta",
	}
	if line, ok := m.Match(b, "/tmp/doc.txt", edited); !ok || line != 1 {
		t.Errorf("one-word difference must match: %d (ok=%v)", line, ok)
	}

	// Word-set overlap of one half, no substring relation: rejected.
	original = []string{
		"padding alpha",
		"alpha beta gamma",
		"padding beta",
	}
	b2 := anchorAt(original, 1)
	edited = []string{
		"padding alpha",
		"alpha beta zulus",
		"padding beta",
	}
	if line, ok := m.Match(b2, "/tmp/doc2.txt", edited); ok {
		t.Errorf("half-overlap text must not match, got line %d", line)
	}
}

func TestMatchTrivialRejectShortAnchor(t *testing.T) {
	doc := []string{"ab", "cd", "ab"}
	b := newSourceBookmark("b-short", "/tmp/doc.txt", 0, "ab")
	b.Context = CaptureContext(doc, 0, 3)

	m := NewMatcher(DefaultMatchParams(), nil)
	if _, ok := m.Match(b, "/tmp/doc.txt", doc); ok {
		t.Error("text below the minimum anchor length must be rejected")
	}
}

func TestMatchEmptyDocument(t *testing.T) {
	b := newSourceBookmark("b-empty", "/tmp/doc.txt", 0, "some line of text")

	m := NewMatcher(DefaultMatchParams(), nil)
	if _, ok := m.Match(b, "/tmp/doc.txt", nil); ok {
		t.Error("empty document must never match")
	}
}

func TestMatchFuzzyAcceptsEditedLine(t *testing.T) {
	original := []string{
		"func dial(addr string) error {",
		"const maxRetries = 3",
		"return backoff(addr)",
	}
	b := anchorAt(original, 1)

	edited := []string{
		"func dial(addr string) error {",
		"const maxRetries = 5",
		"return backoff(addr)",
	}

	m := NewMatcher(DefaultMatchParams(), nil)
	line, ok := m.Match(b, "/tmp/doc.txt", edited)
	if !ok {
		t.Fatal("expected the fuzzy pass to recover the edited line")
	}
	if line != 1 {
		t.Errorf("expected line 1, got %d", line)
	}
}

func TestMatchFuzzyRejectsUnrelatedText(t *testing.T) {
	original := []string{
		"alpha bravo charlie",
		"const maxRetries = 3",
		"delta echo foxtrot",
	}
	b := anchorAt(original, 1)

	edited := []string{
		"alpha bravo charlie",
		"completely different content here",
		"delta echo foxtrot",
	}

	m := NewMatcher(DefaultMatchParams(), nil)
	if _, ok := m.Match(b, "/tmp/doc.txt", edited); ok {
		t.Error("dissimilar replacement text must not be adopted")
	}
}

func TestMatchFuzzyContainment(t *testing.T) {
	original := []string{
		"setup phase",
		"validateRequest(ctx, payload)",
		"teardown phase",
	}
	b := anchorAt(original, 1)

	// The stored text survives inside a longer line.
	edited := []string{
		"setup phase",
		"if err := validateRequest(ctx, payload); err != nil {",
		"teardown phase",
	}

	m := NewMatcher(DefaultMatchParams(), nil)
	line, ok := m.Match(b, "/tmp/doc.txt", edited)
	if !ok || line != 1 {
		t.Errorf("expected containment match at line 1, got %d (ok=%v)", line, ok)
	}
}

func TestMatchExactWinsOverFuzzy(t *testing.T) {
	original := []string{
		"padding line one",
		"const maxRetries = 3",
		"padding line two",
	}
	b := anchorAt(original, 1)

	// Both an exact copy and a near-copy exist; exact must win even though
	// the near-copy sits at the remembered position.
	edited := []string{
		"padding line one",
		"const maxRetries = 5",
		"padding line two",
		"const maxRetries = 3",
	}

	m := NewMatcher(DefaultMatchParams(), nil)
	line, ok := m.Match(b, "/tmp/doc.txt", edited)
	if !ok || line != 3 {
		t.Errorf("expected the exact copy at line 3, got %d (ok=%v)", line, ok)
	}
}

func TestMatchDeletedLineNotFound(t *testing.T) {
	original := []string{
		"alpha bravo charlie",
		"unique sentinel line",
		"delta echo foxtrot",
	}
	b := anchorAt(original, 1)

	edited := []string{
		"alpha bravo charlie",
		"delta echo foxtrot",
	}

	m := NewMatcher(DefaultMatchParams(), nil)
	if _, ok := m.Match(b, "/tmp/doc.txt", edited); ok {
		t.Error("a deleted line must resolve to not-found, not to a neighbor")
	}
}

func TestMatchIdempotent(t *testing.T) {
	doc := []string{
		"INFO starting up",
		"ERROR connection refused",
		"INFO retrying",
	}
	b := anchorAt(doc, 1)

	m := NewMatcher(DefaultMatchParams(), nil)
	first, ok1 := m.Match(b, "/tmp/doc.txt", doc)
	second, ok2 := m.Match(b, "/tmp/doc.txt", doc)
	if !ok1 || !ok2 || first != second {
		t.Errorf("repeated match diverged: %d/%v vs %d/%v", first, ok1, second, ok2)
	}
}

func TestMatchCacheInvalidatedByContentChange(t *testing.T) {
	doc := []string{
		"filler alpha",
		"tracked target line",
		"filler beta",
	}
	b := anchorAt(doc, 1)

	m := NewMatcher(DefaultMatchParams(), nil)
	if line, ok := m.Match(b, "/tmp/doc.txt", doc); !ok || line != 1 {
		t.Fatalf("warm-up match failed: %d/%v", line, ok)
	}

	// Same document ID, new content: the cached entry must not leak.
	moved := []string{
		"filler alpha",
		"filler beta",
		"tracked target line",
	}
	line, ok := m.Match(b, "/tmp/doc.txt", moved)
	if !ok || line != 2 {
		t.Errorf("expected fresh match at line 2, got %d (ok=%v)", line, ok)
	}
}

func TestMatcherInvalidate(t *testing.T) {
	doc := []string{"filler alpha", "tracked target line"}
	b := anchorAt(doc, 1)

	m := NewMatcher(DefaultMatchParams(), nil)
	if _, ok := m.Match(b, "/tmp/doc.txt", doc); !ok {
		t.Fatal("warm-up match failed")
	}
	m.Invalidate(b.ID)

	// Still matches, now from a cold cache.
	if line, ok := m.Match(b, "/tmp/doc.txt", doc); !ok || line != 1 {
		t.Errorf("post-invalidate match: %d/%v", line, ok)
	}
}

func TestMatchFuzzyWindowOnLargeDocument(t *testing.T) {
	p := DefaultMatchParams()
	doc := make([]string, p.WindowLimit+500)
	for i := range doc {
		doc[i] = "filler content line"
	}
	doc[200] = "const maxRetries = 3"

	b := anchorAt(doc, 200)
	b.LineText = "const maxRetries = 4" // force the fuzzy pass

	// A near-copy far outside the window must be invisible.
	doc[1400] = "const maxRetries = 40"

	m := NewMatcher(p, nil)
	line, ok := m.Match(b, "/tmp/big.txt", doc)
	if !ok {
		t.Fatal("expected a windowed fuzzy match")
	}
	if line != 200 {
		t.Errorf("match escaped the fuzzy window: line %d", line)
	}
}

func TestBlendedSimilarity(t *testing.T) {
	m := NewMatcher(DefaultMatchParams(), nil)

	if got := m.BlendedSimilarity("same text", "same text"); got != 1 {
		t.Errorf("identical text: got %v", got)
	}
	if got := m.BlendedSimilarity("alpha beta gamma", "alpha beta delta"); got < 0.3 {
		t.Errorf("similar text scored too low: %v", got)
	}
	if got := m.BlendedSimilarity("alpha beta", "zzz qqq"); got > 0.3 {
		t.Errorf("unrelated text scored too high: %v", got)
	}
}
