package core

import (
	"log/slog"
	"math"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Matcher re-locates a bookmark in a target document's current text. It is
// a pure function of its inputs (stored fingerprint + current lines); the
// only state it carries is a bounded cache of previous matches.
//
// Precedence is strict: cache, trivial reject, exact-text pass, fuzzy
// fallback. The first rule producing a non-empty candidate set wins.
type Matcher struct {
	params MatchParams
	cache  *lru.Cache[string, cachedMatch]
	logger *slog.Logger
}

// cachedMatch remembers a resolved line together with the document hash and
// stored text it was resolved against, so a stale entry can never be
// returned.
type cachedMatch struct {
	line     int
	docHash  uint64
	lineText string
}

// NewMatcher creates a matcher with the given policy. A nil-safe logger
// may be passed for trace output.
func NewMatcher(params MatchParams, logger *slog.Logger) *Matcher {
	m := &Matcher{params: params, logger: logger}
	if params.CacheSize > 0 {
		// lru.New only fails on a non-positive size.
		m.cache, _ = lru.New[string, cachedMatch](params.CacheSize)
	}
	return m
}

// Params returns the active anchoring policy.
func (m *Matcher) Params() MatchParams {
	return m.params
}

// Match returns the best current line for the bookmark in the given
// document, or false when confidence is insufficient. It never panics on
// empty documents, out-of-range lines, or empty stored text; all of those
// resolve to "not found".
func (m *Matcher) Match(b Bookmark, documentID string, doc []string) (int, bool) {
	stored := strings.TrimSpace(b.LineText)

	// Cache check.
	key := b.ID + "\x00" + documentID
	docHash := hashLines(doc)
	if m.cache != nil {
		if entry, ok := m.cache.Get(key); ok {
			if entry.docHash == docHash && entry.lineText == b.LineText && entry.line < len(doc) {
				return entry.line, true
			}
			m.cache.Remove(key)
		}
	}

	// Trivial reject: too short to be a reliable anchor.
	if len(stored) < m.params.MinAnchorLength || len(doc) == 0 {
		return 0, false
	}

	line, ok := m.matchExact(b, stored, doc)
	if !ok {
		line, ok = m.matchFuzzy(b, stored, doc)
	}

	if ok && m.cache != nil {
		m.cache.Add(key, cachedMatch{line: line, docHash: docHash, lineText: b.LineText})
	}
	return line, ok
}

// Invalidate drops any cached matches for a bookmark. Called when the
// bookmark is removed or its stored text is rewritten.
func (m *Matcher) Invalidate(bookmarkID string) {
	if m.cache == nil {
		return
	}
	prefix := bookmarkID + "\x00"
	for _, key := range m.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			m.cache.Remove(key)
		}
	}
}

// matchExact collects every line whose trimmed text equals the stored text.
// A candidate whose occurrence index equals the recorded one wins
// immediately; otherwise candidates are scored.
func (m *Matcher) matchExact(b Bookmark, stored string, doc []string) (int, bool) {
	p := m.params

	type candidate struct {
		line int
		occ  int
	}
	var candidates []candidate

	occ := 0
	for i, raw := range doc {
		if strings.TrimSpace(raw) != stored {
			continue
		}
		if b.Context.OccurrenceIndex >= 0 && occ == b.Context.OccurrenceIndex {
			return i, true
		}
		candidates = append(candidates, candidate{line: i, occ: occ})
		occ++
	}

	if len(candidates) == 0 {
		return 0, false
	}

	best, bestScore := -1, math.Inf(-1)
	for _, c := range candidates {
		score := p.ExactBase
		if b.Context.OccurrenceIndex >= 0 {
			if c.occ == b.Context.OccurrenceIndex {
				score += p.OccurrenceBonus
			} else {
				score -= p.OccurrenceMismatch * math.Abs(float64(c.occ-b.Context.OccurrenceIndex))
			}
		}
		score += p.ContextWeight * contextSimilarity(doc, c.line, b.Context, p.AfterLineWeight)
		score -= p.PositionPenalty * math.Abs(relativePosition(c.line, len(doc))-b.Context.RelativePosition)

		if score > bestScore {
			best, bestScore = c.line, score
		}
	}
	return best, best >= 0
}

// matchFuzzy runs only when the exact pass found zero lines. Candidacy
// requires substring containment in either direction or a blended
// similarity above the threshold; the top scorer must still clear the
// threshold to be accepted.
func (m *Matcher) matchFuzzy(b Bookmark, stored string, doc []string) (int, bool) {
	p := m.params

	lo, hi := 0, len(doc)
	if p.WindowLimit > 0 && len(doc) > p.WindowLimit && p.FuzzyWindow > 0 {
		lo = b.LineNumber - p.FuzzyWindow
		if lo < 0 {
			lo = 0
		}
		hi = b.LineNumber + p.FuzzyWindow + 1
		if hi > len(doc) {
			hi = len(doc)
		}
	}

	best, bestScore := -1, math.Inf(-1)
	for i := lo; i < hi; i++ {
		cand := strings.TrimSpace(doc[i])
		if cand == "" {
			continue
		}

		sim := p.JaccardWeight * jaccardSimilarity(stored, cand)
		if len(stored) < p.MaxLevenshteinLength && len(cand) < p.MaxLevenshteinLength {
			sim += p.LevenshteinWeight * levenshteinSimilarity(stored, cand)
		}

		contains := strings.Contains(cand, stored) || strings.Contains(stored, cand)
		if contains {
			// A containment pair is at least as similar as the ratio of
			// the two lengths, even when word sets diverge.
			shorter, longer := len(stored), len(cand)
			if shorter > longer {
				shorter, longer = longer, shorter
			}
			if ratio := float64(shorter) / float64(longer); ratio > sim {
				sim = ratio
			}
		}

		if !contains && sim <= p.FuzzyThreshold {
			continue
		}

		score := sim * 100
		score += p.ContextWeight * p.FuzzyContextScale * contextSimilarity(doc, i, b.Context, p.AfterLineWeight)
		score -= p.PositionPenalty * p.FuzzyPositionScale * math.Abs(relativePosition(i, len(doc))-b.Context.RelativePosition)

		if score > bestScore {
			best, bestScore = i, score
		}
	}

	if best < 0 || bestScore <= p.FuzzyThreshold*100 {
		if m.logger != nil {
			m.logger.Debug("fuzzy match below threshold", "bookmark", b.ID, "best_score", bestScore)
		}
		return 0, false
	}
	return best, true
}

// contextSimilarity measures how well the document text around a candidate
// line agrees with the stored fingerprint. Before and after lines are
// weighted 1 : afterWeight, with a 1/(distance+1) decay per line; exact
// equality counts full weight, substring containment half. A fingerprint
// with no context lines (malformed or captured at a document edge) yields
// zero similarity, never an error.
func contextSimilarity(doc []string, line int, ctx AnchorContext, afterWeight float64) float64 {
	var total, score float64

	n := len(ctx.BeforeLines)
	for i := 0; i < n; i++ {
		stored := ctx.BeforeLines[n-1-i] // nearest line first
		w := 1.0 / float64(i+1)
		total += w
		if di := line - 1 - i; di >= 0 && di < len(doc) {
			score += w * lineAffinity(strings.TrimSpace(doc[di]), stored)
		}
	}

	for i, stored := range ctx.AfterLines {
		w := afterWeight / float64(i+1)
		total += w
		if di := line + 1 + i; di >= 0 && di < len(doc) {
			score += w * lineAffinity(strings.TrimSpace(doc[di]), stored)
		}
	}

	if total == 0 {
		return 0
	}
	return score / total
}

func lineAffinity(current, stored string) float64 {
	if current == stored {
		return 1
	}
	if current != "" && stored != "" &&
		(strings.Contains(current, stored) || strings.Contains(stored, current)) {
		return 0.5
	}
	return 0
}

// BlendedSimilarity exposes the fuzzy similarity blend used by the matcher
// so the coordinator can gate its cheap single-line update path on the same
// policy.
func (m *Matcher) BlendedSimilarity(a, b string) float64 {
	p := m.params
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == b {
		return 1
	}

	sim := p.JaccardWeight * jaccardSimilarity(a, b)
	if len(a) < p.MaxLevenshteinLength && len(b) < p.MaxLevenshteinLength {
		sim += p.LevenshteinWeight * levenshteinSimilarity(a, b)
	}
	return sim
}
