package core

import (
	"hash/fnv"
	"strings"
)

// jaccardSimilarity compares the lowercased word sets of two lines.
// Returns a value in [0, 1]; two empty strings are considered identical.
func jaccardSimilarity(a, b string) float64 {
	wordsA := fieldSet(a)
	wordsB := fieldSet(b)

	if len(wordsA) == 0 && len(wordsB) == 0 {
		return 1
	}
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if wordsB[w] {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	return float64(intersection) / float64(union)
}

func fieldSet(s string) map[string]bool {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return nil
	}
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

// levenshteinSimilarity converts edit distance into a [0, 1] similarity
// relative to the longer string.
func levenshteinSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}

	longer := la
	if lb > longer {
		longer = lb
	}
	return 1 - float64(levenshtein(a, b))/float64(longer)
}

// levenshtein computes edit distance with a two-row rolling buffer.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// occurrenceIndex counts lines before 'line' whose trimmed text equals the
// trimmed text of doc[line]. Out-of-range lines yield 0.
func occurrenceIndex(doc []string, line int) int {
	if line < 0 || line >= len(doc) {
		return 0
	}
	target := strings.TrimSpace(doc[line])
	count := 0
	for i := 0; i < line; i++ {
		if strings.TrimSpace(doc[i]) == target {
			count++
		}
	}
	return count
}

// relativePosition is line / total-line-count, clamped to [0, 1].
func relativePosition(line, total int) float64 {
	if total <= 0 {
		return 0
	}
	pos := float64(line) / float64(total)
	if pos < 0 {
		return 0
	}
	if pos > 1 {
		return 1
	}
	return pos
}

// hashLines fingerprints document content so cached matches can be
// invalidated when the document changes.
func hashLines(doc []string) uint64 {
	h := fnv.New64a()
	for _, line := range doc {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return h.Sum64()
}

// CaptureContext builds the positional fingerprint for a line in a
// document: up to windowSize trimmed lines on each side, the occurrence
// index, and the relative position.
func CaptureContext(doc []string, line, windowSize int) AnchorContext {
	ctx := AnchorContext{OccurrenceIndex: -1}
	if line < 0 || line >= len(doc) {
		return ctx
	}

	for i := line - windowSize; i < line; i++ {
		if i >= 0 {
			ctx.BeforeLines = append(ctx.BeforeLines, strings.TrimSpace(doc[i]))
		}
	}
	for i := line + 1; i <= line+windowSize && i < len(doc); i++ {
		ctx.AfterLines = append(ctx.AfterLines, strings.TrimSpace(doc[i]))
	}

	ctx.OccurrenceIndex = occurrenceIndex(doc, line)
	ctx.RelativePosition = relativePosition(line, len(doc))
	return ctx
}
