package core

// MatchParams holds the tunable constants of the anchoring policy. The
// defaults are empirical; they are exposed here (and through the YAML
// config) rather than hard-coded so they can be adjusted without a rebuild.
type MatchParams struct {
	// MinAnchorLength rejects stored line text shorter than this many
	// trimmed characters as too unreliable to anchor on.
	MinAnchorLength int `yaml:"min_anchor_length"`

	// ExactBase is the base score of an exact-text candidate.
	ExactBase float64 `yaml:"exact_base"`

	// OccurrenceBonus is added when a candidate's occurrence index equals
	// the recorded one; OccurrenceMismatch is subtracted per unit of
	// difference otherwise.
	OccurrenceBonus    float64 `yaml:"occurrence_bonus"`
	OccurrenceMismatch float64 `yaml:"occurrence_mismatch"`

	// ContextWeight scales the context-similarity bonus.
	ContextWeight float64 `yaml:"context_weight"`

	// AfterLineWeight weights after-lines relative to before-lines (1:1.5).
	AfterLineWeight float64 `yaml:"after_line_weight"`

	// PositionPenalty scales the relative-position difference penalty.
	PositionPenalty float64 `yaml:"position_penalty"`

	// FuzzyThreshold is the acceptance bar of the fuzzy fallback.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`

	// JaccardWeight and LevenshteinWeight blend the two similarity
	// signals; Levenshtein is only computed when both strings are shorter
	// than MaxLevenshteinLength.
	JaccardWeight        float64 `yaml:"jaccard_weight"`
	LevenshteinWeight    float64 `yaml:"levenshtein_weight"`
	MaxLevenshteinLength int     `yaml:"max_levenshtein_length"`

	// FuzzyContextScale and FuzzyPositionScale soften the context bonus
	// and position penalty in the fuzzy pass.
	FuzzyContextScale  float64 `yaml:"fuzzy_context_scale"`
	FuzzyPositionScale float64 `yaml:"fuzzy_position_scale"`

	// FuzzyWindow bounds the fuzzy search to ±N lines around the last
	// known line once a document exceeds WindowLimit lines.
	FuzzyWindow int `yaml:"fuzzy_window"`
	WindowLimit int `yaml:"window_limit"`

	// CheapPathSimilarity gates the in-place single-line update: below
	// this similarity the edit is treated as unrelated text.
	CheapPathSimilarity float64 `yaml:"cheap_path_similarity"`

	// ContextWindow is the number of lines captured on each side of an
	// anchor.
	ContextWindow int `yaml:"context_window"`

	// CacheSize bounds the (bookmark, document) match cache.
	CacheSize int `yaml:"cache_size"`
}

// DefaultMatchParams returns the reference anchoring policy.
func DefaultMatchParams() MatchParams {
	return MatchParams{
		MinAnchorLength:      3,
		ExactBase:            100,
		OccurrenceBonus:      150,
		OccurrenceMismatch:   20,
		ContextWeight:        50,
		AfterLineWeight:      1.5,
		PositionPenalty:      100,
		FuzzyThreshold:       0.7,
		JaccardWeight:        0.7,
		LevenshteinWeight:    0.3,
		MaxLevenshteinLength: 100,
		FuzzyContextScale:    0.8,
		FuzzyPositionScale:   0.5,
		FuzzyWindow:          100,
		WindowLimit:          1000,
		CheapPathSimilarity:  0.6,
		ContextWindow:        3,
		CacheSize:            512,
	}
}
