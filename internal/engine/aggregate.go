package engine

import "databug.app/engine/internal/model"

// Fixed signal weights. Semantic similarity is deliberately excluded from
// the blend: it is used by duplicate detection, and blending it here would
// double-count text similarity against the lexical signal.
const (
	WeightTemporal    = 0.35
	WeightCategorical = 0.35
	WeightLexical     = 0.20
	WeightSeverity    = 0.10
)

// MinLinkScore is the admission threshold below which no correlation link
// is persisted.
const MinLinkScore = 0.3

// StrongLinkScore marks a link confident enough to escalate the bug's
// priority by one level.
const StrongLinkScore = 0.7

// Aggregate combines sub-scores into one correlation score, clamped to 1.0.
// Deterministic and side-effect-free: identical inputs always produce
// identical scores, which makes re-scoring after late data corrections
// idempotent.
func Aggregate(s model.SignalScores) float64 {
	total := WeightTemporal*s.Temporal +
		WeightCategorical*s.Categorical +
		WeightLexical*s.Lexical +
		WeightSeverity*s.Severity
	if total > 1.0 {
		return 1.0
	}
	return total
}
