package model

import "time"

// SignalScores keeps the per-signal sub-scores of a correlation link for
// explainability. Semantic is a pointer: nil means the embedding backend
// was unavailable when the pair was scored, and the dashboard shows a
// degraded-signal indicator instead of a number.
type SignalScores struct {
	Temporal    float64  `json:"temporal"`
	Categorical float64  `json:"categorical"`
	Lexical     float64  `json:"lexical"`
	Severity    float64  `json:"severity"`
	Semantic    *float64 `json:"semantic,omitempty"`

	// Degraded names any signals that fell back to a conservative default
	// because their backing lookup was unreachable.
	Degraded []string `json:"degraded,omitempty"`
}

// CorrelationLink is a scored association between an incident and a bug.
// At most one active link exists per (incident, bug) pair; updates follow
// keep-highest-score semantics and never regress TotalScore.
type CorrelationLink struct {
	ID         int64
	IncidentID int64
	BugID      int64
	TotalScore float64
	Signals    SignalScores

	// Primary marks the highest-scoring link among all links of the bug.
	Primary bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DuplicateLink records near-identity between two bugs of the same stream.
// It always points from the newer bug to the earliest non-duplicate
// ancestor, so chains never exceed one hop.
type DuplicateLink struct {
	ID          int64
	BugID       int64 // the newer, duplicate bug
	CanonicalID int64 // the earliest non-duplicate occurrence
	Similarity  float64
	CreatedAt   time.Time
}
