package engine

import "databug.app/engine/internal/model"

// ConfirmedConfidenceBoost is added to a bug's reported confidence when two
// independent streams corroborate the same issue.
const ConfirmedConfidenceBoost = 0.3

// severity base weights for the 0-100 numeric risk score.
func severityWeight(s model.Severity) float64 {
	switch s {
	case model.SeverityCritical:
		return 90
	case model.SeverityHigh:
		return 75
	case model.SeverityMedium:
		return 55
	case model.SeverityLow:
		return 35
	default:
		return 30
	}
}

// RankInput captures everything the ranker needs about one bug; deriving it
// fresh from cluster state on every call makes re-ranking idempotent.
type RankInput struct {
	Severity   model.Severity
	Confidence float64

	// BestLinkScore is the highest correlation total among the bug's links
	// (0 when unlinked).
	BestLinkScore float64

	// Corroborated is true when a second, independent stream reported the
	// same issue (a pipeline incident backing up a user-filed bug).
	Corroborated bool

	IsDuplicate bool
}

// RankResult is the recomputed priority state for a bug.
type RankResult struct {
	Priority      model.Priority
	PriorityScore int
	Confidence    float64
	Confirmed     bool
}

// Rank computes priority from severity plus correlation boosts. The ordinal
// level escalates by one (capped at P0) when the bug sits in a cluster whose
// root link total is at least StrongLinkScore. Corroboration across streams
// flags the bug confirmed and boosts confidence. Monotonic: adding boosts
// never lowers the result, independent of signal arrival order.
func Rank(in RankInput) RankResult {
	priority := model.PriorityForSeverity(in.Severity)
	if in.BestLinkScore >= StrongLinkScore {
		priority = priority.Escalate()
	}

	confidence := clamp01(in.Confidence)
	confirmed := in.Corroborated
	if confirmed {
		confidence = clamp01(confidence + ConfirmedConfidenceBoost)
	}

	score := severityWeight(in.Severity) * (0.5 + 0.5*confidence)
	if confirmed {
		score += 15
	}
	if in.BestLinkScore >= StrongLinkScore {
		score += 10
	}
	if in.IsDuplicate {
		score -= 25
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return RankResult{
		Priority:      priority,
		PriorityScore: int(score + 0.5),
		Confidence:    confidence,
		Confirmed:     confirmed,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
