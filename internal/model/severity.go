package model

// Severity is the shared 4-level ordinal scale both streams map onto.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Ordinal maps a severity to its rank: critical=4 down to low=1.
// Unknown severities rank lowest.
func (s Severity) Ordinal() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Priority is the ordinal triage level derived from severity and
// correlation boosts. P0 is the most urgent.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// PriorityForSeverity maps severity onto the base P0-P3 scale.
func PriorityForSeverity(s Severity) Priority {
	switch s {
	case SeverityCritical:
		return PriorityP0
	case SeverityHigh:
		return PriorityP1
	case SeverityMedium:
		return PriorityP2
	default:
		return PriorityP3
	}
}

// Escalate raises a priority by one level, capped at P0.
func (p Priority) Escalate() Priority {
	switch p {
	case PriorityP1:
		return PriorityP0
	case PriorityP2:
		return PriorityP1
	case PriorityP3:
		return PriorityP2
	default:
		return p
	}
}
