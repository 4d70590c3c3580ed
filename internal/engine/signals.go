package engine

import (
	"context"
	"strings"

	"databug.app/engine/internal/model"
)

// AdjacencySet is the result of a lineage lookup for one resource.
type AdjacencySet struct {
	// Direct holds components declared as immediate downstream dependents.
	Direct map[string]struct{}
	// Transitive holds components reachable further down the lineage,
	// or listed against the resource without a direct downstream marking.
	Transitive map[string]struct{}
}

// AdjacencyLookup resolves declared downstream dependents of a resource.
// Implementations are external (lineage graph); errors degrade the
// categorical signal, they never fail resolution.
type AdjacencyLookup interface {
	Downstream(ctx context.Context, resource string) (AdjacencySet, error)
}

// TemporalScore encodes the domain rule that causal effects cluster shortly
// after a root event and decay smoothly. deltaHours is bug time minus
// incident time; negative means the bug predates the incident and can never
// be its effect.
func TemporalScore(deltaHours float64) float64 {
	switch {
	case deltaHours < 0:
		return 0
	case deltaHours <= 1:
		return 1.0
	case deltaHours <= 2:
		return 0.9 - (deltaHours-1)*0.2
	case deltaHours <= 6:
		return 0.7 - (deltaHours-2)*0.1
	case deltaHours <= 24:
		return 0.3 - (deltaHours-6)*(0.3/18)
	default:
		return 0
	}
}

// categoricalScoreUnknown is the conservative default when the bug has no
// declared component or the lineage lookup is unavailable. Treating unknown
// as a weak positive avoids over-penalizing sparse metadata.
const categoricalScoreUnknown = 0.3

// CategoricalScore rates component/lineage adjacency between the incident's
// resource and the bug's classified component.
func CategoricalScore(adj AdjacencySet, component string) float64 {
	if component == "" {
		return categoricalScoreUnknown
	}
	key := strings.ToLower(component)
	if _, ok := adj.Direct[key]; ok {
		return 1.0
	}
	if _, ok := adj.Transitive[key]; ok {
		return 0.8
	}
	return 0
}

// LexicalScore counts how many incident keywords (resource name, affected
// fields, category label) appear in the bug's text, case-insensitive.
func LexicalScore(incident *model.Incident, bug *model.Bug) float64 {
	text := strings.ToLower(bug.Title + " " + bug.Description)

	keywords := make(map[string]struct{})
	addKeyword(keywords, incident.Resource)
	addKeyword(keywords, incident.IncidentType)
	for _, f := range incident.AffectedFields {
		addKeyword(keywords, f)
	}

	matches := 0
	for kw := range keywords {
		if strings.Contains(text, kw) {
			matches++
		}
	}

	switch {
	case matches >= 3:
		return 1.0
	case matches == 2:
		return 0.7
	case matches == 1:
		return 0.4
	default:
		return 0
	}
}

func addKeyword(set map[string]struct{}, raw string) {
	kw := strings.ToLower(strings.TrimSpace(raw))
	if kw != "" {
		set[kw] = struct{}{}
	}
}

// SeverityScore rates severity alignment: co-occurring high-severity events
// are more likely causally linked than a mismatch.
func SeverityScore(a, b model.Severity) float64 {
	oa, ob := a.Ordinal(), b.Ordinal()
	if oa >= 3 && ob >= 3 {
		return 1.0
	}
	dist := oa - ob
	if dist < 0 {
		dist = -dist
	}
	if dist <= 1 {
		return 0.7
	}
	return 0.3
}

// SemanticScore scales a cosine similarity from [-1,1] into [0,1].
func SemanticScore(cosine float64) float64 {
	s := (cosine + 1) / 2
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
