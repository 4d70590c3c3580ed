package triage

import (
	"context"
	"strings"

	"databug.app/engine/internal/model"
)

// Heuristic is the fallback classifier used when no LLM is configured.
// It reads labels and keyword cues only, so its confidence is low and
// correlation has to do the heavy lifting.
type Heuristic struct{}

func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

func (h *Heuristic) Model() string {
	return "heuristic"
}

// severityCues are checked most severe first; the first match wins.
var severityCues = []struct {
	severity model.Severity
	cues     []string
}{
	{model.SeverityCritical, []string{"data loss", "outage", "crash", "corrupt", "security"}},
	{model.SeverityHigh, []string{"wrong results", "broken", "fails", "error", "missing data"}},
	{model.SeverityLow, []string{"typo", "cosmetic", "minor", "nit"}},
}

func (h *Heuristic) Classify(_ context.Context, bug *model.Bug) (model.Classification, error) {
	text := strings.ToLower(bug.Title + " " + bug.Description)

	c := model.Classification{
		Type:       model.BugTypeBug,
		Severity:   model.SeverityMedium,
		Confidence: 0.3,
		Reasoning:  "keyword heuristic, no classifier configured",
	}

	for _, label := range bug.Labels {
		l := strings.ToLower(label)
		if comp, ok := strings.CutPrefix(l, "component:"); ok {
			c.Component = strings.TrimSpace(comp)
			c.Confidence = 0.5
		}
		switch l {
		case "feature", "enhancement":
			c.Type = model.BugTypeFeature
		case "question":
			c.Type = model.BugTypeQuestion
		}
	}

cueScan:
	for _, group := range severityCues {
		for _, cue := range group.cues {
			if strings.Contains(text, cue) {
				c.Severity = group.severity
				break cueScan
			}
		}
	}

	if bug.Severity != "" {
		// A reporter-supplied severity beats keyword cues.
		c.Severity = bug.Severity
	}

	return c, nil
}
