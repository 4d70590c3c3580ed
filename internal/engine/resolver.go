package engine

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"databug.app/engine/internal/model"
)

// LookbackWindow bounds the candidate search when resolving a new bug.
// The temporal scorer already returns 0 past 24 hours, so the window is an
// optimization, not a correctness requirement.
const LookbackWindowHours = 24

// SemanticSource computes the semantic similarity sub-score for a pair.
// A nil score means the embedding backend was unavailable; resolution
// proceeds without the signal.
type SemanticSource interface {
	PairSimilarity(ctx context.Context, incident *model.Incident, bug *model.Bug) (*float64, error)
}

// SignalDegradedAdjacency and friends name degraded signals on a link's
// sub-scores so the dashboard can show "signal X unavailable" instead of a
// silently wrong score.
const (
	SignalDegradedAdjacency = "categorical"
	SignalDegradedSemantic  = "semantic"
)

// Resolver scores candidate incident/bug pairs. Scorers are pure and share
// no state, so the five signals for one pair run concurrently.
type Resolver struct {
	adjacency AdjacencyLookup
	semantic  SemanticSource
}

func NewResolver(adjacency AdjacencyLookup, semantic SemanticSource) *Resolver {
	return &Resolver{adjacency: adjacency, semantic: semantic}
}

// Candidate is one scored pair produced by Resolve.
type Candidate struct {
	Incident *model.Incident
	Signals  model.SignalScores
	Total    float64
}

// ScorePair computes all sub-scores for one pair. Lookup failures degrade
// to conservative defaults and are recorded in Signals.Degraded; ScorePair
// itself never fails.
func (r *Resolver) ScorePair(ctx context.Context, incident *model.Incident, bug *model.Bug) model.SignalScores {
	var signals model.SignalScores
	var degradedAdjacency, degradedSemantic bool

	deltaHours := bug.ReportedAt.Sub(incident.OccurredAt).Hours()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		signals.Temporal = TemporalScore(deltaHours)
		return nil
	})
	g.Go(func() error {
		adj, err := r.adjacency.Downstream(gctx, incident.Resource)
		if err != nil {
			signals.Categorical = categoricalScoreUnknown
			degradedAdjacency = true
			return nil
		}
		signals.Categorical = CategoricalScore(adj, bug.Classification.Component)
		return nil
	})
	g.Go(func() error {
		signals.Lexical = LexicalScore(incident, bug)
		return nil
	})
	g.Go(func() error {
		signals.Severity = SeverityScore(incident.Severity, bug.Severity)
		return nil
	})
	if r.semantic != nil {
		g.Go(func() error {
			sim, err := r.semantic.PairSimilarity(gctx, incident, bug)
			if err != nil || sim == nil {
				degradedSemantic = err != nil
				return nil
			}
			score := SemanticScore(*sim)
			signals.Semantic = &score
			return nil
		})
	}
	_ = g.Wait() // scorer goroutines never return errors

	if degradedAdjacency {
		signals.Degraded = append(signals.Degraded, SignalDegradedAdjacency)
	}
	if degradedSemantic {
		signals.Degraded = append(signals.Degraded, SignalDegradedSemantic)
	}
	return signals
}

// Resolve scores the bug against every candidate incident and returns the
// admitted candidates ordered best-first. Ties on total score prefer the
// higher temporal sub-score, then the most recent incident.
//
// Admission requires a positive temporal score: a bug filed before the
// incident, or past the lookback window, cannot link no matter how well the
// other signals agree.
func (r *Resolver) Resolve(ctx context.Context, bug *model.Bug, incidents []*model.Incident) []Candidate {
	var admitted []Candidate
	for _, incident := range incidents {
		signals := r.ScorePair(ctx, incident, bug)
		if signals.Temporal <= 0 {
			continue
		}
		total := Aggregate(signals)
		if total < MinLinkScore {
			continue
		}
		admitted = append(admitted, Candidate{
			Incident: incident,
			Signals:  signals,
			Total:    total,
		})
	}

	sort.SliceStable(admitted, func(i, j int) bool {
		a, b := admitted[i], admitted[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.Signals.Temporal != b.Signals.Temporal {
			return a.Signals.Temporal > b.Signals.Temporal
		}
		return a.Incident.OccurredAt.After(b.Incident.OccurredAt)
	})
	return admitted
}
