package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"databug.app/engine/common/id"
	"databug.app/engine/common/logger"
	"databug.app/engine/internal/engine"
	"databug.app/engine/internal/model"
	"databug.app/engine/internal/store"
)

// ResolveOutcome reports what one resolution pass did for a bug.
type ResolveOutcome struct {
	BugID     int64
	Links     []*model.CorrelationLink
	Primary   *model.CorrelationLink
	Rank      engine.RankResult
	Skipped   bool
	SkipCause string
}

type CorrelationService interface {
	// ResolveBug scores one bug against the incident window and persists
	// the admitted links, cluster membership and recomputed priority.
	ResolveBug(ctx context.Context, bugID int64) (*ResolveOutcome, error)

	// RescoreIncident re-runs resolution for every bug already linked to
	// incidents in the new incident's window, so a late-arriving cause can
	// claim bugs reported before it.
	RescoreIncident(ctx context.Context, incidentID int64) (int, error)

	// RankBug recomputes priority for a bug from its current links.
	RankBug(ctx context.Context, bugID int64) (engine.RankResult, error)
}

type correlationService struct {
	stores   StoreProvider
	resolver *engine.Resolver
	clusters ClusterService
	bugLocks *keyMutex
	logger   *slog.Logger
}

func NewCorrelationService(stores StoreProvider, resolver *engine.Resolver, clusters ClusterService, logger *slog.Logger) CorrelationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &correlationService{
		stores:   stores,
		resolver: resolver,
		clusters: clusters,
		bugLocks: newKeyMutex(),
		logger:   logger,
	}
}

func (s *correlationService) ResolveBug(ctx context.Context, bugID int64) (*ResolveOutcome, error) {
	s.bugLocks.Lock(bugID)
	defer s.bugLocks.Unlock(bugID)

	ctx = logger.WithLogFields(ctx, logger.LogFields{BugID: &bugID})

	bug, err := s.stores.Bugs().GetByID(ctx, bugID)
	if err != nil {
		return nil, fmt.Errorf("fetching bug: %w", err)
	}
	if bug.IsDuplicate {
		// Duplicates inherit their canonical's links; scoring them would
		// double-count the cluster.
		return &ResolveOutcome{BugID: bugID, Skipped: true, SkipCause: "duplicate"}, nil
	}
	if bug.Status.Terminal() {
		return &ResolveOutcome{BugID: bugID, Skipped: true, SkipCause: "terminal status"}, nil
	}

	cutoff := bug.ReportedAt.Add(-engine.LookbackWindowHours * time.Hour)
	incidents, err := s.stores.Incidents().ListOpenSince(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("listing candidate incidents: %w", err)
	}

	candidates := s.resolver.Resolve(ctx, bug, incidents)

	outcome := &ResolveOutcome{BugID: bugID}
	for _, c := range candidates {
		link := &model.CorrelationLink{
			ID:         id.New(),
			IncidentID: c.Incident.ID,
			BugID:      bugID,
			TotalScore: c.Total,
			Signals:    c.Signals,
		}
		stored, err := s.stores.Links().UpsertIfHigher(ctx, link)
		if err != nil {
			return nil, fmt.Errorf("persisting link: %w", err)
		}
		outcome.Links = append(outcome.Links, stored)

		if err := s.clusters.Join(ctx, c.Incident.ID, bugID); err != nil {
			return nil, fmt.Errorf("joining cluster: %w", err)
		}
	}

	rank, err := s.rankLocked(ctx, bug)
	if err != nil {
		return nil, err
	}
	outcome.Rank = rank

	if len(outcome.Links) > 0 {
		primary, err := s.markPrimary(ctx, bugID)
		if err != nil {
			return nil, err
		}
		outcome.Primary = primary
	}

	s.logger.InfoContext(ctx, "bug resolved",
		"bug_id", bugID,
		"candidates", len(incidents),
		"links", len(outcome.Links),
		"priority", rank.Priority,
		"priority_score", rank.PriorityScore)

	return outcome, nil
}

func (s *correlationService) RescoreIncident(ctx context.Context, incidentID int64) (int, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{IncidentID: &incidentID})

	incident, err := s.stores.Incidents().GetByID(ctx, incidentID)
	if err != nil {
		return 0, fmt.Errorf("fetching incident: %w", err)
	}

	// Bugs reported up to the lookback window after the incident are in
	// range. Find them through the links of window-mate incidents plus the
	// dedup-retry backlog; bugs with no links yet get picked up on their own
	// next pass.
	cutoff := incident.OccurredAt.Add(-engine.LookbackWindowHours * time.Hour)
	neighbors, err := s.stores.Incidents().ListOpenSince(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("listing window incidents: %w", err)
	}

	seen := make(map[int64]bool)
	for _, n := range neighbors {
		links, err := s.stores.Links().ListByIncident(ctx, n.ID)
		if err != nil {
			return 0, fmt.Errorf("listing links for incident %d: %w", n.ID, err)
		}
		for _, l := range links {
			seen[l.BugID] = true
		}
	}

	rescored := 0
	for bugID := range seen {
		if _, err := s.ResolveBug(ctx, bugID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return rescored, fmt.Errorf("re-scoring bug %d: %w", bugID, err)
		}
		rescored++
	}

	s.logger.InfoContext(ctx, "incident rescore completed",
		"incident_id", incidentID,
		"bugs_rescored", rescored)

	return rescored, nil
}

func (s *correlationService) RankBug(ctx context.Context, bugID int64) (engine.RankResult, error) {
	s.bugLocks.Lock(bugID)
	defer s.bugLocks.Unlock(bugID)

	bug, err := s.stores.Bugs().GetByID(ctx, bugID)
	if err != nil {
		return engine.RankResult{}, fmt.Errorf("fetching bug: %w", err)
	}
	return s.rankLocked(ctx, bug)
}

// rankLocked recomputes and persists priority. Callers hold the bug lock.
func (s *correlationService) rankLocked(ctx context.Context, bug *model.Bug) (engine.RankResult, error) {
	links, err := s.stores.Links().ListByBug(ctx, bug.ID)
	if err != nil {
		return engine.RankResult{}, fmt.Errorf("listing bug links: %w", err)
	}
	if len(links) == 0 && bug.IsDuplicate && bug.DuplicateOfID != nil {
		// Duplicates skip correlation, so they carry no links of their
		// own. They still sit in the canonical report's cluster and must
		// escalate with it.
		links, err = s.stores.Links().ListByBug(ctx, *bug.DuplicateOfID)
		if err != nil {
			return engine.RankResult{}, fmt.Errorf("listing canonical links: %w", err)
		}
	}

	var best *model.CorrelationLink
	for _, l := range links {
		if best == nil || l.TotalScore > best.TotalScore {
			best = l
		}
	}

	in := engine.RankInput{
		Severity:    effectiveSeverity(bug),
		Confidence:  bug.Classification.Confidence,
		IsDuplicate: bug.IsDuplicate,
	}
	if best != nil {
		in.BestLinkScore = best.TotalScore
		// Both streams describing the same issue with overlapping category
		// or vocabulary counts as independent corroboration.
		in.Corroborated = best.TotalScore >= engine.StrongLinkScore &&
			(best.Signals.Lexical > 0 || best.Signals.Categorical > 0)
	}

	rank := engine.Rank(in)
	if err := s.stores.Bugs().UpdatePriority(ctx, bug.ID, rank.Priority, rank.PriorityScore, rank.Confirmed, rank.Confidence); err != nil {
		return engine.RankResult{}, fmt.Errorf("persisting priority: %w", err)
	}
	return rank, nil
}

func (s *correlationService) markPrimary(ctx context.Context, bugID int64) (*model.CorrelationLink, error) {
	links, err := s.stores.Links().ListByBug(ctx, bugID)
	if err != nil {
		return nil, fmt.Errorf("listing bug links: %w", err)
	}
	if len(links) == 0 {
		return nil, nil
	}

	best := links[0]
	for _, l := range links[1:] {
		if l.TotalScore > best.TotalScore {
			best = l
		}
	}

	if err := s.stores.Links().SetPrimary(ctx, bugID, best.ID); err != nil {
		return nil, fmt.Errorf("marking primary link: %w", err)
	}
	best.Primary = true
	return best, nil
}

// effectiveSeverity prefers the triaged severity, which already honors a
// reporter override, and falls back to the raw report before triage runs.
func effectiveSeverity(bug *model.Bug) model.Severity {
	if bug.Classification.Severity != "" {
		return bug.Classification.Severity
	}
	if bug.Severity != "" {
		return bug.Severity
	}
	return model.SeverityMedium
}
