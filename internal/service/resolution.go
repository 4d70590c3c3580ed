package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"databug.app/engine/common/logger"
	"databug.app/engine/internal/model"
	"databug.app/engine/internal/store"
)

var ErrIncidentNotFound = errors.New("incident not found")

// PropagationResult reports a resolution cascade.
type PropagationResult struct {
	IncidentID   int64
	ResolvedBugs []int64
}

type ResolutionService interface {
	// PropagateResolution marks the incident resolved and cascades the
	// resolution to every non-terminal bug in the incident's cluster,
	// duplicates included. The cascade is all-or-nothing: one transaction
	// covers the incident and all bugs.
	PropagateResolution(ctx context.Context, incidentID int64, notes *string) (*PropagationResult, error)
}

type resolutionService struct {
	txRunner TxRunner
	logger   *slog.Logger
}

func NewResolutionService(txRunner TxRunner, logger *slog.Logger) ResolutionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &resolutionService{
		txRunner: txRunner,
		logger:   logger,
	}
}

func (s *resolutionService) PropagateResolution(ctx context.Context, incidentID int64, notes *string) (*PropagationResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{IncidentID: &incidentID})

	result := &PropagationResult{IncidentID: incidentID}

	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		incident, err := sp.Incidents().GetByID(ctx, incidentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrIncidentNotFound
			}
			return fmt.Errorf("fetching incident: %w", err)
		}
		if incident.Status.Terminal() {
			// Already resolved; cascading again would clobber notes.
			return nil
		}

		if err := sp.Incidents().UpdateStatus(ctx, incidentID, model.IncidentStatusResolved, notes); err != nil {
			return fmt.Errorf("resolving incident: %w", err)
		}

		member, err := sp.Clusters().GetMember(ctx, model.MemberKindIncident, incidentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// Unclustered incident: nothing linked, nothing to cascade.
				return nil
			}
			return fmt.Errorf("fetching cluster membership: %w", err)
		}

		members, err := sp.Clusters().ListMembers(ctx, member.ClusterID)
		if err != nil {
			return fmt.Errorf("listing cluster members: %w", err)
		}

		resolutionNotes := cascadeNotes(incident, notes)
		for _, m := range members {
			if m.Kind != model.MemberKindBug {
				continue
			}
			bug, err := sp.Bugs().GetByID(ctx, m.EventID)
			if err != nil {
				return fmt.Errorf("fetching clustered bug %d: %w", m.EventID, err)
			}
			if bug.Status.Terminal() {
				continue
			}

			if err := sp.Bugs().UpdateStatus(ctx, bug.ID, model.BugStatusResolved, &resolutionNotes, &incidentID); err != nil {
				return fmt.Errorf("resolving bug %d: %w", bug.ID, err)
			}
			result.ResolvedBugs = append(result.ResolvedBugs, bug.ID)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "resolution propagated",
		"incident_id", incidentID,
		"bugs_resolved", len(result.ResolvedBugs))

	return result, nil
}

func cascadeNotes(incident *model.Incident, notes *string) string {
	base := fmt.Sprintf("resolved via incident %d (%s on %s)",
		incident.ID, incident.IncidentType, incident.Resource)
	if notes != nil && *notes != "" {
		return base + ": " + *notes
	}
	return base
}
