package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"databug.app/engine/internal/engine"
	"databug.app/engine/internal/model"
	"databug.app/engine/internal/store"
)

var ErrClusterNotFound = errors.New("cluster not found")

type ClusterService interface {
	// Join merges the clusters of an incident and a bug. Either side joins
	// a fresh singleton cluster if not yet a member.
	Join(ctx context.Context, incidentID, bugID int64) error

	// JoinBugs merges the clusters of two bugs (duplicate links).
	JoinBugs(ctx context.Context, bugID, canonicalID int64) error

	// GetCluster returns the full cluster containing the given member.
	GetCluster(ctx context.Context, kind model.MemberKind, eventID int64) (*model.Cluster, error)

	// Rebuild recomputes every cluster from scratch as the connected
	// components of the link graph. Used after bulk correlation passes.
	Rebuild(ctx context.Context) (int, error)
}

type clusterService struct {
	stores StoreProvider
	// mu serializes all cluster mutations: merges touch two sets at once,
	// and interleaved merges could otherwise lose members.
	mu     sync.Mutex
	logger *slog.Logger
}

func NewClusterService(stores StoreProvider, logger *slog.Logger) ClusterService {
	if logger == nil {
		logger = slog.Default()
	}
	return &clusterService{
		stores: stores,
		logger: logger,
	}
}

func (s *clusterService) Join(ctx context.Context, incidentID, bugID int64) error {
	return s.join(ctx, model.MemberKindIncident, incidentID, model.MemberKindBug, bugID)
}

func (s *clusterService) JoinBugs(ctx context.Context, bugID, canonicalID int64) error {
	return s.join(ctx, model.MemberKindBug, canonicalID, model.MemberKindBug, bugID)
}

func (s *clusterService) join(ctx context.Context, kindA model.MemberKind, idA int64, kindB model.MemberKind, idB int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clusterA, err := s.memberCluster(ctx, kindA, idA)
	if err != nil {
		return err
	}
	clusterB, err := s.memberCluster(ctx, kindB, idB)
	if err != nil {
		return err
	}

	if clusterA == clusterB {
		return nil
	}

	// Union by size: fold the smaller set into the larger one so the
	// representative of a big cluster stays stable as stragglers join.
	membersA, err := s.stores.Clusters().ListMembers(ctx, clusterA)
	if err != nil {
		return fmt.Errorf("sizing cluster %d: %w", clusterA, err)
	}
	membersB, err := s.stores.Clusters().ListMembers(ctx, clusterB)
	if err != nil {
		return fmt.Errorf("sizing cluster %d: %w", clusterB, err)
	}

	winner, loser := clusterA, clusterB
	if len(membersB) > len(membersA) {
		winner, loser = clusterB, clusterA
	}

	if err := s.stores.Clusters().Reassign(ctx, loser, winner); err != nil {
		return fmt.Errorf("merging clusters: %w", err)
	}

	s.logger.InfoContext(ctx, "clusters merged",
		"from_cluster", loser,
		"into_cluster", winner)
	return nil
}

// memberCluster returns the member's cluster id, registering a singleton
// cluster when the member is new.
func (s *clusterService) memberCluster(ctx context.Context, kind model.MemberKind, eventID int64) (int64, error) {
	member, err := s.stores.Clusters().GetMember(ctx, kind, eventID)
	if err == nil {
		return member.ClusterID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return 0, fmt.Errorf("fetching cluster member: %w", err)
	}

	m := &model.ClusterMember{
		EventID:   eventID,
		Kind:      kind,
		ClusterID: eventID,
	}
	if err := s.stores.Clusters().UpsertMember(ctx, m); err != nil {
		return 0, fmt.Errorf("registering cluster member: %w", err)
	}
	return m.ClusterID, nil
}

func (s *clusterService) Rebuild(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	links, err := s.stores.Links().ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing links: %w", err)
	}
	dups, err := s.stores.DuplicateLinks().ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing duplicate links: %w", err)
	}

	uf := engine.NewUnionFind()
	kinds := make(map[int64]model.MemberKind)
	for _, l := range links {
		kinds[l.IncidentID] = model.MemberKindIncident
		kinds[l.BugID] = model.MemberKindBug
		uf.Union(l.IncidentID, l.BugID)
	}
	for _, d := range dups {
		kinds[d.BugID] = model.MemberKindBug
		kinds[d.CanonicalID] = model.MemberKindBug
		uf.Union(d.BugID, d.CanonicalID)
	}

	for eventID := range uf.Parents() {
		m := &model.ClusterMember{
			EventID:   eventID,
			Kind:      kinds[eventID],
			ClusterID: uf.Find(eventID),
		}
		if err := s.stores.Clusters().UpsertMember(ctx, m); err != nil {
			return 0, fmt.Errorf("writing member %d: %w", eventID, err)
		}
	}

	s.logger.InfoContext(ctx, "clusters rebuilt", "members", len(kinds))
	return len(kinds), nil
}

func (s *clusterService) GetCluster(ctx context.Context, kind model.MemberKind, eventID int64) (*model.Cluster, error) {
	member, err := s.stores.Clusters().GetMember(ctx, kind, eventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrClusterNotFound
		}
		return nil, fmt.Errorf("fetching cluster member: %w", err)
	}

	members, err := s.stores.Clusters().ListMembers(ctx, member.ClusterID)
	if err != nil {
		return nil, fmt.Errorf("listing cluster members: %w", err)
	}

	var incidentIDs, bugIDs []int64
	for _, m := range members {
		switch m.Kind {
		case model.MemberKindIncident:
			incidentIDs = append(incidentIDs, m.EventID)
		case model.MemberKindBug:
			bugIDs = append(bugIDs, m.EventID)
		}
	}

	incidents, err := s.stores.Incidents().ListByIDs(ctx, incidentIDs)
	if err != nil {
		return nil, fmt.Errorf("listing cluster incidents: %w", err)
	}
	bugs, err := s.stores.Bugs().ListByIDs(ctx, bugIDs)
	if err != nil {
		return nil, fmt.Errorf("listing cluster bugs: %w", err)
	}

	cluster := &model.Cluster{
		ID: member.ClusterID,
		Stats: model.ClusterStats{
			MemberCount:   len(members),
			IncidentCount: len(incidents),
			BugCount:      len(bugs),
		},
	}
	for _, inc := range incidents {
		cluster.Incidents = append(cluster.Incidents, *inc)

		links, err := s.stores.Links().ListByIncident(ctx, inc.ID)
		if err != nil {
			return nil, fmt.Errorf("listing incident links: %w", err)
		}
		for _, l := range links {
			if l.TotalScore > cluster.Stats.MaxLinkScore {
				cluster.Stats.MaxLinkScore = l.TotalScore
			}
		}
	}
	for _, bug := range bugs {
		cluster.Bugs = append(cluster.Bugs, *bug)
		if bug.Confirmed {
			cluster.Stats.ConfirmedCount++
		}
	}

	return cluster, nil
}
