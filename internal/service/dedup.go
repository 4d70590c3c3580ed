package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"databug.app/engine/common/id"
	"databug.app/engine/common/logger"
	"databug.app/engine/internal/embedding"
	"databug.app/engine/internal/engine"
	"databug.app/engine/internal/model"
	"databug.app/engine/internal/store"
)

// DedupOutcome reports the result of one duplicate check.
type DedupOutcome struct {
	BugID        int64
	IsDuplicate  bool
	CanonicalID  int64
	Similarity   float64
	RetryFlagged bool
}

type DedupService interface {
	// CheckDuplicate embeds the bug, searches stored vectors and marks the
	// bug a duplicate of its earliest near-identical predecessor. When the
	// embedding backend is unreachable the bug is flagged for retry and
	// admitted as unique for now.
	CheckDuplicate(ctx context.Context, bugID int64) (*DedupOutcome, error)

	// RetryPending re-runs the duplicate check for flagged bugs.
	RetryPending(ctx context.Context, limit int32) (int, error)
}

type dedupService struct {
	stores   StoreProvider
	embedder embedding.Embedder
	clusters ClusterService
	logger   *slog.Logger
}

func NewDedupService(stores StoreProvider, embedder embedding.Embedder, clusters ClusterService, logger *slog.Logger) DedupService {
	if logger == nil {
		logger = slog.Default()
	}
	return &dedupService{
		stores:   stores,
		embedder: embedder,
		clusters: clusters,
		logger:   logger,
	}
}

func (s *dedupService) CheckDuplicate(ctx context.Context, bugID int64) (*DedupOutcome, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{BugID: &bugID})

	bug, err := s.stores.Bugs().GetByID(ctx, bugID)
	if err != nil {
		return nil, fmt.Errorf("fetching bug: %w", err)
	}
	if bug.IsDuplicate {
		existing, err := s.stores.DuplicateLinks().GetByBug(ctx, bugID)
		if err != nil {
			return nil, fmt.Errorf("fetching duplicate link: %w", err)
		}
		return &DedupOutcome{
			BugID:       bugID,
			IsDuplicate: true,
			CanonicalID: existing.CanonicalID,
			Similarity:  existing.Similarity,
		}, nil
	}

	vector, err := s.embedder.Embed(ctx, embedding.BugText(bug))
	if err != nil {
		// Correlation must not stall on an embedding outage; admit the bug
		// as unique and let the retry pass catch late duplicates.
		if flagErr := s.stores.Bugs().SetNeedsDedupRetry(ctx, bugID, true); flagErr != nil {
			return nil, fmt.Errorf("flagging dedup retry: %w", flagErr)
		}
		s.logger.WarnContext(ctx, "embedding unavailable, dedup deferred",
			"bug_id", bugID,
			"error", err)
		return &DedupOutcome{BugID: bugID, RetryFlagged: true}, nil
	}

	embeddingID := fmt.Sprintf("bug-%d", bugID)
	if err := s.stores.Embeddings().Save(ctx, embeddingID, model.MemberKindBug, bugID, vector); err != nil {
		return nil, fmt.Errorf("saving embedding: %w", err)
	}
	if err := s.stores.Bugs().UpdateEmbeddingID(ctx, bugID, embeddingID); err != nil {
		return nil, fmt.Errorf("recording embedding id: %w", err)
	}

	stored, err := s.stores.Embeddings().ListBugVectors(ctx, bugID)
	if err != nil {
		return nil, fmt.Errorf("listing stored vectors: %w", err)
	}

	matches := make([]engine.Match, 0, len(stored))
	for _, v := range stored {
		matches = append(matches, engine.Match{
			BugID:      v.BugID,
			Similarity: embedding.Cosine(vector, v.Vector),
		})
	}
	matches = engine.TopMatches(matches, engine.DedupTopK)

	excluded, err := s.excludedMatches(ctx, bug, matches)
	if err != nil {
		return nil, err
	}

	match, found := engine.SelectDuplicate(matches, excluded)
	outcome := &DedupOutcome{BugID: bugID}
	if found {
		canonicalID, err := s.canonicalOf(ctx, match.BugID)
		if err != nil {
			return nil, err
		}
		if err := s.markDuplicate(ctx, bugID, canonicalID, match.Similarity); err != nil {
			return nil, err
		}
		outcome.IsDuplicate = true
		outcome.CanonicalID = canonicalID
		outcome.Similarity = match.Similarity
	}

	if bug.NeedsDedupRetry {
		if err := s.stores.Bugs().SetNeedsDedupRetry(ctx, bugID, false); err != nil {
			return nil, fmt.Errorf("clearing dedup retry flag: %w", err)
		}
	}

	return outcome, nil
}

func (s *dedupService) RetryPending(ctx context.Context, limit int32) (int, error) {
	bugs, err := s.stores.Bugs().ListNeedsDedupRetry(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("listing dedup retry backlog: %w", err)
	}

	retried := 0
	for _, bug := range bugs {
		outcome, err := s.CheckDuplicate(ctx, bug.ID)
		if err != nil {
			return retried, fmt.Errorf("retrying dedup for bug %d: %w", bug.ID, err)
		}
		if outcome.RetryFlagged {
			// Backend still down; stop burning the batch.
			break
		}
		retried++
	}
	return retried, nil
}

// excludedMatches builds the exclusion set for duplicate selection: bugs
// reported after the candidate cannot be its canonical.
func (s *dedupService) excludedMatches(ctx context.Context, bug *model.Bug, matches []engine.Match) (map[int64]bool, error) {
	excluded := map[int64]bool{bug.ID: true}
	for _, m := range matches {
		other, err := s.stores.Bugs().GetByID(ctx, m.BugID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				excluded[m.BugID] = true
				continue
			}
			return nil, fmt.Errorf("fetching match %d: %w", m.BugID, err)
		}
		if other.ReportedAt.After(bug.ReportedAt) {
			excluded[m.BugID] = true
		}
	}
	return excluded, nil
}

// canonicalOf follows at most one hop so duplicate chains never deepen: a
// duplicate of a duplicate points straight at the original.
func (s *dedupService) canonicalOf(ctx context.Context, bugID int64) (int64, error) {
	target, err := s.stores.Bugs().GetByID(ctx, bugID)
	if err != nil {
		return 0, fmt.Errorf("fetching canonical target: %w", err)
	}
	if target.IsDuplicate && target.DuplicateOfID != nil {
		return *target.DuplicateOfID, nil
	}
	return target.ID, nil
}

func (s *dedupService) markDuplicate(ctx context.Context, bugID, canonicalID int64, similarity float64) error {
	if err := s.stores.Bugs().MarkDuplicate(ctx, bugID, canonicalID); err != nil {
		return fmt.Errorf("marking duplicate: %w", err)
	}

	link := &model.DuplicateLink{
		ID:          id.New(),
		BugID:       bugID,
		CanonicalID: canonicalID,
		Similarity:  similarity,
	}
	if err := s.stores.DuplicateLinks().Create(ctx, link); err != nil {
		return fmt.Errorf("creating duplicate link: %w", err)
	}

	if err := s.clusters.JoinBugs(ctx, bugID, canonicalID); err != nil {
		return fmt.Errorf("clustering duplicate: %w", err)
	}

	s.logger.InfoContext(ctx, "duplicate detected",
		"bug_id", bugID,
		"canonical_id", canonicalID,
		"similarity", similarity)
	return nil
}
