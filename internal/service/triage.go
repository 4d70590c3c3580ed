package service

import (
	"context"
	"fmt"
	"log/slog"

	"databug.app/engine/common/logger"
	"databug.app/engine/internal/model"
	"databug.app/engine/internal/triage"
)

type TriageService interface {
	// Classify fills in the bug's classification and moves it to triaged.
	// Idempotent: an already-triaged bug is returned as-is.
	Classify(ctx context.Context, bugID int64) (model.Classification, error)
}

type triageService struct {
	stores     StoreProvider
	classifier triage.Classifier
	fallback   triage.Classifier
	logger     *slog.Logger
}

func NewTriageService(stores StoreProvider, classifier triage.Classifier, logger *slog.Logger) TriageService {
	if logger == nil {
		logger = slog.Default()
	}
	return &triageService{
		stores:     stores,
		classifier: classifier,
		fallback:   triage.NewHeuristic(),
		logger:     logger,
	}
}

func (s *triageService) Classify(ctx context.Context, bugID int64) (model.Classification, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{BugID: &bugID})

	bug, err := s.stores.Bugs().GetByID(ctx, bugID)
	if err != nil {
		return model.Classification{}, fmt.Errorf("fetching bug: %w", err)
	}
	if bug.Status != model.BugStatusNew {
		return bug.Classification, nil
	}

	c, err := s.classifier.Classify(ctx, bug)
	if err != nil {
		// Retryable errors (rate limits, 5xx) go back to the queue. A
		// non-retryable error won't improve on retry, so classify
		// heuristically rather than stall the bug forever.
		if triage.IsRetryable(ctx, err) {
			return model.Classification{}, fmt.Errorf("classifying bug: %w", err)
		}
		s.logger.WarnContext(ctx, "classifier failed, using heuristic fallback",
			"bug_id", bugID, "error", err)
		c, err = s.fallback.Classify(ctx, bug)
		if err != nil {
			return model.Classification{}, fmt.Errorf("classifying bug: %w", err)
		}
	}

	// A reporter-supplied severity is authoritative over the classifier.
	if bug.Severity != "" {
		c.Severity = bug.Severity
	}

	if err := s.stores.Bugs().UpdateClassification(ctx, bugID, c, model.BugStatusTriaged); err != nil {
		return model.Classification{}, fmt.Errorf("persisting classification: %w", err)
	}

	s.logger.InfoContext(ctx, "bug triaged",
		"bug_id", bugID,
		"component", c.Component,
		"severity", c.Severity,
		"confidence", c.Confidence,
		"classifier", s.classifier.Model())

	return c, nil
}
