package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"databug.app/engine/internal/engine"
	"databug.app/engine/internal/queue"
	"databug.app/engine/internal/service"
	"databug.app/engine/internal/store"
)

// Mirrors service.StoreProvider - defined here to avoid import cycles.
type StoreProvider interface {
	Incidents() store.IncidentStore
	Bugs() store.BugStore
	Links() store.LinkStore
	DuplicateLinks() store.DuplicateLinkStore
	Clusters() store.ClusterStore
	Embeddings() store.EmbeddingStore
}

type ProcessorConfig struct {
	// BatchParallelism bounds concurrent incident re-scores during a
	// scan-completed sweep.
	BatchParallelism int

	// RetryBatchSize bounds one dedup retry pass.
	RetryBatchSize int32
}

// Processor routes queue tasks into the correlation pipeline.
type Processor struct {
	stores      StoreProvider
	triage      service.TriageService
	dedup       service.DedupService
	correlation service.CorrelationService
	resolution  service.ResolutionService
	clusters    service.ClusterService
	cfg         ProcessorConfig
	logger      *slog.Logger
}

func NewProcessor(
	stores StoreProvider,
	triage service.TriageService,
	dedup service.DedupService,
	correlation service.CorrelationService,
	resolution service.ResolutionService,
	clusters service.ClusterService,
	cfg ProcessorConfig,
	logger *slog.Logger,
) *Processor {
	if cfg.BatchParallelism <= 0 {
		cfg.BatchParallelism = 1
	}
	if cfg.RetryBatchSize <= 0 {
		cfg.RetryBatchSize = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		stores:      stores,
		triage:      triage,
		dedup:       dedup,
		correlation: correlation,
		resolution:  resolution,
		clusters:    clusters,
		cfg:         cfg,
		logger:      logger,
	}
}

func (p *Processor) Process(ctx context.Context, msg queue.Message) error {
	// ParseMessage guarantees the id fields required by each task type.
	switch msg.TaskType {
	case queue.TaskTypeBugCreated:
		return p.processBug(ctx, *msg.BugID)
	case queue.TaskTypeDedupRetry:
		return p.retryBugDedup(ctx, *msg.BugID)
	case queue.TaskTypeIncidentCreated:
		_, err := p.correlation.RescoreIncident(ctx, *msg.IncidentID)
		return err
	case queue.TaskTypeIncidentResolved:
		_, err := p.resolution.PropagateResolution(ctx, *msg.IncidentID, nil)
		return err
	case queue.TaskTypeScanCompleted:
		return p.processScanCompleted(ctx)
	default:
		return fmt.Errorf("unknown task type %q", msg.TaskType)
	}
}

// processBug runs the full pipeline for a freshly ingested bug:
// classify, check for duplicates, then correlate and rank.
func (p *Processor) processBug(ctx context.Context, bugID int64) error {
	if _, err := p.triage.Classify(ctx, bugID); err != nil {
		return fmt.Errorf("triage: %w", err)
	}

	outcome, err := p.dedup.CheckDuplicate(ctx, bugID)
	if err != nil {
		return fmt.Errorf("dedup: %w", err)
	}
	if outcome.IsDuplicate {
		// Duplicates skip correlation; rank so the penalty lands.
		if _, err := p.correlation.RankBug(ctx, bugID); err != nil {
			return fmt.Errorf("ranking duplicate: %w", err)
		}
		return nil
	}

	if _, err := p.correlation.ResolveBug(ctx, bugID); err != nil {
		return fmt.Errorf("correlation: %w", err)
	}
	return nil
}

// retryBugDedup re-checks a bug whose first duplicate check was deferred
// by an embedding outage.
func (p *Processor) retryBugDedup(ctx context.Context, bugID int64) error {
	outcome, err := p.dedup.CheckDuplicate(ctx, bugID)
	if err != nil {
		return fmt.Errorf("dedup retry: %w", err)
	}
	if outcome.RetryFlagged {
		return fmt.Errorf("embedding backend still unavailable for bug %d", bugID)
	}
	if outcome.IsDuplicate {
		if _, err := p.correlation.RankBug(ctx, bugID); err != nil {
			return fmt.Errorf("ranking duplicate: %w", err)
		}
		return nil
	}
	if _, err := p.correlation.ResolveBug(ctx, bugID); err != nil {
		return fmt.Errorf("correlation after retry: %w", err)
	}
	return nil
}

// processScanCompleted runs the maintenance sweep after a pipeline scan
// finishes: re-score every open incident in the lookback window, drain the
// dedup retry backlog and rebuild clusters from the link graph.
func (p *Processor) processScanCompleted(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-engine.LookbackWindowHours * time.Hour)
	incidents, err := p.stores.Incidents().ListOpenSince(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("listing open incidents: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.BatchParallelism)
	for _, incident := range incidents {
		g.Go(func() error {
			if _, err := p.correlation.RescoreIncident(gctx, incident.ID); err != nil {
				return fmt.Errorf("re-scoring incident %d: %w", incident.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	retried, err := p.dedup.RetryPending(ctx, p.cfg.RetryBatchSize)
	if err != nil {
		return fmt.Errorf("draining dedup backlog: %w", err)
	}

	members, err := p.clusters.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("rebuilding clusters: %w", err)
	}

	p.logger.InfoContext(ctx, "scan sweep completed",
		"incidents_rescored", len(incidents),
		"dedups_retried", retried,
		"cluster_members", members)
	return nil
}
