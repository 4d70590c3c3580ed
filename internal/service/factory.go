package service

import (
	"log/slog"

	"databug.app/engine/internal/embedding"
	"databug.app/engine/internal/engine"
	"databug.app/engine/internal/queue"
	"databug.app/engine/internal/store"
	"databug.app/engine/internal/triage"
)

type Services struct {
	stores       *store.Stores
	txRunner     TxRunner
	producer     queue.Producer
	resolver     *engine.Resolver
	embedder     embedding.Embedder
	classifier   triage.Classifier
	lineageGraph LineageGraphWriter
	logger       *slog.Logger

	clusters    ClusterService
	correlation CorrelationService
}

func NewServices(
	stores *store.Stores,
	txRunner TxRunner,
	producer queue.Producer,
	resolver *engine.Resolver,
	embedder embedding.Embedder,
	classifier triage.Classifier,
	lineageGraph LineageGraphWriter,
	logger *slog.Logger,
) *Services {
	if logger == nil {
		logger = slog.Default()
	}
	clusters := NewClusterService(stores, logger)
	return &Services{
		stores:       stores,
		txRunner:     txRunner,
		producer:     producer,
		resolver:     resolver,
		embedder:     embedder,
		classifier:   classifier,
		lineageGraph: lineageGraph,
		logger:       logger,
		clusters:     clusters,
		// Correlation holds per-bug locks, so one shared instance.
		correlation: NewCorrelationService(stores, resolver, clusters, logger),
	}
}

func (s *Services) Ingest() IngestService {
	return NewIngestService(s.stores, s.producer, s.logger)
}

func (s *Services) Triage() TriageService {
	return NewTriageService(s.stores, s.classifier, s.logger)
}

func (s *Services) Dedup() DedupService {
	return NewDedupService(s.stores, s.embedder, s.clusters, s.logger)
}

func (s *Services) Correlation() CorrelationService {
	return s.correlation
}

func (s *Services) Clusters() ClusterService {
	return s.clusters
}

func (s *Services) Resolution() ResolutionService {
	return NewResolutionService(s.txRunner, s.logger)
}

func (s *Services) Lineage() LineageService {
	return NewLineageService(s.lineageGraph, s.logger)
}
