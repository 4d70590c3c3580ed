package main

import (
	"context"
	"log/slog"

	"databug.app/engine/core/config"
	"databug.app/engine/core/db"
	"databug.app/engine/internal/embedding"
	"databug.app/engine/internal/engine"
	"databug.app/engine/internal/lineage"
	"databug.app/engine/internal/queue"
	"databug.app/engine/internal/service"
	"databug.app/engine/internal/store"
	"databug.app/engine/internal/triage"
)

// buildServices assembles the service graph. Optional backends (lineage
// graph, embedding provider, triage LLM) fall back to their degraded
// implementations so the engine keeps correlating without them.
func buildServices(ctx context.Context, cfg config.Config, database *db.DB, stores *store.Stores, producer queue.Producer) *service.Services {
	var adjacency engine.AdjacencyLookup = lineage.Unavailable{}
	var lineageGraph service.LineageGraphWriter
	if cfg.Lineage.Enabled() {
		lineageClient, err := connectLineage(ctx, cfg.Lineage)
		if err != nil {
			slog.WarnContext(ctx, "lineage graph unavailable, categorical signal degraded", "error", err)
		} else {
			adjacency = lineageClient
			lineageGraph = lineageClient
			slog.InfoContext(ctx, "lineage graph connected", "database", cfg.Lineage.Database)
		}
	}

	var embedder embedding.Embedder = embedding.Disabled{}
	var semantic engine.SemanticSource
	if cfg.OpenAI.Enabled() {
		openaiEmbedder, err := embedding.NewOpenAI(embedding.Config{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			Concurrency: cfg.Engine.EmbeddingConcurrency,
			Timeout:     cfg.Engine.EmbeddingTimeout,
		})
		if err != nil {
			slog.WarnContext(ctx, "embedding provider unavailable, dedup deferred", "error", err)
		} else {
			embedder = openaiEmbedder
			semantic = embedding.NewSimilarity(embedder, stores.Embeddings())
			slog.InfoContext(ctx, "embedding provider configured", "model", embedder.Model())
		}
	}

	var classifier triage.Classifier = triage.NewHeuristic()
	if cfg.Triage.Enabled() {
		llmClassifier, err := triage.New(triage.Config{
			Provider:  cfg.Triage.Provider,
			APIKey:    cfg.Triage.APIKey,
			BaseURL:   cfg.Triage.BaseURL,
			Model:     cfg.Triage.Model,
			MaxTokens: cfg.Triage.MaxTokens,
		})
		if err != nil {
			slog.WarnContext(ctx, "triage LLM unavailable, using heuristic classifier", "error", err)
		} else {
			classifier = llmClassifier
			slog.InfoContext(ctx, "triage classifier configured", "model", classifier.Model())
		}
	}

	resolver := engine.NewResolver(adjacency, semantic)

	return service.NewServices(stores, service.NewTxRunner(database), producer, resolver, embedder, classifier, lineageGraph, nil)
}

// connectLineage opens the graph client and bootstraps the database,
// collections and graph definition before first use.
func connectLineage(ctx context.Context, cfg config.LineageConfig) (lineage.Client, error) {
	client, err := lineage.New(ctx, lineage.Config{
		URL:      cfg.URL,
		Username: cfg.Username,
		Password: cfg.Password,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}
	if err := client.EnsureDatabase(ctx); err != nil {
		return nil, err
	}
	if err := client.EnsureCollections(ctx); err != nil {
		return nil, err
	}
	if err := client.EnsureGraph(ctx); err != nil {
		return nil, err
	}
	return client, nil
}
