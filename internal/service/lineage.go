package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"databug.app/engine/internal/lineage"
)

var ErrLineageUnavailable = errors.New("lineage graph not configured")

// LineageGraphWriter loads lineage declarations into the graph backing the
// categorical signal.
type LineageGraphWriter interface {
	IngestResources(ctx context.Context, resources []lineage.Resource) error
	IngestComponents(ctx context.Context, components []lineage.Component) error
	IngestEdges(ctx context.Context, edges []lineage.Edge) error
}

type LineageSyncParams struct {
	Resources  []lineage.Resource
	Components []lineage.Component
	Edges      []lineage.Edge
}

type LineageSyncResult struct {
	Resources  int
	Components int
	Edges      int
}

type LineageService interface {
	// Sync upserts the declared resources, components and feed edges.
	// Idempotent: re-syncing the same declarations is a no-op.
	Sync(ctx context.Context, params LineageSyncParams) (*LineageSyncResult, error)
}

type lineageService struct {
	graph  LineageGraphWriter
	logger *slog.Logger
}

func NewLineageService(graph LineageGraphWriter, logger *slog.Logger) LineageService {
	if logger == nil {
		logger = slog.Default()
	}
	return &lineageService{
		graph:  graph,
		logger: logger,
	}
}

func (s *lineageService) Sync(ctx context.Context, params LineageSyncParams) (*LineageSyncResult, error) {
	if s.graph == nil {
		return nil, ErrLineageUnavailable
	}

	// Vertices before edges, so every edge endpoint exists.
	if err := s.graph.IngestResources(ctx, params.Resources); err != nil {
		return nil, fmt.Errorf("ingesting resources: %w", err)
	}
	if err := s.graph.IngestComponents(ctx, params.Components); err != nil {
		return nil, fmt.Errorf("ingesting components: %w", err)
	}
	if err := s.graph.IngestEdges(ctx, params.Edges); err != nil {
		return nil, fmt.Errorf("ingesting edges: %w", err)
	}

	result := &LineageSyncResult{
		Resources:  len(params.Resources),
		Components: len(params.Components),
		Edges:      len(params.Edges),
	}
	s.logger.InfoContext(ctx, "lineage graph synced",
		"resources", result.Resources,
		"components", result.Components,
		"edges", result.Edges)
	return result, nil
}
