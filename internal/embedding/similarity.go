package embedding

import (
	"context"
	"fmt"
	"strings"

	"databug.app/engine/internal/model"
)

// VectorLookup fetches a previously stored vector by embedding id. Returning
// nil with no error means no vector is stored for that id.
type VectorLookup interface {
	Vector(ctx context.Context, embeddingID string) ([]float64, error)
}

// Similarity computes pairwise semantic similarity between an incident and a
// bug. Bug vectors are reused from storage when present so a burst of
// candidate incidents for one bug costs one embedding call, not N.
type Similarity struct {
	embedder Embedder
	vectors  VectorLookup
}

func NewSimilarity(embedder Embedder, vectors VectorLookup) *Similarity {
	return &Similarity{embedder: embedder, vectors: vectors}
}

// PairSimilarity returns the raw cosine similarity of the pair in [-1, 1].
func (s *Similarity) PairSimilarity(ctx context.Context, incident *model.Incident, bug *model.Bug) (*float64, error) {
	bugVec, err := s.bugVector(ctx, bug)
	if err != nil {
		return nil, err
	}

	incidentVec, err := s.embedder.Embed(ctx, IncidentText(incident))
	if err != nil {
		return nil, fmt.Errorf("embed incident %d: %w", incident.ID, err)
	}

	sim := Cosine(incidentVec, bugVec)
	return &sim, nil
}

func (s *Similarity) bugVector(ctx context.Context, bug *model.Bug) ([]float64, error) {
	if s.vectors != nil && bug.EmbeddingID != nil {
		vec, err := s.vectors.Vector(ctx, *bug.EmbeddingID)
		if err == nil && vec != nil {
			return vec, nil
		}
	}

	vec, err := s.embedder.Embed(ctx, BugText(bug))
	if err != nil {
		return nil, fmt.Errorf("embed bug %d: %w", bug.ID, err)
	}
	return vec, nil
}

// IncidentText is the canonical embedding input for an incident.
func IncidentText(incident *model.Incident) string {
	parts := []string{incident.IncidentType, incident.Resource}
	if len(incident.AffectedFields) > 0 {
		parts = append(parts, strings.Join(incident.AffectedFields, " "))
	}
	if incident.Description != "" {
		parts = append(parts, incident.Description)
	}
	return strings.Join(parts, "\n")
}

// BugText is the canonical embedding input for a bug report.
func BugText(bug *model.Bug) string {
	parts := []string{bug.Title}
	if bug.Classification.Component != "" {
		parts = append(parts, bug.Classification.Component)
	}
	if bug.Description != "" {
		parts = append(parts, bug.Description)
	}
	return strings.Join(parts, "\n")
}
