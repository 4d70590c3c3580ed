package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"databug.app/engine/common/id"
	"databug.app/engine/internal/model"
	"databug.app/engine/internal/queue"
	"databug.app/engine/internal/store"
)

var ErrInvalidSeverity = errors.New("invalid severity")

type IncidentIngestParams struct {
	ExternalID     *string   `json:"external_id,omitempty"`
	IncidentType   string    `json:"incident_type"`
	Resource       string    `json:"resource"`
	AffectedFields []string  `json:"affected_fields,omitempty"`
	Description    string    `json:"description,omitempty"`
	Severity       string    `json:"severity"`
	AnomalyScore   *float64  `json:"anomaly_score,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
	TraceID        *string   `json:"trace_id,omitempty"`
}

type BugIngestParams struct {
	ExternalID  *string   `json:"external_id,omitempty"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Labels      []string  `json:"labels,omitempty"`
	Reporter    *string   `json:"reporter,omitempty"`
	Severity    string    `json:"severity,omitempty"`
	ReportedAt  time.Time `json:"reported_at"`
	TraceID     *string   `json:"trace_id,omitempty"`
}

type IngestResult[T any] struct {
	Record     T
	Enqueued   bool
	Duplicated bool
}

type IngestService interface {
	IngestIncident(ctx context.Context, params IncidentIngestParams) (*IngestResult[*model.Incident], error)
	IngestBug(ctx context.Context, params BugIngestParams) (*IngestResult[*model.Bug], error)
}

type ingestService struct {
	stores StoreProvider
	queue  queue.Producer
	logger *slog.Logger
}

func NewIngestService(stores StoreProvider, producer queue.Producer, logger *slog.Logger) IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ingestService{
		stores: stores,
		queue:  producer,
		logger: logger,
	}
}

func (s *ingestService) IngestIncident(ctx context.Context, params IncidentIngestParams) (*IngestResult[*model.Incident], error) {
	if params.IncidentType == "" || params.Resource == "" {
		return nil, fmt.Errorf("incident_type and resource are required")
	}
	severity, err := parseSeverity(params.Severity)
	if err != nil {
		return nil, err
	}
	if params.OccurredAt.IsZero() {
		params.OccurredAt = time.Now().UTC()
	}

	externalID := dedupeKey(params.ExternalID, "incident", params.Resource, params.IncidentType, params.OccurredAt)
	if existing, err := s.stores.Incidents().GetByExternalID(ctx, externalID); err == nil {
		s.logger.InfoContext(ctx, "duplicate incident deduped", "incident_id", existing.ID, "external_id", externalID)
		return &IngestResult[*model.Incident]{Record: existing, Duplicated: true}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("checking incident dedupe key: %w", err)
	}

	incident := &model.Incident{
		ID:             id.New(),
		ExternalID:     &externalID,
		IncidentType:   params.IncidentType,
		Resource:       params.Resource,
		AffectedFields: params.AffectedFields,
		Description:    params.Description,
		Severity:       severity,
		AnomalyScore:   params.AnomalyScore,
		Status:         model.IncidentStatusActive,
		OccurredAt:     params.OccurredAt,
	}

	if err := s.stores.Incidents().Create(ctx, incident); err != nil {
		return nil, fmt.Errorf("creating incident: %w", err)
	}

	if err := s.queue.Enqueue(ctx, queue.TaskMessage{
		TaskType:   queue.TaskTypeIncidentCreated,
		IncidentID: &incident.ID,
		TraceID:    params.TraceID,
		Attempt:    1,
	}); err != nil {
		return nil, fmt.Errorf("enqueueing incident task: %w", err)
	}

	return &IngestResult[*model.Incident]{Record: incident, Enqueued: true}, nil
}

func (s *ingestService) IngestBug(ctx context.Context, params BugIngestParams) (*IngestResult[*model.Bug], error) {
	if params.Source == "" || params.Title == "" {
		return nil, fmt.Errorf("source and title are required")
	}
	var severity model.Severity
	if params.Severity != "" {
		var err error
		severity, err = parseSeverity(params.Severity)
		if err != nil {
			return nil, err
		}
	}
	if params.ReportedAt.IsZero() {
		params.ReportedAt = time.Now().UTC()
	}

	externalID := dedupeKey(params.ExternalID, params.Source, params.Title, "", params.ReportedAt)
	if existing, err := s.stores.Bugs().GetByExternalID(ctx, params.Source, externalID); err == nil {
		s.logger.InfoContext(ctx, "duplicate bug deduped", "bug_id", existing.ID, "external_id", externalID)
		return &IngestResult[*model.Bug]{Record: existing, Duplicated: true}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("checking bug dedupe key: %w", err)
	}

	bug := &model.Bug{
		ID:          id.New(),
		ExternalID:  &externalID,
		Source:      params.Source,
		Title:       params.Title,
		Description: params.Description,
		Labels:      params.Labels,
		Reporter:    params.Reporter,
		Severity:    severity,
		Status:      model.BugStatusNew,
		Priority:    model.PriorityForSeverity(severity),
		ReportedAt:  params.ReportedAt,
	}

	if err := s.stores.Bugs().Create(ctx, bug); err != nil {
		return nil, fmt.Errorf("creating bug: %w", err)
	}

	if err := s.queue.Enqueue(ctx, queue.TaskMessage{
		TaskType: queue.TaskTypeBugCreated,
		BugID:    &bug.ID,
		TraceID:  params.TraceID,
		Attempt:  1,
	}); err != nil {
		return nil, fmt.Errorf("enqueueing bug task: %w", err)
	}

	return &IngestResult[*model.Bug]{Record: bug, Enqueued: true}, nil
}

func parseSeverity(raw string) (model.Severity, error) {
	s := model.Severity(raw)
	switch s {
	case model.SeverityCritical, model.SeverityHigh, model.SeverityMedium, model.SeverityLow:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSeverity, raw)
}

// dedupeKey makes ingestion idempotent for sources that cannot supply a
// stable external id: two submissions with identical identity fields map to
// the same key.
func dedupeKey(override *string, parts ...any) string {
	if override != nil && *override != "" {
		return *override
	}
	var body string
	for _, p := range parts {
		if t, ok := p.(time.Time); ok {
			body += t.UTC().Format(time.RFC3339) + "\x00"
			continue
		}
		body += fmt.Sprint(p) + "\x00"
	}
	hash := sha256.Sum256([]byte(body))
	return hex.EncodeToString(hash[:])
}
