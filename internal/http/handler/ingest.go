package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"databug.app/engine/internal/http/dto"
	"databug.app/engine/internal/service"
)

type IngestHandler struct {
	service     service.IngestService
	traceHeader string
}

func NewIngestHandler(service service.IngestService, traceHeader string) *IngestHandler {
	return &IngestHandler{
		service:     service,
		traceHeader: traceHeader,
	}
}

func (h *IngestHandler) IngestIncident(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.IngestIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid incident ingest request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := service.IncidentIngestParams{
		ExternalID:     req.ExternalID,
		IncidentType:   req.IncidentType,
		Resource:       req.Resource,
		AffectedFields: req.AffectedFields,
		Description:    req.Description,
		Severity:       req.Severity,
		AnomalyScore:   req.AnomalyScore,
		OccurredAt:     req.OccurredAt,
	}
	if traceID := h.traceID(c); traceID != "" {
		params.TraceID = &traceID
	}

	result, err := h.service.IngestIncident(ctx, params)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSeverity) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to ingest incident", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest incident"})
		return
	}

	c.JSON(http.StatusAccepted, dto.IngestIncidentResponse{
		IncidentID: result.Record.ID,
		ExternalID: deref(result.Record.ExternalID),
		Status:     string(result.Record.Status),
		Enqueued:   result.Enqueued,
		Duplicated: result.Duplicated,
	})
}

func (h *IngestHandler) IngestBug(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.IngestBugRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid bug ingest request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := service.BugIngestParams{
		ExternalID:  req.ExternalID,
		Source:      req.Source,
		Title:       req.Title,
		Description: req.Description,
		Labels:      req.Labels,
		Reporter:    req.Reporter,
		Severity:    req.Severity,
		ReportedAt:  req.ReportedAt,
	}
	if traceID := h.traceID(c); traceID != "" {
		params.TraceID = &traceID
	}

	result, err := h.service.IngestBug(ctx, params)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSeverity) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to ingest bug", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest bug"})
		return
	}

	c.JSON(http.StatusAccepted, dto.IngestBugResponse{
		BugID:      result.Record.ID,
		ExternalID: deref(result.Record.ExternalID),
		Status:     string(result.Record.Status),
		Priority:   string(result.Record.Priority),
		Enqueued:   result.Enqueued,
		Duplicated: result.Duplicated,
	})
}

// traceID prefers the caller-supplied header over the active span.
func (h *IngestHandler) traceID(c *gin.Context) string {
	if traceID := c.GetHeader(h.traceHeader); traceID != "" {
		return traceID
	}
	if spanCtx := trace.SpanContextFromContext(c.Request.Context()); spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
