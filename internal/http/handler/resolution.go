package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"databug.app/engine/internal/http/dto"
	"databug.app/engine/internal/service"
)

type ResolutionHandler struct {
	resolution service.ResolutionService
}

func NewResolutionHandler(resolution service.ResolutionService) *ResolutionHandler {
	return &ResolutionHandler{resolution: resolution}
}

// Propagate resolves an incident and cascades to its clustered bugs.
func (h *ResolutionHandler) Propagate(c *gin.Context) {
	ctx := c.Request.Context()

	incidentID, ok := pathID(c)
	if !ok {
		return
	}

	// The notes body is optional.
	var req dto.PropagateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			slog.WarnContext(ctx, "invalid propagate request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	result, err := h.resolution.PropagateResolution(ctx, incidentID, req.Notes)
	if err != nil {
		if errors.Is(err, service.ErrIncidentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to propagate resolution", "error", err, "incident_id", incidentID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to propagate resolution"})
		return
	}

	resolved := result.ResolvedBugs
	if resolved == nil {
		resolved = []int64{}
	}
	c.JSON(http.StatusOK, dto.PropagateResponse{
		IncidentID:   result.IncidentID,
		ResolvedBugs: resolved,
	})
}
