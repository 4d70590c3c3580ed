package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"databug.app/engine/internal/http/dto"
	"databug.app/engine/internal/lineage"
	"databug.app/engine/internal/service"
)

type LineageHandler struct {
	lineage service.LineageService
}

func NewLineageHandler(lineage service.LineageService) *LineageHandler {
	return &LineageHandler{lineage: lineage}
}

// Sync loads declared resources, components and feed edges into the lineage
// graph.
func (h *LineageHandler) Sync(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.LineageSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid lineage sync request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.lineage.Sync(ctx, syncParams(req))
	if err != nil {
		if errors.Is(err, service.ErrLineageUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "lineage graph not configured"})
			return
		}
		slog.ErrorContext(ctx, "failed to sync lineage graph", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sync lineage graph"})
		return
	}

	c.JSON(http.StatusOK, dto.LineageSyncResponse{
		Resources:  result.Resources,
		Components: result.Components,
		Edges:      result.Edges,
	})
}

func syncParams(req dto.LineageSyncRequest) service.LineageSyncParams {
	params := service.LineageSyncParams{}
	for _, r := range req.Resources {
		params.Resources = append(params.Resources, lineage.Resource{Name: r.Name, Kind: r.Kind})
	}
	for _, comp := range req.Components {
		params.Components = append(params.Components, lineage.Component{Name: comp.Name, Team: comp.Team})
	}
	for _, e := range req.Edges {
		params.Edges = append(params.Edges, lineage.Edge{From: e.From, To: e.To})
	}
	return params
}
