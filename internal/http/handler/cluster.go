package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"databug.app/engine/internal/http/dto"
	"databug.app/engine/internal/model"
	"databug.app/engine/internal/service"
)

type ClusterHandler struct {
	clusters service.ClusterService
}

func NewClusterHandler(clusters service.ClusterService) *ClusterHandler {
	return &ClusterHandler{clusters: clusters}
}

// GetByMember returns the cluster containing the given incident or bug.
func (h *ClusterHandler) GetByMember(c *gin.Context) {
	ctx := c.Request.Context()

	kind := model.MemberKind(c.Param("kind"))
	if kind != model.MemberKindIncident && kind != model.MemberKindBug {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be incident or bug"})
		return
	}
	eventID, ok := pathID(c)
	if !ok {
		return
	}

	cluster, err := h.clusters.GetCluster(ctx, kind, eventID)
	if err != nil {
		if errors.Is(err, service.ErrClusterNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "cluster not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to load cluster", "error", err, "kind", kind, "event_id", eventID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load cluster"})
		return
	}

	c.JSON(http.StatusOK, dto.NewClusterResponse(cluster))
}
