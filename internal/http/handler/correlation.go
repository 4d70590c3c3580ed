package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"databug.app/engine/internal/http/dto"
	"databug.app/engine/internal/service"
	"databug.app/engine/internal/store"
)

type CorrelationHandler struct {
	correlation service.CorrelationService
	dedup       service.DedupService
}

func NewCorrelationHandler(correlation service.CorrelationService, dedup service.DedupService) *CorrelationHandler {
	return &CorrelationHandler{
		correlation: correlation,
		dedup:       dedup,
	}
}

// Resolve re-runs correlation for one bug on demand.
func (h *CorrelationHandler) Resolve(c *gin.Context) {
	ctx := c.Request.Context()

	bugID, ok := pathID(c)
	if !ok {
		return
	}

	outcome, err := h.correlation.ResolveBug(ctx, bugID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "bug not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to resolve bug", "error", err, "bug_id", bugID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve bug"})
		return
	}

	resp := dto.ResolveResponse{
		BugID:         outcome.BugID,
		Links:         make([]dto.LinkView, 0, len(outcome.Links)),
		Priority:      string(outcome.Rank.Priority),
		PriorityScore: outcome.Rank.PriorityScore,
		Confidence:    outcome.Rank.Confidence,
		Confirmed:     outcome.Rank.Confirmed,
		Skipped:       outcome.Skipped,
		SkipCause:     outcome.SkipCause,
	}
	for _, link := range outcome.Links {
		resp.Links = append(resp.Links, dto.NewLinkView(link))
	}
	if outcome.Primary != nil {
		primary := dto.NewLinkView(outcome.Primary)
		resp.Primary = &primary
	}

	c.JSON(http.StatusOK, resp)
}

// FindDuplicates runs the duplicate check for one bug on demand.
func (h *CorrelationHandler) FindDuplicates(c *gin.Context) {
	ctx := c.Request.Context()

	bugID, ok := pathID(c)
	if !ok {
		return
	}

	outcome, err := h.dedup.CheckDuplicate(ctx, bugID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "bug not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to check duplicates", "error", err, "bug_id", bugID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check duplicates"})
		return
	}

	resp := dto.DedupResponse{
		BugID:        outcome.BugID,
		IsDuplicate:  outcome.IsDuplicate,
		Similarity:   outcome.Similarity,
		RetryFlagged: outcome.RetryFlagged,
	}
	if outcome.IsDuplicate {
		resp.CanonicalID = &outcome.CanonicalID
	}

	c.JSON(http.StatusOK, resp)
}

// GetPriority recomputes the bug's priority from its current links.
// Ranking is derived state, so recomputing on read is idempotent.
func (h *CorrelationHandler) GetPriority(c *gin.Context) {
	ctx := c.Request.Context()

	bugID, ok := pathID(c)
	if !ok {
		return
	}

	rank, err := h.correlation.RankBug(ctx, bugID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "bug not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to rank bug", "error", err, "bug_id", bugID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rank bug"})
		return
	}

	c.JSON(http.StatusOK, dto.PriorityResponse{
		BugID:         bugID,
		Priority:      string(rank.Priority),
		PriorityScore: rank.PriorityScore,
		Confidence:    rank.Confidence,
		Confirmed:     rank.Confirmed,
	})
}

// pathID parses the :id path parameter, writing a 400 on failure.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
