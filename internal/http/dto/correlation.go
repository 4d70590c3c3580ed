package dto

import (
	"time"

	"databug.app/engine/internal/model"
)

type LinkView struct {
	IncidentID int64              `json:"incident_id"`
	BugID      int64              `json:"bug_id"`
	TotalScore float64            `json:"total_score"`
	Primary    bool               `json:"primary"`
	Signals    model.SignalScores `json:"signals"`
}

func NewLinkView(link *model.CorrelationLink) LinkView {
	return LinkView{
		IncidentID: link.IncidentID,
		BugID:      link.BugID,
		TotalScore: link.TotalScore,
		Primary:    link.Primary,
		Signals:    link.Signals,
	}
}

type ResolveResponse struct {
	BugID         int64      `json:"bug_id"`
	Links         []LinkView `json:"links"`
	Primary       *LinkView  `json:"primary,omitempty"`
	Priority      string     `json:"priority"`
	PriorityScore int        `json:"priority_score"`
	Confidence    float64    `json:"confidence"`
	Confirmed     bool       `json:"confirmed"`
	Skipped       bool       `json:"skipped"`
	SkipCause     string     `json:"skip_cause,omitempty"`
}

type DedupResponse struct {
	BugID        int64   `json:"bug_id"`
	IsDuplicate  bool    `json:"is_duplicate"`
	CanonicalID  *int64  `json:"canonical_id,omitempty"`
	Similarity   float64 `json:"similarity,omitempty"`
	RetryFlagged bool    `json:"retry_flagged"`
}

type PriorityResponse struct {
	BugID         int64   `json:"bug_id"`
	Priority      string  `json:"priority"`
	PriorityScore int     `json:"priority_score"`
	Confidence    float64 `json:"confidence"`
	Confirmed     bool    `json:"confirmed"`
}

type PropagateRequest struct {
	Notes *string `json:"notes,omitempty"`
}

type PropagateResponse struct {
	IncidentID   int64   `json:"incident_id"`
	ResolvedBugs []int64 `json:"resolved_bugs"`
}

type IncidentView struct {
	ID           int64     `json:"id"`
	IncidentType string    `json:"incident_type"`
	Resource     string    `json:"resource"`
	Severity     string    `json:"severity"`
	Status       string    `json:"status"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type BugView struct {
	ID            int64     `json:"id"`
	Source        string    `json:"source"`
	Title         string    `json:"title"`
	Severity      string    `json:"severity"`
	Status        string    `json:"status"`
	Priority      string    `json:"priority"`
	PriorityScore int       `json:"priority_score"`
	Confirmed     bool      `json:"confirmed"`
	IsDuplicate   bool      `json:"is_duplicate"`
	ReportedAt    time.Time `json:"reported_at"`
}

type ClusterResponse struct {
	ID        int64              `json:"id"`
	Incidents []IncidentView     `json:"incidents"`
	Bugs      []BugView          `json:"bugs"`
	Stats     model.ClusterStats `json:"stats"`
}

func NewClusterResponse(cluster *model.Cluster) ClusterResponse {
	resp := ClusterResponse{
		ID:        cluster.ID,
		Incidents: make([]IncidentView, 0, len(cluster.Incidents)),
		Bugs:      make([]BugView, 0, len(cluster.Bugs)),
		Stats:     cluster.Stats,
	}
	for _, inc := range cluster.Incidents {
		resp.Incidents = append(resp.Incidents, IncidentView{
			ID:           inc.ID,
			IncidentType: inc.IncidentType,
			Resource:     inc.Resource,
			Severity:     string(inc.Severity),
			Status:       string(inc.Status),
			OccurredAt:   inc.OccurredAt,
		})
	}
	for _, bug := range cluster.Bugs {
		resp.Bugs = append(resp.Bugs, BugView{
			ID:            bug.ID,
			Source:        bug.Source,
			Title:         bug.Title,
			Severity:      string(bug.Severity),
			Status:        string(bug.Status),
			Priority:      string(bug.Priority),
			PriorityScore: bug.PriorityScore,
			Confirmed:     bug.Confirmed,
			IsDuplicate:   bug.IsDuplicate,
			ReportedAt:    bug.ReportedAt,
		})
	}
	return resp
}
