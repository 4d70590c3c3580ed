package dto

import "time"

type IngestIncidentRequest struct {
	ExternalID     *string   `json:"external_id,omitempty"`
	IncidentType   string    `json:"incident_type" binding:"required"`
	Resource       string    `json:"resource" binding:"required"`
	AffectedFields []string  `json:"affected_fields,omitempty"`
	Description    string    `json:"description,omitempty"`
	Severity       string    `json:"severity" binding:"required"`
	AnomalyScore   *float64  `json:"anomaly_score,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type IngestIncidentResponse struct {
	IncidentID int64  `json:"incident_id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
	Enqueued   bool   `json:"enqueued"`
	Duplicated bool   `json:"duplicated"`
}

type IngestBugRequest struct {
	ExternalID  *string   `json:"external_id,omitempty"`
	Source      string    `json:"source" binding:"required"`
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description,omitempty"`
	Labels      []string  `json:"labels,omitempty"`
	Reporter    *string   `json:"reporter,omitempty"`
	Severity    string    `json:"severity,omitempty"`
	ReportedAt  time.Time `json:"reported_at"`
}

type IngestBugResponse struct {
	BugID      int64  `json:"bug_id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
	Priority   string `json:"priority"`
	Enqueued   bool   `json:"enqueued"`
	Duplicated bool   `json:"duplicated"`
}
