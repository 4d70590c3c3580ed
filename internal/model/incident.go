package model

import "time"

type IncidentStatus string

const (
	IncidentStatusActive        IncidentStatus = "active"
	IncidentStatusInvestigating IncidentStatus = "investigating"
	IncidentStatusResolved      IncidentStatus = "resolved"
)

// Terminal reports whether the status permits no further transitions.
func (s IncidentStatus) Terminal() bool {
	return s == IncidentStatusResolved
}

// Incident is the anchor record from the "cause" stream: a data pipeline
// incident (schema drift, null spike, freshness breach) or a static-analysis
// finding, depending on which pipelines feed the engine. Owned by its
// ingestion pipeline; the engine only mutates Status and ResolutionNotes.
type Incident struct {
	ID              int64
	ExternalID      *string
	IncidentType    string // category tag, e.g. "SCHEMA_DRIFT", "NULL_SPIKE"
	Resource        string // affected resource name, e.g. "orders_table"
	AffectedFields  []string
	Description     string
	Severity        Severity
	AnomalyScore    *float64
	Status          IncidentStatus
	ResolutionNotes *string
	OccurredAt      time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
