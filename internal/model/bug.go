package model

import "time"

type BugStatus string

const (
	BugStatusNew      BugStatus = "new"
	BugStatusTriaged  BugStatus = "triaged"
	BugStatusResolved BugStatus = "resolved"
	BugStatusRejected BugStatus = "rejected" // confirmed false positive
)

// Terminal reports whether the status permits no further transitions.
func (s BugStatus) Terminal() bool {
	return s == BugStatusResolved || s == BugStatusRejected
}

type BugType string

const (
	BugTypeBug      BugType = "bug"
	BugTypeFeature  BugType = "feature"
	BugTypeQuestion BugType = "question"
)

// Classification holds the mutable triage fields filled in by the
// classifier. Component and Type may be refined on re-triage; Confidence
// only ever increases through corroboration (see engine.Rank).
type Classification struct {
	Component  string   `json:"component,omitempty"`
	Type       BugType  `json:"type,omitempty"`
	Severity   Severity `json:"severity,omitempty"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning,omitempty"` // opaque LLM text, surfaced as-is
}

// Bug is a candidate record from the "effect" stream: a bug report or a
// dynamic-analysis finding. Owned by its ingestion pipeline; the engine
// writes back classification, link/cluster/priority metadata and status.
type Bug struct {
	ID          int64
	ExternalID  *string
	Source      string // "github", "jira", "manual", "dast"
	Title       string
	Description string
	Labels      []string
	Reporter    *string
	Severity    Severity
	Status      BugStatus

	Classification Classification

	// EmbeddingID references this bug's vector in the embedding index.
	// Nil until the text has been embedded.
	EmbeddingID *string

	// NeedsDedupRetry marks bugs whose duplicate check was skipped because
	// the embedding backend was unreachable. The worker retries these
	// opportunistically.
	NeedsDedupRetry bool

	IsDuplicate   bool
	DuplicateOfID *int64

	Priority      Priority
	PriorityScore int // 0-100 numeric risk score
	Confirmed     bool

	ResolutionNotes  *string
	ResolvedByID     *int64 // incident whose resolution cascaded to this bug
	ReportedAt       time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
