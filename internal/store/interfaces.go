package store

import (
	"context"
	"errors"
	"time"

	"databug.app/engine/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// IncidentStore defines the contract for incident data access
type IncidentStore interface {
	Create(ctx context.Context, incident *model.Incident) error
	GetByID(ctx context.Context, id int64) (*model.Incident, error)
	GetByExternalID(ctx context.Context, externalID string) (*model.Incident, error)
	// ListOpenSince returns non-terminal incidents that occurred at or after
	// the cutoff, most recent first. Backs the candidate window scan.
	ListOpenSince(ctx context.Context, cutoff time.Time) ([]*model.Incident, error)
	UpdateStatus(ctx context.Context, id int64, status model.IncidentStatus, notes *string) error
	ListByIDs(ctx context.Context, ids []int64) ([]*model.Incident, error)
}

// BugStore defines the contract for bug report data access
type BugStore interface {
	Create(ctx context.Context, bug *model.Bug) error
	GetByID(ctx context.Context, id int64) (*model.Bug, error)
	GetByExternalID(ctx context.Context, source, externalID string) (*model.Bug, error)
	UpdateClassification(ctx context.Context, id int64, c model.Classification, status model.BugStatus) error
	UpdateEmbeddingID(ctx context.Context, id int64, embeddingID string) error
	SetNeedsDedupRetry(ctx context.Context, id int64, needsRetry bool) error
	ListNeedsDedupRetry(ctx context.Context, limit int32) ([]*model.Bug, error)
	MarkDuplicate(ctx context.Context, id, canonicalID int64) error
	UpdatePriority(ctx context.Context, id int64, p model.Priority, score int, confirmed bool, confidence float64) error
	UpdateStatus(ctx context.Context, id int64, status model.BugStatus, notes *string, resolvedByID *int64) error
	ListByIDs(ctx context.Context, ids []int64) ([]*model.Bug, error)
}

// LinkStore defines the contract for correlation link data access
type LinkStore interface {
	// UpsertIfHigher inserts the link, or replaces an existing link for the
	// pair only when the new total score is strictly higher. Returns the
	// stored row, which may be the untouched existing one.
	UpsertIfHigher(ctx context.Context, link *model.CorrelationLink) (*model.CorrelationLink, error)
	GetByPair(ctx context.Context, incidentID, bugID int64) (*model.CorrelationLink, error)
	ListByIncident(ctx context.Context, incidentID int64) ([]*model.CorrelationLink, error)
	ListByBug(ctx context.Context, bugID int64) ([]*model.CorrelationLink, error)
	// SetPrimary marks one link as the bug's primary and clears the flag on
	// the bug's other links in the same statement batch.
	SetPrimary(ctx context.Context, bugID, linkID int64) error
	ListAll(ctx context.Context) ([]*model.CorrelationLink, error)
}

// DuplicateLinkStore defines the contract for duplicate link data access
type DuplicateLinkStore interface {
	Create(ctx context.Context, link *model.DuplicateLink) error
	GetByBug(ctx context.Context, bugID int64) (*model.DuplicateLink, error)
	ListAll(ctx context.Context) ([]*model.DuplicateLink, error)
}

// ClusterStore defines the contract for cluster membership data access
type ClusterStore interface {
	UpsertMember(ctx context.Context, m *model.ClusterMember) error
	GetMember(ctx context.Context, kind model.MemberKind, eventID int64) (*model.ClusterMember, error)
	ListMembers(ctx context.Context, clusterID int64) ([]*model.ClusterMember, error)
	// Reassign moves every member of fromCluster into toCluster.
	Reassign(ctx context.Context, fromCluster, toCluster int64) error
}

// EmbeddingStore defines the contract for stored embedding vectors
type EmbeddingStore interface {
	Save(ctx context.Context, id string, kind model.MemberKind, eventID int64, vector []float64) error
	Vector(ctx context.Context, id string) ([]float64, error)
	// ListBugVectors returns every stored vector for non-duplicate bugs
	// other than the one being checked. Similarity ranking and the
	// nearest-neighbor cut are the caller's job.
	ListBugVectors(ctx context.Context, excludeBugID int64) ([]model.StoredVector, error)
}
