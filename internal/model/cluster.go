package model

import "time"

type MemberKind string

const (
	MemberKindIncident MemberKind = "incident"
	MemberKindBug      MemberKind = "bug"
)

// ClusterMember is one row of a root-cause cluster: a flat parent-pointer
// record keyed by event id. Clusters are the transitive closure of accepted
// correlation and duplicate links; membership is monotonic and there is no
// split operation.
type ClusterMember struct {
	EventID   int64
	Kind      MemberKind
	ClusterID int64 // current set representative
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClusterStats summarizes a cluster for the dashboard.
type ClusterStats struct {
	MemberCount    int     `json:"member_count"`
	IncidentCount  int     `json:"incident_count"`
	BugCount       int     `json:"bug_count"`
	MaxLinkScore   float64 `json:"max_link_score"`
	ConfirmedCount int     `json:"confirmed_count"`
}

// Cluster is the dashboard view of a root-cause cluster.
type Cluster struct {
	ID        int64        `json:"id"`
	Incidents []Incident   `json:"incidents"`
	Bugs      []Bug        `json:"bugs"`
	Stats     ClusterStats `json:"stats"`
}
