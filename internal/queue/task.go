package queue

type TaskType string

const (
	// TaskTypeBugCreated runs the full intake pipeline for one bug:
	// triage, duplicate check, correlation, priority ranking.
	TaskTypeBugCreated TaskType = "bug_created"

	// TaskTypeIncidentCreated re-scores recent bugs against a new incident.
	TaskTypeIncidentCreated TaskType = "incident_created"

	// TaskTypeIncidentResolved cascades a resolution through the incident's cluster.
	TaskTypeIncidentResolved TaskType = "incident_resolved"

	// TaskTypeScanCompleted correlates a finished scan's findings in bulk.
	TaskTypeScanCompleted TaskType = "scan_completed"

	// TaskTypeDedupRetry re-runs the duplicate check for bugs that were
	// admitted while the embedding backend was down.
	TaskTypeDedupRetry TaskType = "dedup_retry"
)
