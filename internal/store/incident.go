package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"databug.app/engine/core/db"
	"databug.app/engine/internal/model"
)

type incidentStore struct {
	dbtx db.DBTX
}

func newIncidentStore(dbtx db.DBTX) IncidentStore {
	return &incidentStore{dbtx: dbtx}
}

const incidentColumns = `
	id, external_id, incident_type, resource, affected_fields, description,
	severity, anomaly_score, status, resolution_notes,
	occurred_at, created_at, updated_at`

func (s *incidentStore) Create(ctx context.Context, incident *model.Incident) error {
	row := s.dbtx.QueryRow(ctx, `
		INSERT INTO incidents (
			id, external_id, incident_type, resource, affected_fields,
			description, severity, anomaly_score, status, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		incident.ID, incident.ExternalID, incident.IncidentType,
		incident.Resource, incident.AffectedFields, incident.Description,
		string(incident.Severity), incident.AnomalyScore,
		string(incident.Status), incident.OccurredAt,
	)
	return row.Scan(&incident.CreatedAt, &incident.UpdatedAt)
}

func (s *incidentStore) GetByID(ctx context.Context, id int64) (*model.Incident, error) {
	row := s.dbtx.QueryRow(ctx, `
		SELECT `+incidentColumns+`
		FROM incidents
		WHERE id = $1`, id)
	return scanIncident(row)
}

func (s *incidentStore) GetByExternalID(ctx context.Context, externalID string) (*model.Incident, error) {
	row := s.dbtx.QueryRow(ctx, `
		SELECT `+incidentColumns+`
		FROM incidents
		WHERE external_id = $1`, externalID)
	return scanIncident(row)
}

func (s *incidentStore) ListOpenSince(ctx context.Context, cutoff time.Time) ([]*model.Incident, error) {
	rows, err := s.dbtx.Query(ctx, `
		SELECT `+incidentColumns+`
		FROM incidents
		WHERE occurred_at >= $1 AND status != 'resolved'
		ORDER BY occurred_at DESC`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIncidents(rows)
}

func (s *incidentStore) UpdateStatus(ctx context.Context, id int64, status model.IncidentStatus, notes *string) error {
	tag, err := s.dbtx.Exec(ctx, `
		UPDATE incidents
		SET status = $2, resolution_notes = COALESCE($3, resolution_notes), updated_at = now()
		WHERE id = $1`,
		id, string(status), notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *incidentStore) ListByIDs(ctx context.Context, ids []int64) ([]*model.Incident, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.dbtx.Query(ctx, `
		SELECT `+incidentColumns+`
		FROM incidents
		WHERE id = ANY($1)
		ORDER BY occurred_at DESC`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIncidents(rows)
}

func scanIncident(row pgx.Row) (*model.Incident, error) {
	var inc model.Incident
	var severity, status string
	err := row.Scan(
		&inc.ID, &inc.ExternalID, &inc.IncidentType, &inc.Resource,
		&inc.AffectedFields, &inc.Description, &severity, &inc.AnomalyScore,
		&status, &inc.ResolutionNotes,
		&inc.OccurredAt, &inc.CreatedAt, &inc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	inc.Severity = model.Severity(severity)
	inc.Status = model.IncidentStatus(status)
	return &inc, nil
}

func scanIncidents(rows pgx.Rows) ([]*model.Incident, error) {
	var incidents []*model.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, inc)
	}
	return incidents, rows.Err()
}
