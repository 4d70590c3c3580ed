package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"databug.app/engine/core/db"
	"databug.app/engine/internal/model"
)

type bugStore struct {
	dbtx db.DBTX
}

func newBugStore(dbtx db.DBTX) BugStore {
	return &bugStore{dbtx: dbtx}
}

const bugColumns = `
	id, external_id, source, title, description, labels, reporter,
	severity, status, classification, embedding_id, needs_dedup_retry,
	is_duplicate, duplicate_of_id, priority, priority_score, confirmed,
	resolution_notes, resolved_by_id, reported_at, created_at, updated_at`

func (s *bugStore) Create(ctx context.Context, bug *model.Bug) error {
	classificationJSON, err := json.Marshal(bug.Classification)
	if err != nil {
		return err
	}

	row := s.dbtx.QueryRow(ctx, `
		INSERT INTO bugs (
			id, external_id, source, title, description, labels, reporter,
			severity, status, classification, priority, priority_score, reported_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`,
		bug.ID, bug.ExternalID, bug.Source, bug.Title, bug.Description,
		bug.Labels, bug.Reporter, string(bug.Severity), string(bug.Status),
		classificationJSON, string(bug.Priority), bug.PriorityScore, bug.ReportedAt,
	)
	return row.Scan(&bug.CreatedAt, &bug.UpdatedAt)
}

func (s *bugStore) GetByID(ctx context.Context, id int64) (*model.Bug, error) {
	row := s.dbtx.QueryRow(ctx, `
		SELECT `+bugColumns+`
		FROM bugs
		WHERE id = $1`, id)
	return scanBug(row)
}

func (s *bugStore) GetByExternalID(ctx context.Context, source, externalID string) (*model.Bug, error) {
	row := s.dbtx.QueryRow(ctx, `
		SELECT `+bugColumns+`
		FROM bugs
		WHERE source = $1 AND external_id = $2`, source, externalID)
	return scanBug(row)
}

func (s *bugStore) UpdateClassification(ctx context.Context, id int64, c model.Classification, status model.BugStatus) error {
	classificationJSON, err := json.Marshal(c)
	if err != nil {
		return err
	}
	tag, err := s.dbtx.Exec(ctx, `
		UPDATE bugs
		SET classification = $2, severity = $3, status = $4, updated_at = now()
		WHERE id = $1`,
		id, classificationJSON, string(c.Severity), string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *bugStore) UpdateEmbeddingID(ctx context.Context, id int64, embeddingID string) error {
	_, err := s.dbtx.Exec(ctx, `
		UPDATE bugs
		SET embedding_id = $2, updated_at = now()
		WHERE id = $1`, id, embeddingID)
	return err
}

func (s *bugStore) SetNeedsDedupRetry(ctx context.Context, id int64, needsRetry bool) error {
	_, err := s.dbtx.Exec(ctx, `
		UPDATE bugs
		SET needs_dedup_retry = $2, updated_at = now()
		WHERE id = $1`, id, needsRetry)
	return err
}

func (s *bugStore) ListNeedsDedupRetry(ctx context.Context, limit int32) ([]*model.Bug, error) {
	rows, err := s.dbtx.Query(ctx, `
		SELECT `+bugColumns+`
		FROM bugs
		WHERE needs_dedup_retry AND NOT is_duplicate
		ORDER BY reported_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBugs(rows)
}

func (s *bugStore) MarkDuplicate(ctx context.Context, id, canonicalID int64) error {
	tag, err := s.dbtx.Exec(ctx, `
		UPDATE bugs
		SET is_duplicate = TRUE, duplicate_of_id = $2, updated_at = now()
		WHERE id = $1`, id, canonicalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *bugStore) UpdatePriority(ctx context.Context, id int64, p model.Priority, score int, confirmed bool, confidence float64) error {
	tag, err := s.dbtx.Exec(ctx, `
		UPDATE bugs
		SET priority = $2,
		    priority_score = $3,
		    confirmed = $4,
		    classification = jsonb_set(classification, '{confidence}', to_jsonb($5::float8)),
		    updated_at = now()
		WHERE id = $1`,
		id, string(p), score, confirmed, confidence)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *bugStore) UpdateStatus(ctx context.Context, id int64, status model.BugStatus, notes *string, resolvedByID *int64) error {
	tag, err := s.dbtx.Exec(ctx, `
		UPDATE bugs
		SET status = $2,
		    resolution_notes = COALESCE($3, resolution_notes),
		    resolved_by_id = COALESCE($4, resolved_by_id),
		    updated_at = now()
		WHERE id = $1`,
		id, string(status), notes, resolvedByID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *bugStore) ListByIDs(ctx context.Context, ids []int64) ([]*model.Bug, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.dbtx.Query(ctx, `
		SELECT `+bugColumns+`
		FROM bugs
		WHERE id = ANY($1)
		ORDER BY reported_at DESC`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBugs(rows)
}

func scanBug(row pgx.Row) (*model.Bug, error) {
	var bug model.Bug
	var severity, status, priority string
	var classificationJSON []byte
	err := row.Scan(
		&bug.ID, &bug.ExternalID, &bug.Source, &bug.Title, &bug.Description,
		&bug.Labels, &bug.Reporter, &severity, &status, &classificationJSON,
		&bug.EmbeddingID, &bug.NeedsDedupRetry, &bug.IsDuplicate,
		&bug.DuplicateOfID, &priority, &bug.PriorityScore, &bug.Confirmed,
		&bug.ResolutionNotes, &bug.ResolvedByID,
		&bug.ReportedAt, &bug.CreatedAt, &bug.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if len(classificationJSON) > 0 {
		if err := json.Unmarshal(classificationJSON, &bug.Classification); err != nil {
			return nil, err
		}
	}
	bug.Severity = model.Severity(severity)
	bug.Status = model.BugStatus(status)
	bug.Priority = model.Priority(priority)
	return &bug, nil
}

func scanBugs(rows pgx.Rows) ([]*model.Bug, error) {
	var bugs []*model.Bug
	for rows.Next() {
		bug, err := scanBug(rows)
		if err != nil {
			return nil, err
		}
		bugs = append(bugs, bug)
	}
	return bugs, rows.Err()
}
