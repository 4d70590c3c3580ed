package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"databug.app/engine/core/db"
	"databug.app/engine/internal/model"
)

type linkStore struct {
	dbtx db.DBTX
}

func newLinkStore(dbtx db.DBTX) LinkStore {
	return &linkStore{dbtx: dbtx}
}

const linkColumns = `
	id, incident_id, bug_id, total_score, signals, is_primary, created_at, updated_at`

func (s *linkStore) UpsertIfHigher(ctx context.Context, link *model.CorrelationLink) (*model.CorrelationLink, error) {
	signalsJSON, err := json.Marshal(link.Signals)
	if err != nil {
		return nil, err
	}

	// ON CONFLICT keeps the higher score; the WHERE clause makes the update
	// a no-op when the stored link already scores at least as high, so a
	// concurrent re-score can never replace a link with a weaker one.
	row := s.dbtx.QueryRow(ctx, `
		INSERT INTO correlation_links (id, incident_id, bug_id, total_score, signals)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (incident_id, bug_id) DO UPDATE
		SET total_score = EXCLUDED.total_score,
		    signals = EXCLUDED.signals,
		    updated_at = now()
		WHERE correlation_links.total_score < EXCLUDED.total_score
		RETURNING `+linkColumns,
		link.ID, link.IncidentID, link.BugID, link.TotalScore, signalsJSON,
	)

	stored, err := scanLink(row)
	if errors.Is(err, ErrNotFound) {
		// Conflict with a no-op update returns nothing; read the winner.
		return s.GetByPair(ctx, link.IncidentID, link.BugID)
	}
	return stored, err
}

func (s *linkStore) GetByPair(ctx context.Context, incidentID, bugID int64) (*model.CorrelationLink, error) {
	row := s.dbtx.QueryRow(ctx, `
		SELECT `+linkColumns+`
		FROM correlation_links
		WHERE incident_id = $1 AND bug_id = $2`, incidentID, bugID)
	return scanLink(row)
}

func (s *linkStore) ListByIncident(ctx context.Context, incidentID int64) ([]*model.CorrelationLink, error) {
	rows, err := s.dbtx.Query(ctx, `
		SELECT `+linkColumns+`
		FROM correlation_links
		WHERE incident_id = $1
		ORDER BY total_score DESC`, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLinks(rows)
}

func (s *linkStore) ListByBug(ctx context.Context, bugID int64) ([]*model.CorrelationLink, error) {
	rows, err := s.dbtx.Query(ctx, `
		SELECT `+linkColumns+`
		FROM correlation_links
		WHERE bug_id = $1
		ORDER BY total_score DESC`, bugID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLinks(rows)
}

func (s *linkStore) SetPrimary(ctx context.Context, bugID, linkID int64) error {
	if _, err := s.dbtx.Exec(ctx, `
		UPDATE correlation_links
		SET is_primary = FALSE, updated_at = now()
		WHERE bug_id = $1 AND is_primary AND id != $2`, bugID, linkID); err != nil {
		return err
	}

	tag, err := s.dbtx.Exec(ctx, `
		UPDATE correlation_links
		SET is_primary = TRUE, updated_at = now()
		WHERE id = $1 AND bug_id = $2`, linkID, bugID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *linkStore) ListAll(ctx context.Context) ([]*model.CorrelationLink, error) {
	rows, err := s.dbtx.Query(ctx, `
		SELECT `+linkColumns+`
		FROM correlation_links
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLinks(rows)
}

func scanLink(row pgx.Row) (*model.CorrelationLink, error) {
	var link model.CorrelationLink
	var signalsJSON []byte
	err := row.Scan(
		&link.ID, &link.IncidentID, &link.BugID, &link.TotalScore,
		&signalsJSON, &link.Primary, &link.CreatedAt, &link.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(signalsJSON) > 0 {
		if err := json.Unmarshal(signalsJSON, &link.Signals); err != nil {
			return nil, err
		}
	}
	return &link, nil
}

func scanLinks(rows pgx.Rows) ([]*model.CorrelationLink, error) {
	var links []*model.CorrelationLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

type duplicateLinkStore struct {
	dbtx db.DBTX
}

func newDuplicateLinkStore(dbtx db.DBTX) DuplicateLinkStore {
	return &duplicateLinkStore{dbtx: dbtx}
}

func (s *duplicateLinkStore) Create(ctx context.Context, link *model.DuplicateLink) error {
	row := s.dbtx.QueryRow(ctx, `
		INSERT INTO duplicate_links (id, bug_id, canonical_id, similarity)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		link.ID, link.BugID, link.CanonicalID, link.Similarity)
	return row.Scan(&link.CreatedAt)
}

func (s *duplicateLinkStore) GetByBug(ctx context.Context, bugID int64) (*model.DuplicateLink, error) {
	row := s.dbtx.QueryRow(ctx, `
		SELECT id, bug_id, canonical_id, similarity, created_at
		FROM duplicate_links
		WHERE bug_id = $1`, bugID)

	var link model.DuplicateLink
	err := row.Scan(&link.ID, &link.BugID, &link.CanonicalID, &link.Similarity, &link.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (s *duplicateLinkStore) ListAll(ctx context.Context) ([]*model.DuplicateLink, error) {
	rows, err := s.dbtx.Query(ctx, `
		SELECT id, bug_id, canonical_id, similarity, created_at
		FROM duplicate_links
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDuplicateLinks(rows)
}

func scanDuplicateLinks(rows pgx.Rows) ([]*model.DuplicateLink, error) {
	var links []*model.DuplicateLink
	for rows.Next() {
		var link model.DuplicateLink
		if err := rows.Scan(&link.ID, &link.BugID, &link.CanonicalID, &link.Similarity, &link.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, &link)
	}
	return links, rows.Err()
}
