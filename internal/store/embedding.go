package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"databug.app/engine/core/db"
	"databug.app/engine/internal/model"
)

type embeddingStore struct {
	dbtx db.DBTX
}

func newEmbeddingStore(dbtx db.DBTX) EmbeddingStore {
	return &embeddingStore{dbtx: dbtx}
}

func (s *embeddingStore) Save(ctx context.Context, id string, kind model.MemberKind, eventID int64, vector []float64) error {
	_, err := s.dbtx.Exec(ctx, `
		INSERT INTO embeddings (id, kind, event_id, vector)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET vector = EXCLUDED.vector`,
		id, string(kind), eventID, vector)
	return err
}

func (s *embeddingStore) Vector(ctx context.Context, id string) ([]float64, error) {
	var vector []float64
	err := s.dbtx.QueryRow(ctx, `
		SELECT vector FROM embeddings WHERE id = $1`, id).Scan(&vector)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return vector, nil
}

func (s *embeddingStore) ListBugVectors(ctx context.Context, excludeBugID int64) ([]model.StoredVector, error) {
	rows, err := s.dbtx.Query(ctx, `
		SELECT e.id, e.event_id, e.vector
		FROM embeddings e
		JOIN bugs b ON b.id = e.event_id
		WHERE e.kind = 'bug' AND e.event_id != $1 AND NOT b.is_duplicate
		ORDER BY e.event_id`, excludeBugID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vectors []model.StoredVector
	for rows.Next() {
		var v model.StoredVector
		if err := rows.Scan(&v.ID, &v.BugID, &v.Vector); err != nil {
			return nil, err
		}
		vectors = append(vectors, v)
	}
	return vectors, rows.Err()
}
