package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"databug.app/engine/core/db"
	"databug.app/engine/internal/model"
)

type clusterStore struct {
	dbtx db.DBTX
}

func newClusterStore(dbtx db.DBTX) ClusterStore {
	return &clusterStore{dbtx: dbtx}
}

func (s *clusterStore) UpsertMember(ctx context.Context, m *model.ClusterMember) error {
	row := s.dbtx.QueryRow(ctx, `
		INSERT INTO cluster_members (event_id, kind, cluster_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (kind, event_id) DO UPDATE
		SET cluster_id = EXCLUDED.cluster_id, updated_at = now()
		RETURNING created_at, updated_at`,
		m.EventID, string(m.Kind), m.ClusterID)
	return row.Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (s *clusterStore) GetMember(ctx context.Context, kind model.MemberKind, eventID int64) (*model.ClusterMember, error) {
	row := s.dbtx.QueryRow(ctx, `
		SELECT event_id, kind, cluster_id, created_at, updated_at
		FROM cluster_members
		WHERE kind = $1 AND event_id = $2`, string(kind), eventID)
	return scanMember(row)
}

func (s *clusterStore) ListMembers(ctx context.Context, clusterID int64) ([]*model.ClusterMember, error) {
	rows, err := s.dbtx.Query(ctx, `
		SELECT event_id, kind, cluster_id, created_at, updated_at
		FROM cluster_members
		WHERE cluster_id = $1
		ORDER BY kind, event_id`, clusterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*model.ClusterMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *clusterStore) Reassign(ctx context.Context, fromCluster, toCluster int64) error {
	_, err := s.dbtx.Exec(ctx, `
		UPDATE cluster_members
		SET cluster_id = $2, updated_at = now()
		WHERE cluster_id = $1`, fromCluster, toCluster)
	return err
}

func scanMember(row pgx.Row) (*model.ClusterMember, error) {
	var m model.ClusterMember
	var kind string
	err := row.Scan(&m.EventID, &kind, &m.ClusterID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	m.Kind = model.MemberKind(kind)
	return &m, nil
}
