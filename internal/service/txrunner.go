package service

import (
	"context"

	"databug.app/engine/core/db"
	"databug.app/engine/internal/store"
)

// StoreProvider exposes only the stores needed by a transactional operation.
type StoreProvider interface {
	Incidents() store.IncidentStore
	Bugs() store.BugStore
	Links() store.LinkStore
	DuplicateLinks() store.DuplicateLinkStore
	Clusters() store.ClusterStore
	Embeddings() store.EmbeddingStore
}

// TxRunner runs functions within a transaction and provides stores bound to that transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
}

type dbTxRunner struct {
	db *db.DB
}

// NewTxRunner builds a TxRunner backed by the core DB.
func NewTxRunner(db *db.DB) TxRunner {
	return &dbTxRunner{db: db}
}

func (r *dbTxRunner) WithTx(ctx context.Context, fn func(stores StoreProvider) error) error {
	return r.db.WithTx(ctx, func(tx db.DBTX) error {
		stores := store.NewStores(tx)
		return fn(stores)
	})
}
