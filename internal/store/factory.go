package store

import (
	"databug.app/engine/core/db"
)

type Stores struct {
	dbtx db.DBTX
}

func NewStores(dbtx db.DBTX) *Stores {
	return &Stores{dbtx: dbtx}
}

func (s *Stores) Incidents() IncidentStore {
	return newIncidentStore(s.dbtx)
}

func (s *Stores) Bugs() BugStore {
	return newBugStore(s.dbtx)
}

func (s *Stores) Links() LinkStore {
	return newLinkStore(s.dbtx)
}

func (s *Stores) DuplicateLinks() DuplicateLinkStore {
	return newDuplicateLinkStore(s.dbtx)
}

func (s *Stores) Clusters() ClusterStore {
	return newClusterStore(s.dbtx)
}

func (s *Stores) Embeddings() EmbeddingStore {
	return newEmbeddingStore(s.dbtx)
}
