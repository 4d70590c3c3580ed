package service_test

import (
	"context"
	"strconv"
	"time"

	"databug.app/engine/internal/model"
	"databug.app/engine/internal/queue"
	"databug.app/engine/internal/service"
	"databug.app/engine/internal/store"
)

// Mock IncidentStore
type mockIncidentStore struct {
	createFn        func(ctx context.Context, incident *model.Incident) error
	getByIDFn       func(ctx context.Context, id int64) (*model.Incident, error)
	getByExternalFn func(ctx context.Context, externalID string) (*model.Incident, error)
	listOpenSinceFn func(ctx context.Context, cutoff time.Time) ([]*model.Incident, error)
	updateStatusFn  func(ctx context.Context, id int64, status model.IncidentStatus, notes *string) error
	listByIDsFn     func(ctx context.Context, ids []int64) ([]*model.Incident, error)

	capturedIncident *model.Incident
}

func (m *mockIncidentStore) Create(ctx context.Context, incident *model.Incident) error {
	m.capturedIncident = incident
	if m.createFn != nil {
		return m.createFn(ctx, incident)
	}
	return nil
}

func (m *mockIncidentStore) GetByID(ctx context.Context, id int64) (*model.Incident, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockIncidentStore) GetByExternalID(ctx context.Context, externalID string) (*model.Incident, error) {
	if m.getByExternalFn != nil {
		return m.getByExternalFn(ctx, externalID)
	}
	return nil, store.ErrNotFound
}

func (m *mockIncidentStore) ListOpenSince(ctx context.Context, cutoff time.Time) ([]*model.Incident, error) {
	if m.listOpenSinceFn != nil {
		return m.listOpenSinceFn(ctx, cutoff)
	}
	return nil, nil
}

func (m *mockIncidentStore) UpdateStatus(ctx context.Context, id int64, status model.IncidentStatus, notes *string) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status, notes)
	}
	return nil
}

func (m *mockIncidentStore) ListByIDs(ctx context.Context, ids []int64) ([]*model.Incident, error) {
	if m.listByIDsFn != nil {
		return m.listByIDsFn(ctx, ids)
	}
	return nil, nil
}

// Mock BugStore
type mockBugStore struct {
	createFn               func(ctx context.Context, bug *model.Bug) error
	getByIDFn              func(ctx context.Context, id int64) (*model.Bug, error)
	getByExternalFn        func(ctx context.Context, source, externalID string) (*model.Bug, error)
	updateClassificationFn func(ctx context.Context, id int64, c model.Classification, status model.BugStatus) error
	markDuplicateFn        func(ctx context.Context, id, canonicalID int64) error
	updatePriorityFn       func(ctx context.Context, id int64, p model.Priority, score int, confirmed bool, confidence float64) error
	updateStatusFn         func(ctx context.Context, id int64, status model.BugStatus, notes *string, resolvedByID *int64) error
	listNeedsRetryFn       func(ctx context.Context, limit int32) ([]*model.Bug, error)
	listByIDsFn            func(ctx context.Context, ids []int64) ([]*model.Bug, error)

	capturedBug     *model.Bug
	retryFlags      map[int64]bool
	embeddingIDs    map[int64]string
	priorityUpdates int
}

func (m *mockBugStore) Create(ctx context.Context, bug *model.Bug) error {
	m.capturedBug = bug
	if m.createFn != nil {
		return m.createFn(ctx, bug)
	}
	return nil
}

func (m *mockBugStore) GetByID(ctx context.Context, id int64) (*model.Bug, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockBugStore) GetByExternalID(ctx context.Context, source, externalID string) (*model.Bug, error) {
	if m.getByExternalFn != nil {
		return m.getByExternalFn(ctx, source, externalID)
	}
	return nil, store.ErrNotFound
}

func (m *mockBugStore) UpdateClassification(ctx context.Context, id int64, c model.Classification, status model.BugStatus) error {
	if m.updateClassificationFn != nil {
		return m.updateClassificationFn(ctx, id, c, status)
	}
	return nil
}

func (m *mockBugStore) UpdateEmbeddingID(ctx context.Context, id int64, embeddingID string) error {
	if m.embeddingIDs == nil {
		m.embeddingIDs = make(map[int64]string)
	}
	m.embeddingIDs[id] = embeddingID
	return nil
}

func (m *mockBugStore) SetNeedsDedupRetry(ctx context.Context, id int64, needsRetry bool) error {
	if m.retryFlags == nil {
		m.retryFlags = make(map[int64]bool)
	}
	m.retryFlags[id] = needsRetry
	return nil
}

func (m *mockBugStore) ListNeedsDedupRetry(ctx context.Context, limit int32) ([]*model.Bug, error) {
	if m.listNeedsRetryFn != nil {
		return m.listNeedsRetryFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockBugStore) MarkDuplicate(ctx context.Context, id, canonicalID int64) error {
	if m.markDuplicateFn != nil {
		return m.markDuplicateFn(ctx, id, canonicalID)
	}
	return nil
}

func (m *mockBugStore) UpdatePriority(ctx context.Context, id int64, p model.Priority, score int, confirmed bool, confidence float64) error {
	m.priorityUpdates++
	if m.updatePriorityFn != nil {
		return m.updatePriorityFn(ctx, id, p, score, confirmed, confidence)
	}
	return nil
}

func (m *mockBugStore) UpdateStatus(ctx context.Context, id int64, status model.BugStatus, notes *string, resolvedByID *int64) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status, notes, resolvedByID)
	}
	return nil
}

func (m *mockBugStore) ListByIDs(ctx context.Context, ids []int64) ([]*model.Bug, error) {
	if m.listByIDsFn != nil {
		return m.listByIDsFn(ctx, ids)
	}
	return nil, nil
}

// Mock LinkStore
type mockLinkStore struct {
	upsertFn         func(ctx context.Context, link *model.CorrelationLink) (*model.CorrelationLink, error)
	listByBugFn      func(ctx context.Context, bugID int64) ([]*model.CorrelationLink, error)
	listByIncidentFn func(ctx context.Context, incidentID int64) ([]*model.CorrelationLink, error)

	upserted  []*model.CorrelationLink
	primaryID int64
}

func (m *mockLinkStore) UpsertIfHigher(ctx context.Context, link *model.CorrelationLink) (*model.CorrelationLink, error) {
	m.upserted = append(m.upserted, link)
	if m.upsertFn != nil {
		return m.upsertFn(ctx, link)
	}
	return link, nil
}

func (m *mockLinkStore) GetByPair(ctx context.Context, incidentID, bugID int64) (*model.CorrelationLink, error) {
	return nil, store.ErrNotFound
}

func (m *mockLinkStore) ListByIncident(ctx context.Context, incidentID int64) ([]*model.CorrelationLink, error) {
	if m.listByIncidentFn != nil {
		return m.listByIncidentFn(ctx, incidentID)
	}
	return nil, nil
}

func (m *mockLinkStore) ListByBug(ctx context.Context, bugID int64) ([]*model.CorrelationLink, error) {
	if m.listByBugFn != nil {
		return m.listByBugFn(ctx, bugID)
	}
	return m.upserted, nil
}

func (m *mockLinkStore) SetPrimary(ctx context.Context, bugID, linkID int64) error {
	m.primaryID = linkID
	return nil
}

func (m *mockLinkStore) ListAll(ctx context.Context) ([]*model.CorrelationLink, error) {
	return m.upserted, nil
}

// Mock DuplicateLinkStore
type mockDuplicateLinkStore struct {
	getByBugFn func(ctx context.Context, bugID int64) (*model.DuplicateLink, error)

	created []*model.DuplicateLink
}

func (m *mockDuplicateLinkStore) Create(ctx context.Context, link *model.DuplicateLink) error {
	m.created = append(m.created, link)
	return nil
}

func (m *mockDuplicateLinkStore) GetByBug(ctx context.Context, bugID int64) (*model.DuplicateLink, error) {
	if m.getByBugFn != nil {
		return m.getByBugFn(ctx, bugID)
	}
	return nil, store.ErrNotFound
}

func (m *mockDuplicateLinkStore) ListAll(ctx context.Context) ([]*model.DuplicateLink, error) {
	return m.created, nil
}

// Mock ClusterStore backed by an in-memory map, so merge behavior is real.
type mockClusterStore struct {
	members map[string]*model.ClusterMember
}

func memberKey(kind model.MemberKind, eventID int64) string {
	return string(kind) + ":" + strconv.FormatInt(eventID, 10)
}

func (m *mockClusterStore) ensure() {
	if m.members == nil {
		m.members = make(map[string]*model.ClusterMember)
	}
}

func (m *mockClusterStore) UpsertMember(ctx context.Context, member *model.ClusterMember) error {
	m.ensure()
	cp := *member
	m.members[memberKey(member.Kind, member.EventID)] = &cp
	return nil
}

func (m *mockClusterStore) GetMember(ctx context.Context, kind model.MemberKind, eventID int64) (*model.ClusterMember, error) {
	m.ensure()
	member, ok := m.members[memberKey(kind, eventID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *member
	return &cp, nil
}

func (m *mockClusterStore) ListMembers(ctx context.Context, clusterID int64) ([]*model.ClusterMember, error) {
	m.ensure()
	var out []*model.ClusterMember
	for _, member := range m.members {
		if member.ClusterID == clusterID {
			cp := *member
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockClusterStore) Reassign(ctx context.Context, fromCluster, toCluster int64) error {
	m.ensure()
	for _, member := range m.members {
		if member.ClusterID == fromCluster {
			member.ClusterID = toCluster
		}
	}
	return nil
}

// Mock EmbeddingStore
type mockEmbeddingStore struct {
	vectors map[string][]float64
	byBug   []model.StoredVector
}

func (m *mockEmbeddingStore) Save(ctx context.Context, id string, kind model.MemberKind, eventID int64, vector []float64) error {
	if m.vectors == nil {
		m.vectors = make(map[string][]float64)
	}
	m.vectors[id] = vector
	return nil
}

func (m *mockEmbeddingStore) Vector(ctx context.Context, id string) ([]float64, error) {
	v, ok := m.vectors[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return v, nil
}

func (m *mockEmbeddingStore) ListBugVectors(ctx context.Context, excludeBugID int64) ([]model.StoredVector, error) {
	var out []model.StoredVector
	for _, v := range m.byBug {
		if v.BugID != excludeBugID {
			out = append(out, v)
		}
	}
	return out, nil
}

// mockStoreProvider bundles the mocks behind service.StoreProvider.
type mockStoreProvider struct {
	incidents  *mockIncidentStore
	bugs       *mockBugStore
	links      *mockLinkStore
	duplicates *mockDuplicateLinkStore
	clusters   *mockClusterStore
	embeddings *mockEmbeddingStore
}

func newMockStoreProvider() *mockStoreProvider {
	return &mockStoreProvider{
		incidents:  &mockIncidentStore{},
		bugs:       &mockBugStore{},
		links:      &mockLinkStore{},
		duplicates: &mockDuplicateLinkStore{},
		clusters:   &mockClusterStore{},
		embeddings: &mockEmbeddingStore{},
	}
}

func (m *mockStoreProvider) Incidents() store.IncidentStore           { return m.incidents }
func (m *mockStoreProvider) Bugs() store.BugStore                     { return m.bugs }
func (m *mockStoreProvider) Links() store.LinkStore                   { return m.links }
func (m *mockStoreProvider) DuplicateLinks() store.DuplicateLinkStore { return m.duplicates }
func (m *mockStoreProvider) Clusters() store.ClusterStore             { return m.clusters }
func (m *mockStoreProvider) Embeddings() store.EmbeddingStore         { return m.embeddings }

// mockTxRunner runs the function directly against the provided stores.
// onCommit fires only when the function succeeds, so tests can stage writes
// and observe rollback on failure.
type mockTxRunner struct {
	provider *mockStoreProvider
	fail     error
	onCommit func()
}

func (m *mockTxRunner) WithTx(ctx context.Context, fn func(stores service.StoreProvider) error) error {
	if m.fail != nil {
		return m.fail
	}
	if err := fn(m.provider); err != nil {
		return err
	}
	if m.onCommit != nil {
		m.onCommit()
	}
	return nil
}

// Mock queue producer
type mockQueueProducer struct {
	enqueueFn func(ctx context.Context, msg queue.TaskMessage) error
	enqueued  []queue.TaskMessage
}

func (m *mockQueueProducer) Enqueue(ctx context.Context, msg queue.TaskMessage) error {
	m.enqueued = append(m.enqueued, msg)
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, msg)
	}
	return nil
}

func (m *mockQueueProducer) Close() error { return nil }

// Mock embedder with canned vectors per input text.
type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) ([]float64, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return []float64{1, 0, 0}, nil
}

func (m *mockEmbedder) Model() string { return "mock" }

// Mock classifier with a fixed result.
type mockClassifier struct {
	classifyFn func(ctx context.Context, bug *model.Bug) (model.Classification, error)
}

func (m *mockClassifier) Classify(ctx context.Context, bug *model.Bug) (model.Classification, error) {
	if m.classifyFn != nil {
		return m.classifyFn(ctx, bug)
	}
	return model.Classification{
		Component:  "pipeline",
		Type:       model.BugTypeBug,
		Severity:   model.SeverityMedium,
		Confidence: 0.8,
	}, nil
}

func (m *mockClassifier) Model() string { return "mock" }
