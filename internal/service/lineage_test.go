package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"databug.app/engine/internal/lineage"
	"databug.app/engine/internal/service"
)

type mockLineageGraph struct {
	ingestEdgesFn func(ctx context.Context, edges []lineage.Edge) error

	calls []string
}

func (m *mockLineageGraph) IngestResources(_ context.Context, _ []lineage.Resource) error {
	m.calls = append(m.calls, "resources")
	return nil
}

func (m *mockLineageGraph) IngestComponents(_ context.Context, _ []lineage.Component) error {
	m.calls = append(m.calls, "components")
	return nil
}

func (m *mockLineageGraph) IngestEdges(ctx context.Context, edges []lineage.Edge) error {
	m.calls = append(m.calls, "edges")
	if m.ingestEdgesFn != nil {
		return m.ingestEdgesFn(ctx, edges)
	}
	return nil
}

var _ = Describe("LineageService", func() {
	var (
		graph *mockLineageGraph
		svc   service.LineageService
		ctx   context.Context

		params service.LineageSyncParams
	)

	BeforeEach(func() {
		ctx = context.Background()
		graph = &mockLineageGraph{}
		svc = service.NewLineageService(graph, nil)

		params = service.LineageSyncParams{
			Resources: []lineage.Resource{
				{Name: "orders_table", Kind: "table"},
				{Name: "payments_topic", Kind: "topic"},
			},
			Components: []lineage.Component{{Name: "checkout", Team: "payments"}},
			Edges: []lineage.Edge{
				{From: "orders_table", To: "checkout"},
				{From: "orders_table", To: "payments_topic"},
			},
		}
	})

	It("ingests vertices before edges and reports counts", func() {
		result, err := svc.Sync(ctx, params)

		Expect(err).NotTo(HaveOccurred())
		Expect(graph.calls).To(Equal([]string{"resources", "components", "edges"}))
		Expect(result.Resources).To(Equal(2))
		Expect(result.Components).To(Equal(1))
		Expect(result.Edges).To(Equal(2))
	})

	It("surfaces ingest failures", func() {
		graph.ingestEdgesFn = func(_ context.Context, _ []lineage.Edge) error {
			return errors.New("connection refused")
		}

		_, err := svc.Sync(ctx, params)
		Expect(err).To(MatchError(ContainSubstring("ingesting edges")))
	})

	Context("without a configured graph", func() {
		BeforeEach(func() {
			svc = service.NewLineageService(nil, nil)
		})

		It("reports the graph as unavailable", func() {
			_, err := svc.Sync(ctx, params)
			Expect(err).To(MatchError(service.ErrLineageUnavailable))
		})
	})
})
