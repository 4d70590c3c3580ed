package service_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"databug.app/engine/internal/model"
	"databug.app/engine/internal/service"
)

var _ = Describe("ClusterService", func() {
	var (
		provider *mockStoreProvider
		svc      service.ClusterService
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		provider = newMockStoreProvider()
		svc = service.NewClusterService(provider, nil)
	})

	Describe("Join", func() {
		It("merges through a shared incident transitively", func() {
			Expect(svc.Join(ctx, 100, 200)).To(Succeed())
			Expect(svc.Join(ctx, 100, 201)).To(Succeed())
			Expect(svc.Join(ctx, 101, 201)).To(Succeed())

			ids := make(map[int64]bool)
			for _, eventID := range []int64{200, 201} {
				m, err := provider.clusters.GetMember(ctx, model.MemberKindBug, eventID)
				Expect(err).NotTo(HaveOccurred())
				ids[m.ClusterID] = true
			}
			for _, eventID := range []int64{100, 101} {
				m, err := provider.clusters.GetMember(ctx, model.MemberKindIncident, eventID)
				Expect(err).NotTo(HaveOccurred())
				ids[m.ClusterID] = true
			}
			Expect(ids).To(HaveLen(1))
		})

		It("keeps the larger cluster's id on merge", func() {
			Expect(svc.Join(ctx, 100, 200)).To(Succeed())
			Expect(svc.Join(ctx, 100, 201)).To(Succeed())
			big, err := provider.clusters.GetMember(ctx, model.MemberKindIncident, 100)
			Expect(err).NotTo(HaveOccurred())

			// A two-member cluster joins the three-member one and folds in.
			Expect(svc.Join(ctx, 101, 202)).To(Succeed())
			Expect(svc.Join(ctx, 101, 200)).To(Succeed())

			merged, err := provider.clusters.GetMember(ctx, model.MemberKindIncident, 101)
			Expect(err).NotTo(HaveOccurred())
			Expect(merged.ClusterID).To(Equal(big.ClusterID))
		})

		It("is a no-op for members already clustered together", func() {
			Expect(svc.Join(ctx, 100, 200)).To(Succeed())
			before, err := provider.clusters.GetMember(ctx, model.MemberKindBug, 200)
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.Join(ctx, 100, 200)).To(Succeed())
			after, err := provider.clusters.GetMember(ctx, model.MemberKindBug, 200)
			Expect(err).NotTo(HaveOccurred())
			Expect(after.ClusterID).To(Equal(before.ClusterID))
		})
	})

	Describe("Rebuild", func() {
		It("recomputes components from the link graph", func() {
			provider.links.upserted = []*model.CorrelationLink{
				{IncidentID: 100, BugID: 200},
				{IncidentID: 100, BugID: 201},
				{IncidentID: 101, BugID: 202},
			}
			provider.duplicates.created = []*model.DuplicateLink{
				{BugID: 203, CanonicalID: 202},
			}

			count, err := svc.Rebuild(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(6))

			a, err := provider.clusters.GetMember(ctx, model.MemberKindBug, 200)
			Expect(err).NotTo(HaveOccurred())
			b, err := provider.clusters.GetMember(ctx, model.MemberKindBug, 201)
			Expect(err).NotTo(HaveOccurred())
			Expect(a.ClusterID).To(Equal(b.ClusterID))

			c, err := provider.clusters.GetMember(ctx, model.MemberKindBug, 203)
			Expect(err).NotTo(HaveOccurred())
			d, err := provider.clusters.GetMember(ctx, model.MemberKindBug, 202)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.ClusterID).To(Equal(d.ClusterID))

			Expect(a.ClusterID).NotTo(Equal(c.ClusterID))
		})
	})

	Describe("GetCluster", func() {
		BeforeEach(func() {
			Expect(svc.Join(ctx, 100, 200)).To(Succeed())
			Expect(svc.Join(ctx, 100, 201)).To(Succeed())

			provider.incidents.listByIDsFn = func(_ context.Context, ids []int64) ([]*model.Incident, error) {
				var out []*model.Incident
				for _, incidentID := range ids {
					out = append(out, &model.Incident{ID: incidentID})
				}
				return out, nil
			}
			provider.bugs.listByIDsFn = func(_ context.Context, ids []int64) ([]*model.Bug, error) {
				var out []*model.Bug
				for _, bugID := range ids {
					out = append(out, &model.Bug{ID: bugID, Confirmed: bugID == 200})
				}
				return out, nil
			}
			provider.links.listByIncidentFn = func(_ context.Context, _ int64) ([]*model.CorrelationLink, error) {
				return []*model.CorrelationLink{
					{IncidentID: 100, BugID: 200, TotalScore: 0.82},
					{IncidentID: 100, BugID: 201, TotalScore: 0.44},
				}, nil
			}
		})

		It("returns members and aggregate stats", func() {
			cluster, err := svc.GetCluster(ctx, model.MemberKindBug, 201)

			Expect(err).NotTo(HaveOccurred())
			Expect(cluster.Stats.MemberCount).To(Equal(3))
			Expect(cluster.Stats.IncidentCount).To(Equal(1))
			Expect(cluster.Stats.BugCount).To(Equal(2))
			Expect(cluster.Stats.MaxLinkScore).To(BeNumerically("~", 0.82, 1e-9))
			Expect(cluster.Stats.ConfirmedCount).To(Equal(1))
		})

		It("reports an unknown member", func() {
			_, err := svc.GetCluster(ctx, model.MemberKindBug, 999)
			Expect(err).To(MatchError(service.ErrClusterNotFound))
		})
	})
})
