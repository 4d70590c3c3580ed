package service_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"databug.app/engine/common/id"
	"databug.app/engine/internal/model"
	"databug.app/engine/internal/service"
	"databug.app/engine/internal/store"
)

var _ = Describe("DedupService", func() {
	var (
		provider *mockStoreProvider
		embedder *mockEmbedder
		svc      service.DedupService
		ctx      context.Context
		now      time.Time

		bugsByID map[int64]*model.Bug
	)

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
		provider = newMockStoreProvider()
		embedder = &mockEmbedder{}

		err := id.Init(1)
		Expect(err).NotTo(HaveOccurred())

		bugsByID = map[int64]*model.Bug{}
		provider.bugs.getByIDFn = func(_ context.Context, bugID int64) (*model.Bug, error) {
			bug, ok := bugsByID[bugID]
			if !ok {
				return nil, store.ErrNotFound
			}
			return bug, nil
		}

		clusters := service.NewClusterService(provider, nil)
		svc = service.NewDedupService(provider, embedder, clusters, nil)
	})

	Describe("CheckDuplicate", func() {
		Context("with a near-identical earlier bug", func() {
			BeforeEach(func() {
				bugsByID[10] = &model.Bug{ID: 10, Title: "orders totals wrong", ReportedAt: now.Add(-time.Hour)}
				bugsByID[11] = &model.Bug{ID: 11, Title: "order totals are wrong", ReportedAt: now}
				provider.embeddings.byBug = []model.StoredVector{
					{ID: "bug-10", BugID: 10, Vector: []float64{1, 0, 0}},
				}
			})

			It("marks the newer bug a duplicate of the older one", func() {
				outcome, err := svc.CheckDuplicate(ctx, 11)

				Expect(err).NotTo(HaveOccurred())
				Expect(outcome.IsDuplicate).To(BeTrue())
				Expect(outcome.CanonicalID).To(Equal(int64(10)))
				Expect(outcome.Similarity).To(BeNumerically("~", 1.0, 1e-9))
				Expect(provider.duplicates.created).To(HaveLen(1))
				Expect(provider.bugs.embeddingIDs[11]).To(Equal("bug-11"))
			})

			It("places duplicate and canonical in the same cluster", func() {
				_, err := svc.CheckDuplicate(ctx, 11)
				Expect(err).NotTo(HaveOccurred())

				a, err := provider.clusters.GetMember(ctx, model.MemberKindBug, 10)
				Expect(err).NotTo(HaveOccurred())
				b, err := provider.clusters.GetMember(ctx, model.MemberKindBug, 11)
				Expect(err).NotTo(HaveOccurred())
				Expect(a.ClusterID).To(Equal(b.ClusterID))
			})
		})

		Context("with many newer bugs between the duplicate and its original", func() {
			BeforeEach(func() {
				bugsByID[70] = &model.Bug{ID: 70, Title: "orders totals wrong", ReportedAt: now.Add(-24 * time.Hour)}
				vectors := []model.StoredVector{
					{ID: "bug-70", BugID: 70, Vector: []float64{1, 0, 0}},
				}
				// A dozen unrelated reports arrive after the original.
				for i := int64(71); i <= 82; i++ {
					bugsByID[i] = &model.Bug{ID: i, Title: "noise", ReportedAt: now.Add(-time.Hour)}
					vectors = append(vectors, model.StoredVector{
						ID:     fmt.Sprintf("bug-%d", i),
						BugID:  i,
						Vector: []float64{0, 1, 0},
					})
				}
				bugsByID[83] = &model.Bug{ID: 83, Title: "order totals are wrong", ReportedAt: now}
				provider.embeddings.byBug = vectors
			})

			It("still finds the buried original", func() {
				outcome, err := svc.CheckDuplicate(ctx, 83)

				Expect(err).NotTo(HaveOccurred())
				Expect(outcome.IsDuplicate).To(BeTrue())
				Expect(outcome.CanonicalID).To(Equal(int64(70)))
			})
		})

		Context("when the best match is below the threshold", func() {
			BeforeEach(func() {
				bugsByID[12] = &model.Bug{ID: 12, Title: "unrelated", ReportedAt: now.Add(-time.Hour)}
				bugsByID[13] = &model.Bug{ID: 13, Title: "something else", ReportedAt: now}
				// cosine against {1,0,0} is 0.6
				provider.embeddings.byBug = []model.StoredVector{
					{ID: "bug-12", BugID: 12, Vector: []float64{0.6, 0.8, 0}},
				}
			})

			It("admits the bug as unique", func() {
				outcome, err := svc.CheckDuplicate(ctx, 13)

				Expect(err).NotTo(HaveOccurred())
				Expect(outcome.IsDuplicate).To(BeFalse())
				Expect(provider.duplicates.created).To(BeEmpty())
			})
		})

		Context("when the matched bug is itself a duplicate", func() {
			BeforeEach(func() {
				original := int64(20)
				bugsByID[20] = &model.Bug{ID: 20, ReportedAt: now.Add(-2 * time.Hour)}
				bugsByID[21] = &model.Bug{ID: 21, IsDuplicate: true, DuplicateOfID: &original, ReportedAt: now.Add(-time.Hour)}
				bugsByID[22] = &model.Bug{ID: 22, ReportedAt: now}
				provider.embeddings.byBug = []model.StoredVector{
					{ID: "bug-21", BugID: 21, Vector: []float64{1, 0, 0}},
				}
			})

			It("points the new duplicate at the original, not the chain", func() {
				outcome, err := svc.CheckDuplicate(ctx, 22)

				Expect(err).NotTo(HaveOccurred())
				Expect(outcome.IsDuplicate).To(BeTrue())
				Expect(outcome.CanonicalID).To(Equal(int64(20)))
			})
		})

		Context("when the only match was reported later", func() {
			BeforeEach(func() {
				bugsByID[30] = &model.Bug{ID: 30, ReportedAt: now}
				bugsByID[31] = &model.Bug{ID: 31, ReportedAt: now.Add(time.Hour)}
				provider.embeddings.byBug = []model.StoredVector{
					{ID: "bug-31", BugID: 31, Vector: []float64{1, 0, 0}},
				}
			})

			It("never points a bug at a later report", func() {
				outcome, err := svc.CheckDuplicate(ctx, 30)

				Expect(err).NotTo(HaveOccurred())
				Expect(outcome.IsDuplicate).To(BeFalse())
			})
		})

		Context("when the embedding backend is down", func() {
			BeforeEach(func() {
				bugsByID[40] = &model.Bug{ID: 40, ReportedAt: now}
				embedder.embedFn = func(_ context.Context, _ string) ([]float64, error) {
					return nil, errors.New("connection refused")
				}
			})

			It("flags the bug for retry and admits it as unique", func() {
				outcome, err := svc.CheckDuplicate(ctx, 40)

				Expect(err).NotTo(HaveOccurred())
				Expect(outcome.RetryFlagged).To(BeTrue())
				Expect(outcome.IsDuplicate).To(BeFalse())
				Expect(provider.bugs.retryFlags[40]).To(BeTrue())
			})
		})

		Context("with a bug already marked duplicate", func() {
			BeforeEach(func() {
				canonical := int64(50)
				bugsByID[51] = &model.Bug{ID: 51, IsDuplicate: true, DuplicateOfID: &canonical, ReportedAt: now}
				provider.duplicates.getByBugFn = func(_ context.Context, _ int64) (*model.DuplicateLink, error) {
					return &model.DuplicateLink{BugID: 51, CanonicalID: 50, Similarity: 0.91}, nil
				}
			})

			It("returns the existing verdict without re-embedding", func() {
				called := false
				embedder.embedFn = func(_ context.Context, _ string) ([]float64, error) {
					called = true
					return []float64{1, 0, 0}, nil
				}

				outcome, err := svc.CheckDuplicate(ctx, 51)

				Expect(err).NotTo(HaveOccurred())
				Expect(outcome.IsDuplicate).To(BeTrue())
				Expect(outcome.CanonicalID).To(Equal(int64(50)))
				Expect(called).To(BeFalse())
			})
		})
	})

	Describe("RetryPending", func() {
		BeforeEach(func() {
			bugsByID[60] = &model.Bug{ID: 60, NeedsDedupRetry: true, ReportedAt: now}
			bugsByID[61] = &model.Bug{ID: 61, NeedsDedupRetry: true, ReportedAt: now.Add(time.Minute)}
			provider.bugs.listNeedsRetryFn = func(_ context.Context, _ int32) ([]*model.Bug, error) {
				return []*model.Bug{bugsByID[60], bugsByID[61]}, nil
			}
		})

		It("clears the retry flag once the backend recovers", func() {
			retried, err := svc.RetryPending(ctx, 10)

			Expect(err).NotTo(HaveOccurred())
			Expect(retried).To(Equal(2))
			Expect(provider.bugs.retryFlags[60]).To(BeFalse())
			Expect(provider.bugs.retryFlags[61]).To(BeFalse())
		})

		It("stops the batch while the backend is still down", func() {
			embedder.embedFn = func(_ context.Context, _ string) ([]float64, error) {
				return nil, errors.New("connection refused")
			}

			retried, err := svc.RetryPending(ctx, 10)

			Expect(err).NotTo(HaveOccurred())
			Expect(retried).To(Equal(0))
		})
	})
})
