package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"databug.app/engine/internal/engine"
	"databug.app/engine/internal/http/handler"
	"databug.app/engine/internal/model"
	"databug.app/engine/internal/service"
	"databug.app/engine/internal/store"
)

var _ = Describe("CorrelationHandler", func() {
	var (
		router      *gin.Engine
		correlation *mockCorrelationService
		dedup       *mockDedupService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		correlation = &mockCorrelationService{}
		dedup = &mockDedupService{}
		h := handler.NewCorrelationHandler(correlation, dedup)
		router.POST("/bugs/:id/resolve", h.Resolve)
		router.POST("/bugs/:id/duplicates", h.FindDuplicates)
		router.GET("/bugs/:id/priority", h.GetPriority)
	})

	Describe("POST /bugs/:id/resolve", func() {
		It("returns the links and recomputed rank", func() {
			correlation.resolveBugFn = func(_ context.Context, bugID int64) (*service.ResolveOutcome, error) {
				link := &model.CorrelationLink{IncidentID: 100, BugID: bugID, TotalScore: 0.82, Primary: true}
				return &service.ResolveOutcome{
					BugID:   bugID,
					Links:   []*model.CorrelationLink{link},
					Primary: link,
					Rank: engine.RankResult{
						Priority:      model.PriorityP0,
						PriorityScore: 96,
						Confidence:    0.9,
						Confirmed:     true,
					},
				}, nil
			}

			req := httptest.NewRequest(http.MethodPost, "/bugs/200/resolve", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["priority"]).To(Equal("P0"))
			Expect(resp["priority_score"]).To(BeNumerically("==", 96))
			Expect(resp["links"]).To(HaveLen(1))
			Expect(resp["primary"]).NotTo(BeNil())
		})

		It("returns 404 for an unknown bug", func() {
			correlation.resolveBugFn = func(_ context.Context, _ int64) (*service.ResolveOutcome, error) {
				return nil, store.ErrNotFound
			}

			req := httptest.NewRequest(http.MethodPost, "/bugs/999/resolve", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("returns 400 for a malformed id", func() {
			req := httptest.NewRequest(http.MethodPost, "/bugs/abc/resolve", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /bugs/:id/duplicates", func() {
		It("returns the duplicate verdict", func() {
			dedup.checkDuplicateFn = func(_ context.Context, bugID int64) (*service.DedupOutcome, error) {
				return &service.DedupOutcome{
					BugID:       bugID,
					IsDuplicate: true,
					CanonicalID: 10,
					Similarity:  0.93,
				}, nil
			}

			req := httptest.NewRequest(http.MethodPost, "/bugs/11/duplicates", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["is_duplicate"]).To(BeTrue())
			Expect(resp["canonical_id"]).To(BeNumerically("==", 10))
		})

		It("omits the canonical id for unique bugs", func() {
			req := httptest.NewRequest(http.MethodPost, "/bugs/12/duplicates", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp).NotTo(HaveKey("canonical_id"))
		})
	})

	Describe("GET /bugs/:id/priority", func() {
		It("returns the recomputed rank", func() {
			correlation.rankBugFn = func(_ context.Context, _ int64) (engine.RankResult, error) {
				return engine.RankResult{
					Priority:      model.PriorityP2,
					PriorityScore: 55,
					Confidence:    0.5,
				}, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/bugs/200/priority", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["priority"]).To(Equal("P2"))
			Expect(resp["priority_score"]).To(BeNumerically("==", 55))
		})
	})
})
