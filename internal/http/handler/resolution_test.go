package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"databug.app/engine/internal/http/handler"
	"databug.app/engine/internal/service"
)

var _ = Describe("ResolutionHandler", func() {
	var (
		router     *gin.Engine
		resolution *mockResolutionService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		resolution = &mockResolutionService{}
		h := handler.NewResolutionHandler(resolution)
		router.POST("/incidents/:id/resolve", h.Propagate)
	})

	It("cascades with the supplied notes", func() {
		var gotNotes *string
		resolution.propagateFn = func(_ context.Context, incidentID int64, notes *string) (*service.PropagationResult, error) {
			gotNotes = notes
			return &service.PropagationResult{
				IncidentID:   incidentID,
				ResolvedBugs: []int64{200, 201},
			}, nil
		}

		body, _ := json.Marshal(map[string]string{"notes": "backfill completed"})
		req := httptest.NewRequest(http.MethodPost, "/incidents/100/resolve", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(gotNotes).NotTo(BeNil())
		Expect(*gotNotes).To(Equal("backfill completed"))

		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["resolved_bugs"]).To(HaveLen(2))
	})

	It("accepts an empty body", func() {
		req := httptest.NewRequest(http.MethodPost, "/incidents/100/resolve", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["resolved_bugs"]).To(HaveLen(0))
	})

	It("returns 404 for an unknown incident", func() {
		resolution.propagateFn = func(_ context.Context, _ int64, _ *string) (*service.PropagationResult, error) {
			return nil, service.ErrIncidentNotFound
		}

		req := httptest.NewRequest(http.MethodPost, "/incidents/999/resolve", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})
})
