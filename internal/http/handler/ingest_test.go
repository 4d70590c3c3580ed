package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"databug.app/engine/internal/http/handler"
	"databug.app/engine/internal/model"
	"databug.app/engine/internal/service"
)

var _ = Describe("IngestHandler", func() {
	var (
		router *gin.Engine
		svc    *mockIngestService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockIngestService{}
		h := handler.NewIngestHandler(svc, "X-Trace-Id")
		router.POST("/incidents", h.IngestIncident)
		router.POST("/bugs", h.IngestBug)
	})

	Describe("POST /incidents", func() {
		It("returns 202 with the created incident", func() {
			externalID := "abc"
			svc.ingestIncidentFn = func(_ context.Context, params service.IncidentIngestParams) (*service.IngestResult[*model.Incident], error) {
				Expect(params.Resource).To(Equal("orders_table"))
				return &service.IngestResult[*model.Incident]{
					Record: &model.Incident{
						ID:         42,
						ExternalID: &externalID,
						Status:     model.IncidentStatusActive,
					},
					Enqueued: true,
				}, nil
			}

			body, _ := json.Marshal(map[string]any{
				"incident_type": "null_spike",
				"resource":      "orders_table",
				"severity":      "high",
			})
			req := httptest.NewRequest(http.MethodPost, "/incidents", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusAccepted))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["incident_id"]).To(BeNumerically("==", 42))
			Expect(resp["enqueued"]).To(BeTrue())
		})

		It("forwards the trace header", func() {
			var gotTrace *string
			svc.ingestIncidentFn = func(_ context.Context, params service.IncidentIngestParams) (*service.IngestResult[*model.Incident], error) {
				gotTrace = params.TraceID
				return &service.IngestResult[*model.Incident]{Record: &model.Incident{}}, nil
			}

			body, _ := json.Marshal(map[string]any{
				"incident_type": "null_spike",
				"resource":      "orders_table",
				"severity":      "high",
			})
			req := httptest.NewRequest(http.MethodPost, "/incidents", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Trace-Id", "trace-123")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusAccepted))
			Expect(gotTrace).NotTo(BeNil())
			Expect(*gotTrace).To(Equal("trace-123"))
		})

		It("returns 400 when required fields are missing", func() {
			body, _ := json.Marshal(map[string]any{"resource": "orders_table"})
			req := httptest.NewRequest(http.MethodPost, "/incidents", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 400 on an invalid severity", func() {
			svc.ingestIncidentFn = func(_ context.Context, _ service.IncidentIngestParams) (*service.IngestResult[*model.Incident], error) {
				return nil, service.ErrInvalidSeverity
			}

			body, _ := json.Marshal(map[string]any{
				"incident_type": "null_spike",
				"resource":      "orders_table",
				"severity":      "catastrophic",
			})
			req := httptest.NewRequest(http.MethodPost, "/incidents", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /bugs", func() {
		It("returns 202 with the created bug", func() {
			svc.ingestBugFn = func(_ context.Context, params service.BugIngestParams) (*service.IngestResult[*model.Bug], error) {
				Expect(params.Title).To(Equal("order totals are wrong"))
				return &service.IngestResult[*model.Bug]{
					Record: &model.Bug{
						ID:       7,
						Status:   model.BugStatusNew,
						Priority: model.PriorityP1,
					},
					Enqueued: true,
				}, nil
			}

			body, _ := json.Marshal(map[string]any{
				"source": "tracker",
				"title":  "order totals are wrong",
			})
			req := httptest.NewRequest(http.MethodPost, "/bugs", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusAccepted))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["bug_id"]).To(BeNumerically("==", 7))
			Expect(resp["priority"]).To(Equal("P1"))
		})

		It("returns 500 when the service fails", func() {
			svc.ingestBugFn = func(_ context.Context, _ service.BugIngestParams) (*service.IngestResult[*model.Bug], error) {
				return nil, errors.New("db down")
			}

			body, _ := json.Marshal(map[string]any{
				"source": "tracker",
				"title":  "order totals are wrong",
			})
			req := httptest.NewRequest(http.MethodPost, "/bugs", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
		})
	})
})
