package service_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"databug.app/engine/common/id"
	"databug.app/engine/internal/model"
	"databug.app/engine/internal/queue"
	"databug.app/engine/internal/service"
)

var _ = Describe("IngestService", func() {
	var (
		provider *mockStoreProvider
		producer *mockQueueProducer
		svc      service.IngestService
		ctx      context.Context
		now      time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
		provider = newMockStoreProvider()
		producer = &mockQueueProducer{}

		err := id.Init(1)
		Expect(err).NotTo(HaveOccurred())

		svc = service.NewIngestService(provider, producer, nil)
	})

	Describe("IngestIncident", func() {
		It("persists the incident and enqueues a correlation task", func() {
			result, err := svc.IngestIncident(ctx, service.IncidentIngestParams{
				IncidentType: "null_spike",
				Resource:     "orders_table",
				Severity:     "high",
				OccurredAt:   now,
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Enqueued).To(BeTrue())
			Expect(result.Record.Status).To(Equal(model.IncidentStatusActive))
			Expect(result.Record.ExternalID).NotTo(BeNil())

			Expect(producer.enqueued).To(HaveLen(1))
			Expect(producer.enqueued[0].TaskType).To(Equal(queue.TaskTypeIncidentCreated))
			Expect(*producer.enqueued[0].IncidentID).To(Equal(result.Record.ID))
		})

		It("dedupes a replayed submission by external id", func() {
			existing := &model.Incident{ID: 7, Resource: "orders_table"}
			provider.incidents.getByExternalFn = func(_ context.Context, _ string) (*model.Incident, error) {
				return existing, nil
			}

			result, err := svc.IngestIncident(ctx, service.IncidentIngestParams{
				IncidentType: "null_spike",
				Resource:     "orders_table",
				Severity:     "high",
				OccurredAt:   now,
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Duplicated).To(BeTrue())
			Expect(result.Record).To(Equal(existing))
			Expect(producer.enqueued).To(BeEmpty())
		})

		It("derives the same dedupe key for identical identity fields", func() {
			first, err := svc.IngestIncident(ctx, service.IncidentIngestParams{
				IncidentType: "schema_drift",
				Resource:     "users_table",
				Severity:     "low",
				OccurredAt:   now,
			})
			Expect(err).NotTo(HaveOccurred())

			second, err := svc.IngestIncident(ctx, service.IncidentIngestParams{
				IncidentType: "schema_drift",
				Resource:     "users_table",
				Severity:     "low",
				OccurredAt:   now,
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(*first.Record.ExternalID).To(Equal(*second.Record.ExternalID))
		})

		It("rejects an unknown severity", func() {
			_, err := svc.IngestIncident(ctx, service.IncidentIngestParams{
				IncidentType: "null_spike",
				Resource:     "orders_table",
				Severity:     "catastrophic",
				OccurredAt:   now,
			})

			Expect(err).To(MatchError(service.ErrInvalidSeverity))
		})

		It("rejects a submission without a resource", func() {
			_, err := svc.IngestIncident(ctx, service.IncidentIngestParams{
				IncidentType: "null_spike",
				Severity:     "high",
			})

			Expect(err).To(HaveOccurred())
		})
	})

	Describe("IngestBug", func() {
		It("persists the bug and enqueues the triage pipeline", func() {
			result, err := svc.IngestBug(ctx, service.BugIngestParams{
				Source:     "tracker",
				Title:      "order totals are wrong",
				Severity:   "high",
				ReportedAt: now,
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Enqueued).To(BeTrue())
			Expect(result.Record.Status).To(Equal(model.BugStatusNew))
			Expect(result.Record.Priority).To(Equal(model.PriorityP1))

			Expect(producer.enqueued).To(HaveLen(1))
			Expect(producer.enqueued[0].TaskType).To(Equal(queue.TaskTypeBugCreated))
			Expect(*producer.enqueued[0].BugID).To(Equal(result.Record.ID))
		})

		It("accepts a report without a severity", func() {
			result, err := svc.IngestBug(ctx, service.BugIngestParams{
				Source:     "tracker",
				Title:      "something looks off",
				ReportedAt: now,
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Record.Severity).To(BeEmpty())
		})

		It("dedupes a replayed submission", func() {
			existing := &model.Bug{ID: 9, Title: "order totals are wrong"}
			provider.bugs.getByExternalFn = func(_ context.Context, _, _ string) (*model.Bug, error) {
				return existing, nil
			}

			result, err := svc.IngestBug(ctx, service.BugIngestParams{
				Source:     "tracker",
				Title:      "order totals are wrong",
				ReportedAt: now,
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Duplicated).To(BeTrue())
			Expect(producer.enqueued).To(BeEmpty())
		})

		It("rejects a report without a title", func() {
			_, err := svc.IngestBug(ctx, service.BugIngestParams{Source: "tracker"})
			Expect(err).To(HaveOccurred())
		})
	})
})
