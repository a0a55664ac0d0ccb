package services

import (
	"io"
	"log/slog"
	"time"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven/mocks"
	"github.com/lightfastai/lightfast-search/internal/runtime"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return fixedNow.Add(-time.Duration(n) * 24 * time.Hour)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testHarness wires a search service to in-memory stores
type testHarness struct {
	lexical      *mocks.MockLexicalIndex
	vectors      *mocks.MockVectorIndex
	graph        *mocks.MockGraphStore
	profiles     *mocks.MockProfileStore
	calibrations *mocks.MockCalibrationStore
	items        *mocks.MockItemStore
	telemetry    *mocks.MockTelemetryPublisher
	metrics      *mocks.MockSearchMetrics
	embedding    *mocks.MockEmbeddingService
	services     *runtime.Services
}

func newTestHarness() *testHarness {
	h := &testHarness{
		lexical:      mocks.NewMockLexicalIndex(),
		vectors:      mocks.NewMockVectorIndex(),
		graph:        mocks.NewMockGraphStore(),
		profiles:     mocks.NewMockProfileStore(),
		calibrations: mocks.NewMockCalibrationStore(),
		items:        mocks.NewMockItemStore(),
		telemetry:    mocks.NewMockTelemetryPublisher(),
		metrics:      mocks.NewMockSearchMetrics(),
		embedding:    mocks.NewMockEmbeddingService(),
	}
	h.services = runtime.NewServices(domain.NewRuntimeConfig("postgres"))
	h.services.SetEmbeddingService(h.embedding)
	return h
}

func (h *testHarness) service() *searchService {
	return NewSearchService(SearchServiceConfig{
		LexicalIndex:     h.lexical,
		VectorIndex:      h.vectors,
		GraphStore:       h.graph,
		ProfileStore:     h.profiles,
		CalibrationStore: h.calibrations,
		ItemStore:        h.items,
		Telemetry:        h.telemetry,
		Metrics:          h.metrics,
		Services:         h.services,
		Now:              func() time.Time { return fixedNow },
		Logger:           discardLogger(),
	}).(*searchService)
}

func wsItem(id, workspaceID, title, text string, occurredAt time.Time) *domain.Item {
	return &domain.Item{
		ID:             id,
		Kind:           domain.ItemKindDocument,
		WorkspaceID:    workspaceID,
		OrganizationID: "org_1",
		Source:         "github",
		Type:           "pull_request",
		Title:          title,
		Text:           text,
		OccurredAt:     occurredAt,
		Significance:   60,
		Visibility:     domain.VisibilityOrg,
	}
}

// seedBillingFixture loads three documents that match "billing" lexically and
// one that is only reachable through service_billing OWNED_BY team_billing.
func (h *testHarness) seedBillingFixture() {
	h.lexical.Add(
		wsItem("doc_b1", "ws_123", "Billing incident postmortem", "Webhook retries caused duplicate billing charges.", daysAgo(1)),
		wsItem("doc_b2", "ws_123", "Billing outage timeline", "Invoices were delayed for two hours.", daysAgo(2)),
		wsItem("doc_b3", "ws_123", "Billing alerts runbook", "Steps to silence noisy pager alerts.", daysAgo(3)),
	)

	h.graph.AddEntity(&domain.Entity{ID: "service_billing", WorkspaceID: "ws_123", Kind: "service", Name: "service_billing", Aliases: []string{"billing", "billing service"}})
	h.graph.AddEntity(&domain.Entity{ID: "team_billing", WorkspaceID: "ws_123", Kind: "team", Name: "team_billing", Aliases: []string{"billing team"}})
	h.graph.AddEdge(&domain.Relationship{
		ID:         "rel_owned",
		Type:       domain.EdgeOwnedBy,
		From:       "service_billing",
		To:         "team_billing",
		Confidence: 0.9,
		DetectedBy: domain.DetectedByRule,
	})
	h.graph.Link(domain.GraphLink{
		Item:     wsItem("doc_rota", "ws_123", "Payments squad rotation", "Weekly rota for the payments squad.", daysAgo(1)),
		EntityID: "team_billing",
	})
}

func boolPtr(b bool) *bool {
	return &b
}
