package domain

import "time"

// SearchEvent is published after a search completes
type SearchEvent struct {
	RequestID       string       `json:"request_id"`
	OrganizationID  string       `json:"organization_id,omitempty"`
	WorkspaceID     string       `json:"workspace_id,omitempty"`
	RouterMode      RouterState  `json:"router_mode"`
	RouterScope     Scope        `json:"router_scope"`
	ResolvedMode    SearchMode   `json:"resolved_mode"`
	InferredFamily  IntentFamily `json:"inferred_family"`
	ResultCount     int          `json:"result_count"`
	LatencyMs       int64        `json:"latency_ms"`
	RerankFallback  bool         `json:"rerank_fallback"`
	DegradedSignals []Signal     `json:"degraded_signals,omitempty"`
	OccurredAt      time.Time    `json:"occurred_at"`
}
