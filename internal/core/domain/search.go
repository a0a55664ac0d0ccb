package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// SearchMode selects which retrieval signals a query uses
type SearchMode string

const (
	SearchModeAuto      SearchMode = "auto"
	SearchModeKnowledge SearchMode = "knowledge"
	SearchModeGraph     SearchMode = "graph"
	SearchModeHybrid    SearchMode = "hybrid"
	SearchModeKeyword   SearchMode = "keyword"
	SearchModeNeural    SearchMode = "neural"
	SearchModeFast      SearchMode = "fast"
)

// Valid reports whether the mode is one of the enumerated values
func (m SearchMode) Valid() bool {
	switch m {
	case SearchModeAuto, SearchModeKnowledge, SearchModeGraph, SearchModeHybrid,
		SearchModeKeyword, SearchModeNeural, SearchModeFast:
		return true
	}
	return false
}

// Scope is the tenancy boundary a query is evaluated against
type Scope string

const (
	ScopeAuto      Scope = "auto"
	ScopeWorkspace Scope = "workspace"
	ScopeOrg       Scope = "org"
)

// Valid reports whether the scope is one of the enumerated values
func (s Scope) Valid() bool {
	return s == ScopeAuto || s == ScopeWorkspace || s == ScopeOrg
}

const (
	// DefaultTopK is used when a request does not set topK
	DefaultTopK = 10
	// MaxTopK is the hard cap on requested results
	MaxTopK = 50
	// MaxQueryLength bounds the query string in characters
	MaxQueryLength = 2048
)

// Filters narrows candidates after retrieval
type Filters struct {
	Sources []string   `json:"sources,omitempty"`
	Types   []string   `json:"types,omitempty"`
	Authors []string   `json:"authors,omitempty"`
	Labels  []string   `json:"labels,omitempty"`
	After   *time.Time `json:"after,omitempty"`
	Before  *time.Time `json:"before,omitempty"`
}

// IsEmpty returns true when no filter is set
func (f Filters) IsEmpty() bool {
	return len(f.Sources) == 0 && len(f.Types) == 0 && len(f.Authors) == 0 &&
		len(f.Labels) == 0 && f.After == nil && f.Before == nil
}

// Matches reports whether an item passes every set filter
func (f Filters) Matches(item *Item) bool {
	if item == nil {
		return false
	}
	if len(f.Sources) > 0 && !containsFold(f.Sources, item.Source) {
		return false
	}
	if len(f.Types) > 0 && !containsFold(f.Types, item.Type) {
		return false
	}
	if len(f.Authors) > 0 && !containsFold(f.Authors, item.Author) && !containsFold(f.Authors, item.ActorID) {
		return false
	}
	if len(f.Labels) > 0 {
		found := false
		for _, label := range item.Labels {
			if containsFold(f.Labels, label) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.After != nil && item.OccurredAt.Before(*f.After) {
		return false
	}
	if f.Before != nil && item.OccurredAt.After(*f.Before) {
		return false
	}
	return true
}

func containsFold(values []string, v string) bool {
	for _, candidate := range values {
		if strings.EqualFold(candidate, v) {
			return true
		}
	}
	return false
}

// IncludeOptions controls optional response payloads
type IncludeOptions struct {
	Rationale bool `json:"rationale"`
}

// QualityOptions controls optional ranking stages
type QualityOptions struct {
	// Rerank defaults to true when unset
	Rerank *bool `json:"rerank,omitempty"`
}

// RerankEnabled returns the effective rerank flag
func (q QualityOptions) RerankEnabled() bool {
	return q.Rerank == nil || *q.Rerank
}

// SearchRequest is the input to POST /v1/search
type SearchRequest struct {
	OrganizationID string         `json:"organizationId,omitempty"`
	WorkspaceID    string         `json:"workspaceId,omitempty"`
	Scope          Scope          `json:"scope,omitempty"`
	Query          string         `json:"q"`
	Mode           SearchMode     `json:"mode,omitempty"`
	Autoprompt     *bool          `json:"autoprompt,omitempty"`
	Filters        Filters        `json:"filters"`
	TopK           int            `json:"topK,omitempty"`
	Include        IncludeOptions `json:"include"`
	Quality        QualityOptions `json:"quality"`

	// ActorID is taken from the authenticated principal, never from the body
	ActorID string `json:"-"`
}

// AutopromptEnabled returns the effective autoprompt flag
func (r *SearchRequest) AutopromptEnabled() bool {
	return r.Autoprompt == nil || *r.Autoprompt
}

// Normalize applies request defaults in place
func (r *SearchRequest) Normalize() {
	r.Query = strings.TrimSpace(r.Query)
	r.OrganizationID = strings.TrimSpace(r.OrganizationID)
	r.WorkspaceID = strings.TrimSpace(r.WorkspaceID)
	if r.Scope == "" {
		r.Scope = ScopeAuto
	}
	if r.Mode == "" {
		r.Mode = SearchModeAuto
	}
	if r.TopK == 0 {
		r.TopK = DefaultTopK
	}
}

// Validate checks request fields. Call Normalize first.
func (r *SearchRequest) Validate() error {
	if r.Query == "" {
		return InvalidField("q", "is required")
	}
	if utf8.RuneCountInString(r.Query) > MaxQueryLength {
		return InvalidField("q", "must be at most %d characters", MaxQueryLength)
	}
	if !r.Mode.Valid() {
		return InvalidField("mode", "unknown mode %q", r.Mode)
	}
	return validateScope(r.Scope, r.OrganizationID, r.WorkspaceID, r.TopK, r.Filters)
}

func validateScope(scope Scope, orgID, workspaceID string, topK int, filters Filters) error {
	if !scope.Valid() {
		return InvalidField("scope", "unknown scope %q", scope)
	}
	switch scope {
	case ScopeOrg:
		if orgID == "" {
			return InvalidField("organizationId", "is required when scope is org")
		}
	case ScopeWorkspace:
		if workspaceID == "" {
			return InvalidField("workspaceId", "is required when scope is workspace")
		}
	default:
		if orgID == "" && workspaceID == "" {
			return InvalidField("workspaceId", "workspaceId or organizationId is required")
		}
	}
	if topK < 1 {
		return InvalidField("topK", "must be at least 1")
	}
	if topK > MaxTopK {
		return InvalidField("topK", "must be at most %d", MaxTopK)
	}
	if filters.After != nil && filters.Before != nil && filters.After.After(*filters.Before) {
		return InvalidField("filters.after", "must not be later than filters.before")
	}
	return nil
}

// SimilarSubject identifies what a similarity lookup starts from
type SimilarSubject string

const (
	SimilarSubjectChunk    SimilarSubject = "chunk"
	SimilarSubjectDocument SimilarSubject = "document"
)

// SimilarRequest is the input to POST /v1/similar
type SimilarRequest struct {
	OrganizationID string         `json:"organizationId,omitempty"`
	WorkspaceID    string         `json:"workspaceId,omitempty"`
	Scope          Scope          `json:"scope,omitempty"`
	Subject        SimilarSubject `json:"subject"`
	ID             string         `json:"id"`
	Filters        Filters        `json:"filters"`
	TopK           int            `json:"topK,omitempty"`
	Include        IncludeOptions `json:"include"`

	ActorID string `json:"-"`
}

// Normalize applies request defaults in place
func (r *SimilarRequest) Normalize() {
	r.ID = strings.TrimSpace(r.ID)
	if r.Scope == "" {
		r.Scope = ScopeAuto
	}
	if r.TopK == 0 {
		r.TopK = DefaultTopK
	}
}

// Validate checks request fields. Call Normalize first.
func (r *SimilarRequest) Validate() error {
	if r.Subject != SimilarSubjectChunk && r.Subject != SimilarSubjectDocument {
		return InvalidField("subject", "must be chunk or document")
	}
	if r.ID == "" {
		return InvalidField("id", "is required")
	}
	return validateScope(r.Scope, r.OrganizationID, r.WorkspaceID, r.TopK, r.Filters)
}

// SearchResponse is the output of POST /v1/search
type SearchResponse struct {
	Results   []*SearchHit `json:"results"`
	Rationale *Rationale   `json:"rationale,omitempty"`
	Usage     Usage        `json:"usage"`
	RequestID string       `json:"requestId"`
}

// SearchHit is one ranked result
type SearchHit struct {
	DocumentID string        `json:"documentId"`
	ChunkID    string        `json:"chunkId,omitempty"`
	Score      float64       `json:"score"`
	Title      string        `json:"title"`
	Type       string        `json:"type"`
	Source     string        `json:"source"`
	OccurredAt time.Time     `json:"occurredAt"`
	Author     string        `json:"author,omitempty"`
	Highlight  string        `json:"highlight,omitempty"`
	URL        string        `json:"url,omitempty"`
	Rationale  *HitRationale `json:"rationale,omitempty"`
	Signals    *SignalScores `json:"signals,omitempty"`
}

// Usage reports how a query was served
type Usage struct {
	LatencyMs          int64              `json:"latencyMs"`
	RouterScope        Scope              `json:"routerScope"`
	ResolvedMode       SearchMode         `json:"resolvedMode"`
	InferredFamily     IntentFamily       `json:"inferredFamily"`
	ContributionShares map[Signal]float64 `json:"contributionShares"`
	Stages             StageLatencies     `json:"stages"`
	Rerank             RerankUsage        `json:"rerank"`
	DegradedSignals    []Signal           `json:"degradedSignals,omitempty"`
}

// StageLatencies is the per-stage latency breakdown in milliseconds
type StageLatencies struct {
	Lexical int64 `json:"lexical"`
	Vector  int64 `json:"vector"`
	Graph   int64 `json:"graph"`
	Profile int64 `json:"profile"`
	Fusion  int64 `json:"fusion"`
	Rerank  int64 `json:"rerank"`
	Hydrate int64 `json:"hydrate"`
}

// Set records the latency of a retriever stage
func (s *StageLatencies) Set(signal Signal, took time.Duration) {
	ms := took.Milliseconds()
	switch signal {
	case SignalLexical:
		s.Lexical += ms
	case SignalVector:
		s.Vector += ms
	case SignalGraph:
		s.Graph += ms
	case SignalProfile:
		s.Profile += ms
	}
}

// RerankUsage reports what the rerank stage did
type RerankUsage struct {
	Applied  bool   `json:"applied"`
	Fallback bool   `json:"fallback"`
	Mode     string `json:"mode,omitempty"`
	Dropped  int    `json:"dropped"`
}
