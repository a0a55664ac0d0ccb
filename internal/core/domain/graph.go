package domain

import "time"

// EdgeType is the type of a relationship in the explainability graph
type EdgeType string

const (
	EdgeOwnedBy    EdgeType = "OWNED_BY"
	EdgeMemberOf   EdgeType = "MEMBER_OF"
	EdgeDependsOn  EdgeType = "DEPENDS_ON"
	EdgeBlockedBy  EdgeType = "BLOCKED_BY"
	EdgeResolves   EdgeType = "RESOLVES"
	EdgeReferences EdgeType = "REFERENCES"
	EdgeAuthoredBy EdgeType = "AUTHORED_BY"
	EdgeDeployedTo EdgeType = "DEPLOYED_TO"
)

// DetectedBy records how a relationship was produced
type DetectedBy string

const (
	DetectedByRule   DetectedBy = "rule"
	DetectedByLLM    DetectedBy = "llm"
	DetectedByManual DetectedBy = "manual"
)

// Confidence thresholds for llm-proposed edges
const (
	EdgeDiscardBelow    = 0.60
	EdgeAcceptAtOrAbove = 0.80
)

// ReviewDecision is the outcome of gating an llm-proposed edge
type ReviewDecision string

const (
	ReviewDiscard ReviewDecision = "discard"
	ReviewPending ReviewDecision = "review"
	ReviewAccept  ReviewDecision = "accept"
)

// ReviewDecisionFor gates an llm-proposed edge by confidence
func ReviewDecisionFor(confidence float64) ReviewDecision {
	switch {
	case confidence < EdgeDiscardBelow:
		return ReviewDiscard
	case confidence < EdgeAcceptAtOrAbove:
		return ReviewPending
	default:
		return ReviewAccept
	}
}

// Entity is a node in the explainability graph
type Entity struct {
	ID             string   `json:"id"`
	WorkspaceID    string   `json:"workspace_id,omitempty"`
	OrganizationID string   `json:"organization_id,omitempty"`
	Kind           string   `json:"kind"`
	Name           string   `json:"name"`
	Aliases        []string `json:"aliases,omitempty"`
}

// Relationship is a typed, evidenced edge between two entities
type Relationship struct {
	ID          string     `json:"id"`
	Type        EdgeType   `json:"type"`
	From        string     `json:"from"`
	To          string     `json:"to"`
	Confidence  float64    `json:"confidence"`
	DetectedBy  DetectedBy `json:"detected_by"`
	Since       *time.Time `json:"since,omitempty"`
	Until       *time.Time `json:"until,omitempty"`
	EvidenceIDs []string   `json:"evidence_ids,omitempty"`
}

// Visible reports whether the edge may be traversed or shown.
// Rule and manual edges are always visible; llm edges only once auto-accepted.
func (r *Relationship) Visible() bool {
	if r.DetectedBy == DetectedByLLM {
		return ReviewDecisionFor(r.Confidence) == ReviewAccept
	}
	return true
}

// ActiveAt reports whether the validity window contains t
func (r *Relationship) ActiveAt(t time.Time) bool {
	if r.Until != nil && !r.Until.After(t) {
		return false
	}
	if r.Since != nil && r.Since.After(t) {
		return false
	}
	return true
}

// Other returns the endpoint opposite to entityID
func (r *Relationship) Other(entityID string) string {
	if r.From == entityID {
		return r.To
	}
	return r.From
}

// CanReplace reports whether proposed may overwrite existing.
// Rule edges are never overwritten by llm edges.
func CanReplace(existing, proposed *Relationship) bool {
	if existing == nil {
		return true
	}
	if existing.DetectedBy == DetectedByRule && proposed.DetectedBy == DetectedByLLM {
		return false
	}
	if proposed.DetectedBy == DetectedByLLM && ReviewDecisionFor(proposed.Confidence) == ReviewDiscard {
		return false
	}
	return true
}

// EntityMatch is an entity resolved from a query mention
type EntityMatch struct {
	Entity     *Entity `json:"entity"`
	Mention    string  `json:"mention"`
	Confidence float64 `json:"confidence"`
	Exact      bool    `json:"exact"`
}

// GraphLink ties an item to the entity or edge that evidences it
type GraphLink struct {
	Item           *Item  `json:"item"`
	EntityID       string `json:"entity_id,omitempty"`
	RelationshipID string `json:"relationship_id,omitempty"`
}

// GraphTraversal is the subgraph walked for one query
type GraphTraversal struct {
	Seeds    []EntityMatch            `json:"seeds"`
	Entities map[string]*Entity       `json:"entities"`
	Edges    map[string]*Relationship `json:"edges"`
	Hops     map[string]int           `json:"hops"`
}

// NewGraphTraversal returns an empty traversal
func NewGraphTraversal() *GraphTraversal {
	return &GraphTraversal{
		Entities: make(map[string]*Entity),
		Edges:    make(map[string]*Relationship),
		Hops:     make(map[string]int),
	}
}
