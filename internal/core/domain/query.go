package domain

// IntentFamily is the inferred kind of question
type IntentFamily string

const (
	IntentIdentifier IntentFamily = "identifier"
	IntentSemantic   IntentFamily = "semantic"
	IntentOwnership  IntentFamily = "ownership"
	IntentDependency IntentFamily = "dependency"
)

// VectorFamily is a dense index family within a namespace
type VectorFamily string

const (
	VectorFamilyChunks       VectorFamily = "chunks"
	VectorFamilyObservations VectorFamily = "observations"
	VectorFamilySummaries    VectorFamily = "summaries"
)

// Classification is the output of the query classifier
type Classification struct {
	Intent        IntentFamily `json:"intent"`
	ResolvedScope Scope        `json:"resolved_scope"`
	ResolvedMode  SearchMode   `json:"resolved_mode"`
	Autoprompt    bool         `json:"autoprompt"`
	Identifier    bool         `json:"identifier"`
	OrgIntent     bool         `json:"org_intent"`
}

// ScopeLevel is the tenancy level of an index namespace
type ScopeLevel string

const (
	ScopeLevelWorkspace ScopeLevel = "workspace"
	ScopeLevelOrg       ScopeLevel = "org"
)

// ScopeTarget selects the index namespaces a retriever queries
type ScopeTarget struct {
	Level          ScopeLevel `json:"level"`
	WorkspaceID    string     `json:"workspace_id,omitempty"`
	OrganizationID string     `json:"organization_id,omitempty"`
}

// WorkspaceTarget targets a single workspace namespace
func WorkspaceTarget(organizationID, workspaceID string) ScopeTarget {
	return ScopeTarget{Level: ScopeLevelWorkspace, WorkspaceID: workspaceID, OrganizationID: organizationID}
}

// OrgTarget targets the organization aggregator namespace
func OrgTarget(organizationID string) ScopeTarget {
	return ScopeTarget{Level: ScopeLevelOrg, OrganizationID: organizationID}
}

// Namespace is the vector namespace name for a family
func (t ScopeTarget) Namespace(family VectorFamily) string {
	if t.Level == ScopeLevelOrg {
		return "org_" + t.OrganizationID + ":" + string(family)
	}
	return "ws_" + t.WorkspaceID + ":" + string(family)
}

// RouterState is the scope router's state
type RouterState string

const (
	RouterWorkspace   RouterState = "workspace"
	RouterOrgFallback RouterState = "org_fallback"
	RouterOrgExplicit RouterState = "org_explicit"
)

// ResolvedQuery is what retrievers receive
type ResolvedQuery struct {
	Text       string
	Terms      []string
	Intent     IntentFamily
	Mode       SearchMode
	Identifier bool
	Families   []VectorFamily
	EdgeTypes  []EdgeType
	Filters    Filters
	Limit      int

	// Vector is preset for similarity lookups and skips query embedding
	Vector     []float32
	ExcludeIDs []string

	// Caller identity used for visibility and personalization
	ActorID        string
	WorkspaceID    string
	OrganizationID string
}

// Excluded reports whether id must not be returned
func (q *ResolvedQuery) Excluded(id string) bool {
	for _, ex := range q.ExcludeIDs {
		if ex == id {
			return true
		}
	}
	return false
}
