package services

import (
	"fmt"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
)

// ScopeRouter decides which namespace a query reads and whether it may
// widen to the organization aggregator. It allows at most one transition
// (Workspace to OrgFallback) per query and is not safe for concurrent use.
type ScopeRouter struct {
	state          domain.RouterState
	scope          domain.Scope
	organizationID string
	workspaceID    string
	orgIntent      bool
}

// NewScopeRouter picks the initial state for a validated request
func NewScopeRouter(scope domain.Scope, organizationID, workspaceID string, orgIntent bool) *ScopeRouter {
	r := &ScopeRouter{
		scope:          scope,
		organizationID: organizationID,
		workspaceID:    workspaceID,
		orgIntent:      orgIntent,
		state:          domain.RouterWorkspace,
	}
	if scope == domain.ScopeOrg || workspaceID == "" {
		r.state = domain.RouterOrgExplicit
	}
	return r
}

// State returns the current state
func (r *ScopeRouter) State() domain.RouterState {
	return r.state
}

// Target returns the namespace the next retrieval pass reads
func (r *ScopeRouter) Target() domain.ScopeTarget {
	if r.state == domain.RouterWorkspace {
		return domain.WorkspaceTarget(r.organizationID, r.workspaceID)
	}
	return domain.OrgTarget(r.organizationID)
}

// RouterScope is the scope actually used, reported in usage
func (r *ScopeRouter) RouterScope() domain.Scope {
	if r.state == domain.RouterWorkspace {
		return domain.ScopeWorkspace
	}
	return domain.ScopeOrg
}

// NeedsOrg reports whether the workspace pass should widen to the org aggregator.
// Only auto-scoped queries with an organization may widen, and only once.
func (r *ScopeRouter) NeedsOrg(workspaceCount, recallFloor int) bool {
	if r.state != domain.RouterWorkspace || r.scope != domain.ScopeAuto || r.organizationID == "" {
		return false
	}
	return r.orgIntent || workspaceCount < recallFloor
}

// Fallback transitions Workspace to OrgFallback
func (r *ScopeRouter) Fallback() error {
	if r.state != domain.RouterWorkspace {
		return fmt.Errorf("scope router: no fallback from state %s", r.state)
	}
	r.state = domain.RouterOrgFallback
	return nil
}
