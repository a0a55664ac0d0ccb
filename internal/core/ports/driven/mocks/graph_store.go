package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
)

// Ensure MockGraphStore implements GraphStore
var _ driven.GraphStore = (*MockGraphStore)(nil)

// MockGraphStore is an in-memory entity graph for testing
type MockGraphStore struct {
	mu            sync.RWMutex
	entities      map[string]*domain.Entity
	aliases       map[string]string
	edges         []*domain.Relationship
	links         []domain.GraphLink
	err           error
	neighborCalls int
}

// NewMockGraphStore creates a new MockGraphStore
func NewMockGraphStore() *MockGraphStore {
	return &MockGraphStore{
		entities: make(map[string]*domain.Entity),
		aliases:  make(map[string]string),
	}
}

// AddEntity stores an entity and indexes its name and aliases
func (m *MockGraphStore) AddEntity(e *domain.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[e.ID] = e
	m.aliases[strings.ToLower(e.Name)] = e.ID
	for _, a := range e.Aliases {
		m.aliases[strings.ToLower(a)] = e.ID
	}
}

// AddEdge stores a relationship
func (m *MockGraphStore) AddEdge(r *domain.Relationship) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges = append(m.edges, r)
}

// Link ties an item to an entity or relationship
func (m *MockGraphStore) Link(link domain.GraphLink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = append(m.links, link)
}

// SetError makes every call fail with err
func (m *MockGraphStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// NeighborCalls returns how many adjacency lookups were made
func (m *MockGraphStore) NeighborCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.neighborCalls
}

func (m *MockGraphStore) ResolveEntities(ctx context.Context, target domain.ScopeTarget, mentions []string, fuzzy bool) ([]domain.EntityMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}

	var matches []domain.EntityMatch
	seen := make(map[string]bool)
	for _, mention := range mentions {
		key := strings.ToLower(mention)
		if id, ok := m.aliases[key]; ok && !seen[id] {
			seen[id] = true
			matches = append(matches, domain.EntityMatch{Entity: m.entities[id], Mention: mention, Confidence: 1, Exact: true})
		}
	}
	if len(matches) > 0 || !fuzzy {
		return matches, nil
	}

	aliases := make([]string, 0, len(m.aliases))
	for a := range m.aliases {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)
	for _, mention := range mentions {
		key := strings.ToLower(mention)
		for _, alias := range aliases {
			id := m.aliases[alias]
			if seen[id] || len(key) < 3 {
				continue
			}
			if strings.Contains(alias, key) || strings.Contains(key, alias) {
				seen[id] = true
				matches = append(matches, domain.EntityMatch{Entity: m.entities[id], Mention: mention, Confidence: 0.6})
			}
		}
	}
	return matches, nil
}

func (m *MockGraphStore) Neighbors(ctx context.Context, target domain.ScopeTarget, entityIDs []string, edgeTypes []domain.EdgeType) ([]*domain.Relationship, error) {
	m.mu.Lock()
	m.neighborCalls++
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}

	ids := make(map[string]bool, len(entityIDs))
	for _, id := range entityIDs {
		ids[id] = true
	}
	var out []*domain.Relationship
	for _, e := range m.edges {
		if !ids[e.From] && !ids[e.To] {
			continue
		}
		if len(edgeTypes) > 0 && !containsEdgeType(edgeTypes, e.Type) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func containsEdgeType(types []domain.EdgeType, t domain.EdgeType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

func (m *MockGraphStore) Entities(ctx context.Context, ids []string) ([]*domain.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*domain.Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := m.entities[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockGraphStore) LinkedItems(ctx context.Context, target domain.ScopeTarget, entityIDs, relationshipIDs []string, limit int) ([]domain.GraphLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}

	entities := make(map[string]bool, len(entityIDs))
	for _, id := range entityIDs {
		entities[id] = true
	}
	rels := make(map[string]bool, len(relationshipIDs))
	for _, id := range relationshipIDs {
		rels[id] = true
	}

	var out []domain.GraphLink
	for _, link := range m.links {
		if !inTarget(link.Item, target) {
			continue
		}
		if (link.EntityID != "" && entities[link.EntityID]) || (link.RelationshipID != "" && rels[link.RelationshipID]) {
			out = append(out, link)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
