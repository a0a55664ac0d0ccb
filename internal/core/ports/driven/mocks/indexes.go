package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
)

var (
	_ driven.LexicalIndex = (*MockLexicalIndex)(nil)
	_ driven.VectorIndex  = (*MockVectorIndex)(nil)
)

// inTarget reports whether an item lives in the scope target
func inTarget(item *domain.Item, target domain.ScopeTarget) bool {
	if target.Level == domain.ScopeLevelOrg {
		return item.OrganizationID == target.OrganizationID
	}
	return item.WorkspaceID == target.WorkspaceID && sameOrg(item, target.OrganizationID)
}

func sameOrg(item *domain.Item, organizationID string) bool {
	return organizationID == "" || item.OrganizationID == "" || item.OrganizationID == organizationID
}

// wait blocks for d or until ctx is done
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// MockLexicalIndex is an in-memory word-match index for testing
type MockLexicalIndex struct {
	mu      sync.RWMutex
	items   []*domain.Item
	err     error
	delay   time.Duration
	queries []driven.LexicalQuery
}

// NewMockLexicalIndex creates a new MockLexicalIndex
func NewMockLexicalIndex() *MockLexicalIndex {
	return &MockLexicalIndex{}
}

// Add indexes items
func (m *MockLexicalIndex) Add(items ...*domain.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, items...)
}

// SetError makes every search fail with err
func (m *MockLexicalIndex) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay delays every search
func (m *MockLexicalIndex) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Queries returns the queries received
func (m *MockLexicalIndex) Queries() []driven.LexicalQuery {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]driven.LexicalQuery(nil), m.queries...)
}

func (m *MockLexicalIndex) Search(ctx context.Context, q driven.LexicalQuery) ([]driven.LexicalHit, error) {
	m.mu.Lock()
	m.queries = append(m.queries, q)
	err, delay := m.err, m.delay
	items := append([]*domain.Item(nil), m.items...)
	m.mu.Unlock()

	if err := wait(ctx, delay); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	terms := q.Terms
	if len(terms) == 0 {
		terms = strings.Fields(strings.ToLower(q.Text))
	}

	var hits []driven.LexicalHit
	for _, item := range items {
		if !inTarget(item, q.Target) {
			continue
		}
		words := strings.Fields(strings.ToLower(item.Title + " " + item.Text))
		exact, prefix := 0, 0
		for _, term := range terms {
			matched := false
			for _, w := range words {
				if w == term {
					exact++
					matched = true
					break
				}
			}
			if matched {
				continue
			}
			for _, w := range words {
				if strings.HasPrefix(w, term) {
					prefix++
					break
				}
			}
		}
		switch {
		case exact > 0:
			hits = append(hits, driven.LexicalHit{Item: item, Match: driven.MatchExact, Coverage: float64(exact) / float64(len(terms))})
		case prefix > 0:
			hits = append(hits, driven.LexicalHit{Item: item, Match: driven.MatchPrefix, Coverage: float64(prefix) / float64(len(terms))})
		}
	}
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	return hits, nil
}

type vectorEntry struct {
	item   *domain.Item
	vector []float32
}

// MockVectorIndex is an exact (brute force) cosine index for testing
type MockVectorIndex struct {
	mu      sync.RWMutex
	spaces  map[string][]vectorEntry
	err     error
	delay   time.Duration
	queries []driven.VectorQuery
}

// NewMockVectorIndex creates a new MockVectorIndex
func NewMockVectorIndex() *MockVectorIndex {
	return &MockVectorIndex{spaces: make(map[string][]vectorEntry)}
}

// Add stores an item vector in a namespace
func (m *MockVectorIndex) Add(namespace string, item *domain.Item, vector []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spaces[namespace] = append(m.spaces[namespace], vectorEntry{item: item, vector: vector})
}

// SetError makes every query fail with err
func (m *MockVectorIndex) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay delays every query
func (m *MockVectorIndex) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Queries returns the queries received
func (m *MockVectorIndex) Queries() []driven.VectorQuery {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]driven.VectorQuery(nil), m.queries...)
}

func (m *MockVectorIndex) Query(ctx context.Context, q driven.VectorQuery) ([]driven.VectorHit, error) {
	m.mu.Lock()
	m.queries = append(m.queries, q)
	err, delay := m.err, m.delay
	entries := append([]vectorEntry(nil), m.spaces[q.Namespace]...)
	m.mu.Unlock()

	if err := wait(ctx, delay); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	hits := make([]driven.VectorHit, 0, len(entries))
	for _, e := range entries {
		if !sameOrg(e.item, q.OrganizationID) {
			continue
		}
		hits = append(hits, driven.VectorHit{Item: e.item, Score: domain.CosineSimilarity(q.Vector, e.vector)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Item.ID < hits[j].Item.ID
	})
	if q.TopK > 0 && len(hits) > q.TopK {
		hits = hits[:q.TopK]
	}
	return hits, nil
}

func (m *MockVectorIndex) Fetch(ctx context.Context, namespace, id string) ([]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.spaces[namespace] {
		if e.item.ID == id || e.item.ChunkID == id {
			return e.vector, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockVectorIndex) HealthCheck(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}
