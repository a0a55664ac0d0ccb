package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
)

var (
	_ driven.ProfileStore       = (*MockProfileStore)(nil)
	_ driven.CalibrationStore   = (*MockCalibrationStore)(nil)
	_ driven.ItemStore          = (*MockItemStore)(nil)
	_ driven.Reranker           = (*MockReranker)(nil)
	_ driven.TelemetryPublisher = (*MockTelemetryPublisher)(nil)
	_ driven.APIKeyStore        = (*MockAPIKeyStore)(nil)
)

// MockProfileStore is an in-memory profile store for testing
type MockProfileStore struct {
	mu            sync.RWMutex
	profiles      map[domain.ProfileKey]*domain.Profile
	err           error
	centroidCalls int
}

// NewMockProfileStore creates a new MockProfileStore
func NewMockProfileStore() *MockProfileStore {
	return &MockProfileStore{profiles: make(map[domain.ProfileKey]*domain.Profile)}
}

// AddProfile stores a profile
func (m *MockProfileStore) AddProfile(p *domain.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[domain.ProfileKey{WorkspaceID: p.WorkspaceID, EntityID: p.EntityID}] = p
}

// SetError makes every call fail with err
func (m *MockProfileStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// CentroidCalls returns how many centroid lookups were made
func (m *MockProfileStore) CentroidCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.centroidCalls
}

func (m *MockProfileStore) Get(ctx context.Context, workspaceID, entityID string) (*domain.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.profiles[domain.ProfileKey{WorkspaceID: workspaceID, EntityID: entityID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (m *MockProfileStore) Centroids(ctx context.Context, keys []domain.ProfileKey) (map[domain.ProfileKey][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.centroidCalls++
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[domain.ProfileKey][]float32, len(keys))
	for _, k := range keys {
		if p, ok := m.profiles[k]; ok {
			out[k] = p.Centroid
		}
	}
	return out, nil
}

// MockCalibrationStore is an in-memory calibration store for testing
type MockCalibrationStore struct {
	mu    sync.RWMutex
	byWS  map[string]*domain.Calibration
	err   error
	calls int
}

// NewMockCalibrationStore creates a new MockCalibrationStore
func NewMockCalibrationStore() *MockCalibrationStore {
	return &MockCalibrationStore{byWS: make(map[string]*domain.Calibration)}
}

// Set stores a calibration
func (m *MockCalibrationStore) Set(c *domain.Calibration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byWS[c.WorkspaceID] = c
}

// SetError makes every call fail with err
func (m *MockCalibrationStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many lookups were made
func (m *MockCalibrationStore) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

func (m *MockCalibrationStore) GetCalibration(ctx context.Context, workspaceID string) (*domain.Calibration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if c, ok := m.byWS[workspaceID]; ok {
		cp := *c
		return &cp, nil
	}
	return domain.DefaultCalibration(workspaceID), nil
}

// MockItemStore is an in-memory hydration store for testing
type MockItemStore struct {
	mu    sync.RWMutex
	items map[string]*domain.Item
	err   error
}

// NewMockItemStore creates a new MockItemStore
func NewMockItemStore() *MockItemStore {
	return &MockItemStore{items: make(map[string]*domain.Item)}
}

// Add stores items
func (m *MockItemStore) Add(items ...*domain.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		m.items[item.ID] = item
	}
}

// SetError makes every call fail with err
func (m *MockItemStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockItemStore) GetItems(ctx context.Context, ids []string) (map[string]*domain.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]*domain.Item, len(ids))
	for _, id := range ids {
		if item, ok := m.items[id]; ok {
			cp := *item
			out[id] = &cp
		}
	}
	return out, nil
}

// MockReranker scores passages with a caller-supplied function
type MockReranker struct {
	mu      sync.Mutex
	scoreFn func(query, text string) float64
	err     error
	delay   time.Duration
	calls   int
}

// NewMockReranker creates a MockReranker. A nil scoreFn scores every text 0.5.
func NewMockReranker(scoreFn func(query, text string) float64) *MockReranker {
	if scoreFn == nil {
		scoreFn = func(string, string) float64 { return 0.5 }
	}
	return &MockReranker{scoreFn: scoreFn}
}

// SetError makes every call fail with err
func (m *MockReranker) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay delays every call
func (m *MockReranker) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls returns how many rerank calls were made
func (m *MockReranker) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockReranker) Rerank(ctx context.Context, query string, texts []string) ([]float64, error) {
	m.mu.Lock()
	m.calls++
	err, delay, fn := m.err, m.delay, m.scoreFn
	m.mu.Unlock()

	if err := wait(ctx, delay); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	scores := make([]float64, len(texts))
	for i, text := range texts {
		scores[i] = fn(query, text)
	}
	return scores, nil
}

func (m *MockReranker) Name() string {
	return "mock-reranker"
}

// MockTelemetryPublisher records published events
type MockTelemetryPublisher struct {
	mu     sync.Mutex
	events []*domain.SearchEvent
	err    error
}

// NewMockTelemetryPublisher creates a new MockTelemetryPublisher
func NewMockTelemetryPublisher() *MockTelemetryPublisher {
	return &MockTelemetryPublisher{}
}

// SetError makes every publish fail with err
func (m *MockTelemetryPublisher) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Events returns the published events
func (m *MockTelemetryPublisher) Events() []*domain.SearchEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.SearchEvent(nil), m.events...)
}

func (m *MockTelemetryPublisher) PublishSearch(ctx context.Context, event *domain.SearchEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *MockTelemetryPublisher) Close() error {
	return nil
}

// MockAPIKeyStore is an in-memory API key store for testing
type MockAPIKeyStore struct {
	mu   sync.RWMutex
	keys map[string]*domain.APIKey
}

// NewMockAPIKeyStore creates a new MockAPIKeyStore
func NewMockAPIKeyStore() *MockAPIKeyStore {
	return &MockAPIKeyStore{keys: make(map[string]*domain.APIKey)}
}

// Add stores a key by prefix
func (m *MockAPIKeyStore) Add(key *domain.APIKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key.Prefix] = key
}

func (m *MockAPIKeyStore) GetByPrefix(ctx context.Context, prefix string) (*domain.APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.keys[prefix]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return key, nil
}
