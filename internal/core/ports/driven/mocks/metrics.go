package mocks

import (
	"sync"
	"time"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
)

var _ driven.SearchMetrics = (*MockSearchMetrics)(nil)

// MockSearchMetrics counts recorded measurements
type MockSearchMetrics struct {
	mu               sync.Mutex
	Searches         map[string]int
	Stages           map[string]int
	RetrieverFailure map[domain.Signal]int
	RerankFallbacks  int
	ScopeFallbacks   int
}

// NewMockSearchMetrics creates a new MockSearchMetrics
func NewMockSearchMetrics() *MockSearchMetrics {
	return &MockSearchMetrics{
		Searches:         make(map[string]int),
		Stages:           make(map[string]int),
		RetrieverFailure: make(map[domain.Signal]int),
	}
}

func (m *MockSearchMetrics) ObserveSearch(mode domain.SearchMode, scope domain.Scope, status string, took time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Searches[status]++
}

func (m *MockSearchMetrics) ObserveStage(stage string, took time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stages[stage]++
}

func (m *MockSearchMetrics) RetrieverFailed(signal domain.Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RetrieverFailure[signal]++
}

func (m *MockSearchMetrics) RerankFallback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RerankFallbacks++
}

func (m *MockSearchMetrics) ScopeFallback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ScopeFallbacks++
}

// Failures returns the failure count for a signal
func (m *MockSearchMetrics) Failures(signal domain.Signal) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RetrieverFailure[signal]
}
