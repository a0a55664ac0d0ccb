package domain

import "sync"

// RuntimeConfig tracks which optional services are available at runtime.
// Thread-safe for concurrent access.
type RuntimeConfig struct {
	mu sync.RWMutex

	// Static (set at startup, read-only)
	GraphBackend string // "postgres" or "neo4j"

	// Dynamic capability flags
	embeddingAvailable bool
	rerankAvailable    bool
}

// NewRuntimeConfig creates a new RuntimeConfig with initial values
func NewRuntimeConfig(graphBackend string) *RuntimeConfig {
	return &RuntimeConfig{
		GraphBackend: graphBackend,
	}
}

// EmbeddingAvailable returns whether embedding service is available
func (c *RuntimeConfig) EmbeddingAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.embeddingAvailable
}

// RerankAvailable returns whether a reranker is configured
func (c *RuntimeConfig) RerankAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rerankAvailable
}

// SetEmbeddingAvailable updates the embedding availability flag
func (c *RuntimeConfig) SetEmbeddingAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.embeddingAvailable = available
}

// SetRerankAvailable updates the reranker availability flag
func (c *RuntimeConfig) SetRerankAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rerankAvailable = available
}

// CanDoSemanticSearch returns true if the dense retriever can embed queries
func (c *RuntimeConfig) CanDoSemanticSearch() bool {
	return c.EmbeddingAvailable()
}
