package runtime

import (
	"context"
	"sync"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
)

// Services holds the optional model-backed dependencies of the search pipeline.
// Either may be nil; the pipeline degrades instead of failing.
// Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	config *domain.RuntimeConfig

	embeddingService driven.EmbeddingService
	reranker         driven.Reranker
}

// NewServices creates a new Services registry
func NewServices(config *domain.RuntimeConfig) *Services {
	return &Services{
		config: config,
	}
}

// Config returns the runtime configuration
func (s *Services) Config() *domain.RuntimeConfig {
	return s.config
}

// EmbeddingService returns the current embedding service (may be nil)
func (s *Services) EmbeddingService() driven.EmbeddingService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddingService
}

// Reranker returns the current reranker (may be nil)
func (s *Services) Reranker() driven.Reranker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reranker
}

// SetEmbeddingService swaps the embedding service and closes the old one
func (s *Services) SetEmbeddingService(svc driven.EmbeddingService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
	}

	s.embeddingService = svc
	s.config.SetEmbeddingAvailable(svc != nil)
}

// SetReranker swaps the reranker
func (s *Services) SetReranker(r driven.Reranker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reranker = r
	s.config.SetRerankAvailable(r != nil)
}

// Close shuts down all services
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
		s.embeddingService = nil
	}
	s.reranker = nil

	s.config.SetEmbeddingAvailable(false)
	s.config.SetRerankAvailable(false)

	return nil
}

// ValidateAndSetEmbedding checks connectivity before installing the embedding service
func (s *Services) ValidateAndSetEmbedding(ctx context.Context, svc driven.EmbeddingService) error {
	if svc == nil {
		s.SetEmbeddingService(nil)
		return nil
	}

	if err := svc.HealthCheck(ctx); err != nil {
		_ = svc.Close()
		return err
	}

	s.SetEmbeddingService(svc)
	return nil
}
