package driven

import (
	"context"
)

// EmbeddingService generates query embeddings for the dense retriever
type EmbeddingService interface {
	// EmbedQuery generates an embedding for a search query.
	// May use different model/parameters optimized for queries
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// Dimensions returns the embedding dimension size
	Dimensions() int

	// Model returns the model name being used
	Model() string

	// HealthCheck verifies the embedding service is available
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the embedding service
	Close() error
}
