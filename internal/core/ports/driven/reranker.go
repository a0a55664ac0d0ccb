package driven

import "context"

// Reranker scores query/passage pairs with a relevance model
type Reranker interface {
	// Rerank returns one relevance score in [0,1] per text, aligned by index
	Rerank(ctx context.Context, query string, texts []string) ([]float64, error)

	// Name identifies the model for logs and usage
	Name() string
}
