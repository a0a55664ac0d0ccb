package driving

import (
	"context"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
)

// SearchService runs the hybrid retrieval and ranking pipeline
type SearchService interface {
	// Search ranks items for a natural-language query
	Search(ctx context.Context, req *domain.SearchRequest) (*domain.SearchResponse, error)

	// Similar ranks items near a stored chunk or document embedding
	Similar(ctx context.Context, req *domain.SimilarRequest) (*domain.SearchResponse, error)
}
