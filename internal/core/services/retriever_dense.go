package services

import (
	"context"
	"fmt"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
	"github.com/lightfastai/lightfast-search/internal/runtime"
)

// Ensure DenseRetriever implements Retriever
var _ Retriever = (*DenseRetriever)(nil)

// DenseRetriever runs nearest-neighbor search over the vector namespaces
// of the target. The embedding service is resolved per call since it can
// be swapped at runtime.
type DenseRetriever struct {
	index    driven.VectorIndex
	services *runtime.Services
}

// NewDenseRetriever creates a new DenseRetriever
func NewDenseRetriever(index driven.VectorIndex, services *runtime.Services) *DenseRetriever {
	return &DenseRetriever{index: index, services: services}
}

func (r *DenseRetriever) Signal() domain.Signal {
	return domain.SignalVector
}

func (r *DenseRetriever) Retrieve(ctx context.Context, q *domain.ResolvedQuery, target domain.ScopeTarget) (*domain.CandidateList, error) {
	list := &domain.CandidateList{Signal: domain.SignalVector, Target: target}
	if len(q.Families) == 0 {
		return list, nil
	}

	vector := q.Vector
	if len(vector) == 0 {
		var embedder driven.EmbeddingService
		if r.services != nil {
			embedder = r.services.EmbeddingService()
		}
		if embedder == nil {
			return nil, fmt.Errorf("%w: embedding service not configured", domain.ErrRetrieverUnavailable)
		}
		var err error
		vector, err = embedder.EmbedQuery(ctx, q.Text)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
	}

	for _, family := range q.Families {
		hits, err := r.index.Query(ctx, driven.VectorQuery{
			Namespace:      target.Namespace(family),
			OrganizationID: target.OrganizationID,
			Vector:         vector,
			TopK:           q.Limit,
			Filters:        q.Filters,
		})
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", family, err)
		}
		for _, hit := range hits {
			list.Candidates = append(list.Candidates, domain.Candidate{
				Item:     hit.Item,
				Score:    clamp01((hit.Score + 1) / 2),
				RawScore: hit.Score,
				Evidence: domain.Evidence{ChunkIDs: nonEmpty(hit.Item.ChunkID)},
			})
		}
	}
	return list, nil
}
