package driven

import (
	"context"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
)

// VectorQuery is a nearest-neighbor lookup in one namespace
type VectorQuery struct {
	Namespace      string
	// OrganizationID, when set, must match every hit's organization
	OrganizationID string
	Vector         []float32
	TopK           int
	Filters        domain.Filters
}

// VectorHit is one neighbor. Score is cosine similarity in [-1,1].
type VectorHit struct {
	Item  *domain.Item
	Score float64
}

// VectorIndex is a nearest-neighbor index partitioned by namespace
type VectorIndex interface {
	// Query returns the nearest items to the vector
	Query(ctx context.Context, query VectorQuery) ([]VectorHit, error)

	// Fetch returns the stored vector of an item.
	// Returns domain.ErrNotFound when the id is unknown in the namespace.
	Fetch(ctx context.Context, namespace, id string) ([]float32, error)

	// HealthCheck verifies the index is reachable
	HealthCheck(ctx context.Context) error
}
