package driven

import (
	"context"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
)

// ProfileStore reads entity profile centroids. Read-only from retrieval.
type ProfileStore interface {
	// Get returns the profile of an entity.
	// Returns domain.ErrNotFound when the entity has no profile.
	Get(ctx context.Context, workspaceID, entityID string) (*domain.Profile, error)

	// Centroids returns the centroids of the given profiles.
	// Keys without a stored profile are absent from the result.
	Centroids(ctx context.Context, keys []domain.ProfileKey) (map[domain.ProfileKey][]float32, error)
}
