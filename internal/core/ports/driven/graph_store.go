package driven

import (
	"context"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
)

// GraphStore provides alias resolution and adjacency lookup over the entity graph
type GraphStore interface {
	// ResolveEntities matches query mentions against entity aliases.
	// When fuzzy is false only exact (case-insensitive) alias matches are returned.
	ResolveEntities(ctx context.Context, target domain.ScopeTarget, mentions []string, fuzzy bool) ([]domain.EntityMatch, error)

	// Neighbors returns edges of the allowed types touching any of the entities, in either direction
	Neighbors(ctx context.Context, target domain.ScopeTarget, entityIDs []string, edgeTypes []domain.EdgeType) ([]*domain.Relationship, error)

	// Entities loads entities by id
	Entities(ctx context.Context, ids []string) ([]*domain.Entity, error)

	// LinkedItems returns items linked to the entities or evidencing the relationships
	LinkedItems(ctx context.Context, target domain.ScopeTarget, entityIDs, relationshipIDs []string, limit int) ([]domain.GraphLink, error)
}
