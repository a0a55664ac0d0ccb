package driven

import (
	"context"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
)

// ItemStore hydrates item ids into display metadata
type ItemStore interface {
	// GetItems returns the items found, keyed by id. Missing ids are omitted.
	GetItems(ctx context.Context, ids []string) (map[string]*domain.Item, error)
}
