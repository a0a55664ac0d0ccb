package driven

import (
	"context"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
)

// APIKeyStore looks up hashed API keys
type APIKeyStore interface {
	// GetByPrefix returns the key with the given lookup prefix.
	// Returns domain.ErrNotFound when no key matches.
	GetByPrefix(ctx context.Context, prefix string) (*domain.APIKey, error)
}
