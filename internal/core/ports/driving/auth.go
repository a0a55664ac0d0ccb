package driving

import (
	"context"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
)

// AuthService authenticates bearer credentials
type AuthService interface {
	// Authenticate validates a JWT or API key and returns the auth context
	Authenticate(ctx context.Context, credential string) (*domain.AuthContext, error)
}
