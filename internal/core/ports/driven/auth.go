package driven

import "github.com/lightfastai/lightfast-search/internal/core/domain"

// AuthAdapter handles authentication cryptographic operations.
// This does NOT handle storage - use APIKeyStore for key persistence.
type AuthAdapter interface {
	// API key operations
	HashAPIKey(raw string) (string, error)
	VerifyAPIKey(raw, hash string) bool

	// Token operations
	GenerateToken(claims *domain.TokenClaims) (string, error)
	ParseToken(token string) (*domain.TokenClaims, error)
}
