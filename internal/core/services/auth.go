package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driving"
)

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

// authService validates bearer credentials: API keys (lf_ prefix) or JWTs
type authService struct {
	keys        driven.APIKeyStore
	authAdapter driven.AuthAdapter
	now         func() time.Time
}

// NewAuthService creates a new AuthService. keys may be nil, in which case
// only JWTs are accepted.
func NewAuthService(keys driven.APIKeyStore, authAdapter driven.AuthAdapter) driving.AuthService {
	return &authService{
		keys:        keys,
		authAdapter: authAdapter,
		now:         time.Now,
	}
}

// Authenticate validates a JWT or API key and returns the auth context
func (s *authService) Authenticate(ctx context.Context, credential string) (*domain.AuthContext, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, domain.ErrUnauthorized
	}
	if strings.HasPrefix(credential, domain.APIKeyPrefix) {
		return s.authenticateKey(ctx, credential)
	}
	return s.authenticateToken(credential)
}

func (s *authService) authenticateKey(ctx context.Context, raw string) (*domain.AuthContext, error) {
	prefix, ok := domain.APIKeyLookupPrefix(raw)
	if !ok || s.keys == nil {
		return nil, domain.ErrTokenInvalid
	}

	key, err := s.keys.GetByPrefix(ctx, prefix)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("lookup api key: %w", err)
	}
	if key.IsRevoked() || !s.authAdapter.VerifyAPIKey(raw, key.Hash) {
		return nil, domain.ErrTokenInvalid
	}

	return &domain.AuthContext{
		Subject:        "apikey:" + key.ID,
		ActorID:        key.ActorID,
		OrganizationID: key.OrganizationID,
		WorkspaceIDs:   key.WorkspaceIDs,
		Method:         domain.AuthMethodAPIKey,
		KeyID:          key.ID,
	}, nil
}

func (s *authService) authenticateToken(token string) (*domain.AuthContext, error) {
	claims, err := s.authAdapter.ParseToken(token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}
	if claims.ExpiresAt > 0 && s.now().Unix() > claims.ExpiresAt {
		return nil, domain.ErrTokenExpired
	}
	if claims.Subject == "" || claims.OrganizationID == "" {
		return nil, domain.ErrTokenInvalid
	}

	actor := claims.ActorID
	if actor == "" {
		actor = claims.Subject
	}
	return &domain.AuthContext{
		Subject:        claims.Subject,
		ActorID:        actor,
		OrganizationID: claims.OrganizationID,
		WorkspaceIDs:   claims.WorkspaceIDs,
		Method:         domain.AuthMethodJWT,
	}, nil
}
