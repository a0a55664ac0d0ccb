package domain

import (
	"strings"
	"time"
)

// APIKeyPrefix marks bearer credentials that are API keys rather than JWTs
const APIKeyPrefix = "lf_"

// AuthMethod is how a caller authenticated
type AuthMethod string

const (
	AuthMethodJWT    AuthMethod = "jwt"
	AuthMethodAPIKey AuthMethod = "api_key"
)

// AuthContext contains the authenticated principal for request context
type AuthContext struct {
	Subject        string     `json:"subject"`
	ActorID        string     `json:"actor_id,omitempty"`
	OrganizationID string     `json:"organization_id"`
	WorkspaceIDs   []string   `json:"workspace_ids,omitempty"`
	Method         AuthMethod `json:"method"`
	KeyID          string     `json:"key_id,omitempty"`
}

// Allows reports whether the principal may query the given tenancy.
// An empty WorkspaceIDs list grants every workspace in the organization.
func (a *AuthContext) Allows(organizationID, workspaceID string) bool {
	if organizationID != "" && organizationID != a.OrganizationID {
		return false
	}
	if workspaceID == "" || len(a.WorkspaceIDs) == 0 {
		return true
	}
	for _, ws := range a.WorkspaceIDs {
		if ws == workspaceID {
			return true
		}
	}
	return false
}

// PrincipalKey identifies the caller for rate limiting
func (a *AuthContext) PrincipalKey() string {
	if a.KeyID != "" {
		return "key:" + a.KeyID
	}
	return "sub:" + a.Subject
}

// TokenClaims represents the JWT token payload
type TokenClaims struct {
	Subject        string   `json:"sub"`
	ActorID        string   `json:"actor_id,omitempty"`
	OrganizationID string   `json:"org_id"`
	WorkspaceIDs   []string `json:"workspace_ids,omitempty"`
	IssuedAt       int64    `json:"iat"`
	ExpiresAt      int64    `json:"exp"`
}

// APIKey is a stored, hashed API credential
type APIKey struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Prefix         string     `json:"prefix"`
	Hash           string     `json:"-"`
	OrganizationID string     `json:"organization_id"`
	WorkspaceIDs   []string   `json:"workspace_ids,omitempty"`
	ActorID        string     `json:"actor_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
}

// IsRevoked reports whether the key was revoked
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// APIKeyLookupPrefix returns the indexed prefix of a raw key.
// Keys look like lf_<8 char id>_<secret>.
func APIKeyLookupPrefix(raw string) (string, bool) {
	if !strings.HasPrefix(raw, APIKeyPrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(raw, APIKeyPrefix)
	idx := strings.Index(rest, "_")
	if idx <= 0 || idx == len(rest)-1 {
		return "", false
	}
	return APIKeyPrefix + rest[:idx], true
}
