package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
)

const testKey = "lf_ab12cd34_s3cr3tv4lu3thatisl0ngenough"

func validClaims() *domain.TokenClaims {
	now := time.Now()
	return &domain.TokenClaims{
		Subject:        "user-123",
		ActorID:        "actor-9",
		OrganizationID: "org-1",
		WorkspaceIDs:   []string{"ws-1", "ws-2"},
		IssuedAt:       now.Unix(),
		ExpiresAt:      now.Add(time.Hour).Unix(),
	}
}

func TestNewAdapter(t *testing.T) {
	adapter := NewAdapter("test-secret")
	if adapter == nil {
		t.Fatal("expected non-nil adapter")
	}
	if string(adapter.jwtSecret) != "test-secret" {
		t.Error("expected jwt secret to be set")
	}
}

func TestNewAdapterWithCost(t *testing.T) {
	adapter := NewAdapterWithCost("test-secret", 4)
	if adapter.bcryptCost != 4 {
		t.Errorf("expected bcrypt cost 4, got %d", adapter.bcryptCost)
	}
}

func TestHashAPIKey(t *testing.T) {
	adapter := NewAdapterWithCost("secret", 4) // Low cost for faster tests

	hash, err := adapter.HashAPIKey(testKey)
	if err != nil {
		t.Fatalf("failed to hash key: %v", err)
	}
	if hash == "" || hash == testKey {
		t.Error("hash should be non-empty and differ from the raw key")
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("expected bcrypt hash, got %q", hash)
	}

	again, _ := adapter.HashAPIKey(testKey)
	if again == hash {
		t.Error("expected different hashes for the same key (due to salt)")
	}
}

func TestVerifyAPIKey(t *testing.T) {
	adapter := NewAdapterWithCost("secret", 4)
	hash, _ := adapter.HashAPIKey(testKey)

	if !adapter.VerifyAPIKey(testKey, hash) {
		t.Error("expected key to verify")
	}
	if adapter.VerifyAPIKey(testKey+"x", hash) {
		t.Error("expected altered key to fail")
	}
	if adapter.VerifyAPIKey(testKey, "not-a-bcrypt-hash") {
		t.Error("expected invalid hash to fail")
	}
}

func TestGenerateAndParseToken(t *testing.T) {
	adapter := NewAdapter("test-jwt-secret")
	original := validClaims()

	token, err := adapter.GenerateToken(original)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("expected JWT with 3 parts, got %q", token)
	}

	parsed, err := adapter.ParseToken(token)
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}
	if parsed.Subject != original.Subject {
		t.Errorf("expected Subject %s, got %s", original.Subject, parsed.Subject)
	}
	if parsed.ActorID != original.ActorID {
		t.Errorf("expected ActorID %s, got %s", original.ActorID, parsed.ActorID)
	}
	if parsed.OrganizationID != original.OrganizationID {
		t.Errorf("expected OrganizationID %s, got %s", original.OrganizationID, parsed.OrganizationID)
	}
	if len(parsed.WorkspaceIDs) != 2 || parsed.WorkspaceIDs[1] != "ws-2" {
		t.Errorf("unexpected WorkspaceIDs %v", parsed.WorkspaceIDs)
	}
	if parsed.ExpiresAt != original.ExpiresAt || parsed.IssuedAt != original.IssuedAt {
		t.Errorf("timestamps not preserved: %+v", parsed)
	}
}

func TestParseToken_ExpiredToken(t *testing.T) {
	adapter := NewAdapter("test-jwt-secret")

	claims := validClaims()
	past := time.Now().Add(-2 * time.Hour)
	claims.IssuedAt = past.Add(-time.Hour).Unix()
	claims.ExpiresAt = past.Unix()

	token, _ := adapter.GenerateToken(claims)

	_, err := adapter.ParseToken(token)
	if !errors.Is(err, domain.ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, _ := NewAdapter("secret-1").GenerateToken(validClaims())

	_, err := NewAdapter("secret-2").ParseToken(token)
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseToken_RejectsNoneAlgorithm(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-123", "org_id": "org-1"})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}

	if _, err := NewAdapter("secret").ParseToken(token); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseToken_MalformedToken(t *testing.T) {
	adapter := NewAdapter("test-secret")

	testCases := []string{
		"",
		"not-a-jwt",
		"invalid.token.here",
		"header.payload", // missing signature
	}

	for _, tc := range testCases {
		_, err := adapter.ParseToken(tc)
		if !errors.Is(err, domain.ErrTokenInvalid) {
			t.Errorf("expected ErrTokenInvalid for %q, got %v", tc, err)
		}
	}
}

// Benchmark tests
func BenchmarkVerifyAPIKey(b *testing.B) {
	adapter := NewAdapterWithCost("secret", 4)
	hash, _ := adapter.HashAPIKey(testKey)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		adapter.VerifyAPIKey(testKey, hash)
	}
}

func BenchmarkParseToken(b *testing.B) {
	adapter := NewAdapter("secret")
	token, _ := adapter.GenerateToken(validClaims())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = adapter.ParseToken(token)
	}
}
