package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.APIKeyStore = (*APIKeyStore)(nil)

// APIKeyStore implements driven.APIKeyStore using PostgreSQL
type APIKeyStore struct {
	db *DB
}

// NewAPIKeyStore creates a new APIKeyStore
func NewAPIKeyStore(db *DB) *APIKeyStore {
	return &APIKeyStore{db: db}
}

// GetByPrefix retrieves a key by its lookup prefix
func (s *APIKeyStore) GetByPrefix(ctx context.Context, prefix string) (*domain.APIKey, error) {
	query := `
		SELECT id, name, prefix, key_hash, organization_id, workspace_ids, actor_id, created_at, revoked_at
		FROM api_keys
		WHERE prefix = $1
	`

	var (
		key     domain.APIKey
		actorID sql.NullString
		revoked sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, prefix).Scan(
		&key.ID,
		&key.Name,
		&key.Prefix,
		&key.Hash,
		&key.OrganizationID,
		pq.Array(&key.WorkspaceIDs),
		&actorID,
		&key.CreatedAt,
		&revoked,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get api key: %w", err)
	}
	key.ActorID = actorID.String
	key.RevokedAt = TimePtr(revoked)
	return &key, nil
}

// Save stores a hashed key
func (s *APIKeyStore) Save(ctx context.Context, key *domain.APIKey) error {
	query := `
		INSERT INTO api_keys (id, name, prefix, key_hash, organization_id, workspace_ids, actor_id, created_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			workspace_ids = EXCLUDED.workspace_ids,
			revoked_at = EXCLUDED.revoked_at
	`
	workspaces := key.WorkspaceIDs
	if workspaces == nil {
		workspaces = []string{}
	}
	_, err := s.db.ExecContext(ctx, query,
		key.ID,
		key.Name,
		key.Prefix,
		key.Hash,
		key.OrganizationID,
		pq.Array(workspaces),
		nullString(key.ActorID),
		key.CreatedAt,
		NullTime(key.RevokedAt),
	)
	return err
}
