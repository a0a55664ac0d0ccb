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
var _ driven.ProfileStore = (*ProfileStore)(nil)

// ProfileStore implements driven.ProfileStore using PostgreSQL
type ProfileStore struct {
	db *DB
}

// NewProfileStore creates a new ProfileStore
func NewProfileStore(db *DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// Get returns the profile of an entity in a workspace
func (s *ProfileStore) Get(ctx context.Context, workspaceID, entityID string) (*domain.Profile, error) {
	query := `
		SELECT entity_id, workspace_id, centroid, updated_at
		FROM profiles
		WHERE workspace_id = $1 AND entity_id = $2
	`
	var p domain.Profile
	err := s.db.QueryRowContext(ctx, query, workspaceID, entityID).
		Scan(&p.EntityID, &p.WorkspaceID, pq.Array(&p.Centroid), &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

// Centroids returns the centroids of the given workspace profiles in one round trip
func (s *ProfileStore) Centroids(ctx context.Context, keys []domain.ProfileKey) (map[domain.ProfileKey][]float32, error) {
	if len(keys) == 0 {
		return map[domain.ProfileKey][]float32{}, nil
	}
	workspaces := make([]string, len(keys))
	entities := make([]string, len(keys))
	for i, k := range keys {
		workspaces[i] = k.WorkspaceID
		entities[i] = k.EntityID
	}

	query := `
		SELECT p.workspace_id, p.entity_id, p.centroid
		FROM profiles p
		JOIN unnest($1::text[], $2::text[]) AS k(workspace_id, entity_id)
			ON p.workspace_id = k.workspace_id AND p.entity_id = k.entity_id
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(workspaces), pq.Array(entities))
	if err != nil {
		return nil, fmt.Errorf("query profile centroids: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.ProfileKey][]float32, len(keys))
	for rows.Next() {
		var k domain.ProfileKey
		var centroid []float32
		if err := rows.Scan(&k.WorkspaceID, &k.EntityID, pq.Array(&centroid)); err != nil {
			return nil, fmt.Errorf("scan profile centroid: %w", err)
		}
		out[k] = centroid
	}
	return out, rows.Err()
}
