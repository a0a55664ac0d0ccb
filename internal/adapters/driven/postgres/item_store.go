package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ItemStore = (*ItemStore)(nil)

// itemColumns selects an item under the alias i, in scanItem order
const itemColumns = `i.id, i.kind, i.chunk_id, i.workspace_id, i.organization_id, i.source, i.type,
	i.title, i.body, i.author, i.actor_id, i.url, i.occurred_at, i.significance, i.labels, i.visibility`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanItem reads itemColumns followed by any extra destinations
func scanItem(row rowScanner, extra ...any) (*domain.Item, error) {
	var (
		item    domain.Item
		kind    string
		vis     string
		chunkID sql.NullString
		actorID sql.NullString
		url     sql.NullString
	)
	dest := []any{
		&item.ID, &kind, &chunkID, &item.WorkspaceID, &item.OrganizationID, &item.Source, &item.Type,
		&item.Title, &item.Text, &item.Author, &actorID, &url, &item.OccurredAt, &item.Significance,
		pq.Array(&item.Labels), &vis,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	item.Kind = domain.ItemKind(kind)
	item.Visibility = domain.Visibility(vis)
	item.ChunkID = chunkID.String
	item.ActorID = actorID.String
	item.URL = url.String
	return &item, nil
}

// ItemStore implements driven.ItemStore using PostgreSQL
type ItemStore struct {
	db *DB
}

// NewItemStore creates a new ItemStore
func NewItemStore(db *DB) *ItemStore {
	return &ItemStore{db: db}
}

// GetItems hydrates items by id. Unknown ids are omitted.
func (s *ItemStore) GetItems(ctx context.Context, ids []string) (map[string]*domain.Item, error) {
	out := make(map[string]*domain.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `SELECT ` + itemColumns + ` FROM items i WHERE i.id = ANY($1)`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out[item.ID] = item
	}
	return out, rows.Err()
}

// Save creates or updates an item
func (s *ItemStore) Save(ctx context.Context, item *domain.Item) error {
	query := `
		INSERT INTO items (id, kind, chunk_id, workspace_id, organization_id, source, type,
			title, body, author, actor_id, url, occurred_at, significance, labels, visibility)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			chunk_id = EXCLUDED.chunk_id,
			source = EXCLUDED.source,
			type = EXCLUDED.type,
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			author = EXCLUDED.author,
			actor_id = EXCLUDED.actor_id,
			url = EXCLUDED.url,
			occurred_at = EXCLUDED.occurred_at,
			significance = EXCLUDED.significance,
			labels = EXCLUDED.labels,
			visibility = EXCLUDED.visibility
	`
	visibility := item.Visibility
	if visibility == "" {
		visibility = domain.VisibilityOrg
	}
	labels := item.Labels
	if labels == nil {
		labels = []string{}
	}

	_, err := s.db.ExecContext(ctx, query,
		item.ID,
		string(item.Kind),
		nullString(item.ChunkID),
		item.WorkspaceID,
		item.OrganizationID,
		item.Source,
		item.Type,
		item.Title,
		item.Text,
		item.Author,
		nullString(item.ActorID),
		nullString(item.URL),
		item.OccurredAt,
		item.Significance,
		pq.Array(labels),
		string(visibility),
	)
	return err
}
