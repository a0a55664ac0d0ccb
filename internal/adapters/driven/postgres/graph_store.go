package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.GraphStore = (*GraphStore)(nil)

// fuzzyAliasThreshold is the minimum trigram similarity for a fuzzy alias match
const fuzzyAliasThreshold = 0.3

// GraphStore implements driven.GraphStore over the entities, relationships
// and graph_links tables.
type GraphStore struct {
	db *DB
}

// NewGraphStore creates a new GraphStore
func NewGraphStore(db *DB) *GraphStore {
	return &GraphStore{db: db}
}

const entityColumns = `e.id, e.workspace_id, e.organization_id, e.kind, e.name, e.aliases`

func scanEntity(row rowScanner, extra ...any) (*domain.Entity, error) {
	var e domain.Entity
	dest := []any{&e.ID, &e.WorkspaceID, &e.OrganizationID, &e.Kind, &e.Name, pq.Array(&e.Aliases)}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &e, nil
}

// ResolveEntities matches mentions against entity names and aliases.
// Exact matches win; trigram matches are only tried when fuzzy is set and nothing matched exactly.
func (s *GraphStore) ResolveEntities(ctx context.Context, target domain.ScopeTarget, mentions []string, fuzzy bool) ([]domain.EntityMatch, error) {
	if len(mentions) == 0 {
		return nil, nil
	}

	var a args
	mentionsP := a.add(pq.Array(lowerAll(mentions)))
	query := `
		SELECT DISTINCT ON (e.id) ` + entityColumns + `, m.mention
		FROM entities e
		CROSS JOIN LATERAL unnest(array_prepend(e.name, e.aliases)) AS n(alias)
		JOIN unnest(` + mentionsP + `::text[]) AS m(mention) ON lower(n.alias) = m.mention
		WHERE ` + scopeClause("e", target, &a) + `
		ORDER BY e.id`

	matches, err := s.queryMatches(ctx, query, a, true)
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 || !fuzzy {
		return matches, nil
	}

	a = nil
	mentionsP = a.add(pq.Array(lowerAll(mentions)))
	thresholdP := a.add(fuzzyAliasThreshold)
	query = `
		SELECT DISTINCT ON (e.id) ` + entityColumns + `, m.mention, similarity(lower(n.alias), m.mention) AS sim
		FROM entities e
		CROSS JOIN LATERAL unnest(array_prepend(e.name, e.aliases)) AS n(alias)
		JOIN unnest(` + mentionsP + `::text[]) AS m(mention) ON similarity(lower(n.alias), m.mention) >= ` + thresholdP + `
		WHERE ` + scopeClause("e", target, &a) + `
		ORDER BY e.id, sim DESC`

	return s.queryMatches(ctx, query, a, false)
}

func (s *GraphStore) queryMatches(ctx context.Context, query string, a args, exact bool) ([]domain.EntityMatch, error) {
	rows, err := s.db.QueryContext(ctx, query, a...)
	if err != nil {
		return nil, fmt.Errorf("resolve entities: %w", err)
	}
	defer rows.Close()

	var matches []domain.EntityMatch
	for rows.Next() {
		var (
			mention string
			sim     float64
			e       *domain.Entity
		)
		if exact {
			e, err = scanEntity(rows, &mention)
			sim = 1
		} else {
			e, err = scanEntity(rows, &mention, &sim)
		}
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		matches = append(matches, domain.EntityMatch{Entity: e, Mention: mention, Confidence: clamp01(sim), Exact: exact})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].Entity.ID < matches[j].Entity.ID
	})
	return matches, nil
}

const relationshipColumns = `r.id, r.type, r.from_id, r.to_id, r.confidence, r.detected_by, r.since, r.until, r.evidence_ids`

func scanRelationship(row rowScanner) (*domain.Relationship, error) {
	var (
		r          domain.Relationship
		edgeType   string
		detectedBy string
		since      sql.NullTime
		until      sql.NullTime
	)
	if err := row.Scan(&r.ID, &edgeType, &r.From, &r.To, &r.Confidence, &detectedBy, &since, &until, pq.Array(&r.EvidenceIDs)); err != nil {
		return nil, err
	}
	r.Type = domain.EdgeType(edgeType)
	r.DetectedBy = domain.DetectedBy(detectedBy)
	r.Since = TimePtr(since)
	r.Until = TimePtr(until)
	return &r, nil
}

// Neighbors returns edges of the allowed types touching any of the entities.
// Discarded llm proposals never leave the store.
func (s *GraphStore) Neighbors(ctx context.Context, target domain.ScopeTarget, entityIDs []string, edgeTypes []domain.EdgeType) ([]*domain.Relationship, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}

	var a args
	idsP := a.add(pq.Array(entityIDs))
	where := []string{
		"(r.from_id = ANY(" + idsP + ") OR r.to_id = ANY(" + idsP + "))",
		scopeClause("r", target, &a),
	}
	if len(edgeTypes) > 0 {
		types := make([]string, len(edgeTypes))
		for i, t := range edgeTypes {
			types[i] = string(t)
		}
		where = append(where, "r.type = ANY("+a.add(pq.Array(types))+")")
	}

	query := `SELECT ` + relationshipColumns + ` FROM relationships r WHERE ` + strings.Join(where, " AND ") + ` ORDER BY r.id`
	rows, err := s.db.QueryContext(ctx, query, a...)
	if err != nil {
		return nil, fmt.Errorf("query neighbors: %w", err)
	}
	defer rows.Close()

	var edges []*domain.Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		if r.DetectedBy == domain.DetectedByLLM && domain.ReviewDecisionFor(r.Confidence) == domain.ReviewDiscard {
			continue
		}
		edges = append(edges, r)
	}
	return edges, rows.Err()
}

// Entities loads entities by id
func (s *GraphStore) Entities(ctx context.Context, ids []string) ([]*domain.Entity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+entityColumns+` FROM entities e WHERE e.id = ANY($1) ORDER BY e.id`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	var out []*domain.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LinkedItems returns items linked to the entities or evidencing the relationships, newest first
func (s *GraphStore) LinkedItems(ctx context.Context, target domain.ScopeTarget, entityIDs, relationshipIDs []string, limit int) ([]domain.GraphLink, error) {
	if len(entityIDs) == 0 && len(relationshipIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultLexicalLimit
	}

	var a args
	entitiesP := a.add(pq.Array(entityIDs))
	relsP := a.add(pq.Array(relationshipIDs))
	query := `
		SELECT ` + itemColumns + `, coalesce(l.entity_id, ''), coalesce(l.relationship_id, '')
		FROM graph_links l
		JOIN items i ON i.id = l.item_id
		WHERE (l.entity_id = ANY(` + entitiesP + `) OR l.relationship_id = ANY(` + relsP + `))
			AND ` + scopeClause("i", target, &a) + `
		ORDER BY i.occurred_at DESC, i.id
		LIMIT ` + a.add(limit)

	rows, err := s.db.QueryContext(ctx, query, a...)
	if err != nil {
		return nil, fmt.Errorf("query linked items: %w", err)
	}
	defer rows.Close()

	var links []domain.GraphLink
	for rows.Next() {
		var link domain.GraphLink
		item, err := scanItem(rows, &link.EntityID, &link.RelationshipID)
		if err != nil {
			return nil, fmt.Errorf("scan linked item: %w", err)
		}
		link.Item = item
		links = append(links, link)
	}
	return links, rows.Err()
}

// ErrEdgeRejected is returned when a proposed edge may not replace the stored one
var ErrEdgeRejected = errors.New("relationship update rejected")

// UpsertRelationship writes a proposed edge unless the stored edge for the
// same (type, from, to) outranks it. Rule edges are never overwritten by llm edges.
func (s *GraphStore) UpsertRelationship(ctx context.Context, workspaceID, organizationID string, proposed *domain.Relationship) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT `+relationshipColumns+`
			FROM relationships r
			WHERE r.type = $1 AND r.from_id = $2 AND r.to_id = $3
			FOR UPDATE`,
			string(proposed.Type), proposed.From, proposed.To,
		)
		existing, err := scanRelationship(row)
		if errors.Is(err, sql.ErrNoRows) {
			existing = nil
		} else if err != nil {
			return fmt.Errorf("load relationship: %w", err)
		}
		if !domain.CanReplace(existing, proposed) {
			return ErrEdgeRejected
		}

		id := proposed.ID
		if existing != nil {
			id = existing.ID
		}
		evidence := proposed.EvidenceIDs
		if evidence == nil {
			evidence = []string{}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO relationships (id, workspace_id, organization_id, type, from_id, to_id,
				confidence, detected_by, since, until, evidence_ids)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (type, from_id, to_id) DO UPDATE SET
				confidence = EXCLUDED.confidence,
				detected_by = EXCLUDED.detected_by,
				since = EXCLUDED.since,
				until = EXCLUDED.until,
				evidence_ids = EXCLUDED.evidence_ids`,
			id, workspaceID, organizationID, string(proposed.Type), proposed.From, proposed.To,
			proposed.Confidence, string(proposed.DetectedBy), NullTime(proposed.Since), NullTime(proposed.Until),
			pq.Array(evidence),
		)
		return err
	})
}
