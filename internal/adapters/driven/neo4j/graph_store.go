package neo4j

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.GraphStore = (*GraphStore)(nil)

// fuzzyConfidence is the confidence reported for substring alias matches
const fuzzyConfidence = 0.6

// Config holds Neo4j connection configuration
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// runFunc executes a read query and returns every record
type runFunc func(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error)

// GraphStore implements driven.GraphStore over a Neo4j property graph:
//
//	(:Entity)-[:RELATES {type, confidence, detected_by, ...}]->(:Entity)
//	(:Item)-[:MENTIONS]->(:Entity)
//	(:Item {evidence_for: [relationship ids]})
type GraphStore struct {
	driver neo4j.DriverWithContext
	run    runFunc
}

// NewGraphStore connects to Neo4j and verifies connectivity
func NewGraphStore(ctx context.Context, cfg Config) (*GraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}

	database := cfg.Database
	s := &GraphStore{driver: driver}
	s.run = func(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
		opts := []neo4j.ExecuteQueryConfigurationOption{neo4j.ExecuteQueryWithReadersRouting()}
		if database != "" {
			opts = append(opts, neo4j.ExecuteQueryWithDatabase(database))
		}
		result, err := neo4j.ExecuteQuery(ctx, driver, cypher, params, neo4j.EagerResultTransformer, opts...)
		if err != nil {
			return nil, err
		}
		return result.Records, nil
	}
	return s, nil
}

// HealthCheck verifies the server is reachable
func (s *GraphStore) HealthCheck(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.VerifyConnectivity(ctx)
}

// Close releases the driver
func (s *GraphStore) Close(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

// scopeWhere restricts a node or relationship variable to the target.
// Workspace targets are pinned to their organization as well.
func scopeWhere(variable string, target domain.ScopeTarget, params map[string]any) string {
	if target.Level == domain.ScopeLevelOrg {
		params["organizationId"] = target.OrganizationID
		return variable + ".organization_id = $organizationId"
	}
	params["workspaceId"] = target.WorkspaceID
	if target.OrganizationID == "" {
		return variable + ".workspace_id = $workspaceId"
	}
	params["organizationId"] = target.OrganizationID
	return "(" + variable + ".workspace_id = $workspaceId AND " + variable + ".organization_id = $organizationId)"
}

// ResolveEntities matches mentions against entity names and aliases, case-insensitively.
// Substring matches are tried only when fuzzy is set and nothing matched exactly.
func (s *GraphStore) ResolveEntities(ctx context.Context, target domain.ScopeTarget, mentions []string, fuzzy bool) ([]domain.EntityMatch, error) {
	if len(mentions) == 0 {
		return nil, nil
	}
	lowered := make([]string, len(mentions))
	for i, m := range mentions {
		lowered[i] = strings.ToLower(m)
	}

	params := map[string]any{"mentions": lowered}
	cypher := `
		MATCH (e:Entity)
		WHERE ` + scopeWhere("e", target, params) + `
		WITH e, [n IN [e.name] + coalesce(e.aliases, []) | toLower(n)] AS names
		UNWIND $mentions AS m
		WITH e, m, names WHERE m IN names
		RETURN e {.*} AS entity, m AS mention
		ORDER BY e.id`

	matches, err := s.collectMatches(ctx, cypher, params, true)
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 || !fuzzy {
		return matches, nil
	}

	cypher = `
		MATCH (e:Entity)
		WHERE ` + scopeWhere("e", target, params) + `
		WITH e, [n IN [e.name] + coalesce(e.aliases, []) | toLower(n)] AS names
		UNWIND $mentions AS m
		WITH e, m, names WHERE size(m) >= 3 AND any(n IN names WHERE n CONTAINS m OR m CONTAINS n)
		RETURN e {.*} AS entity, m AS mention
		ORDER BY e.id`
	return s.collectMatches(ctx, cypher, params, false)
}

func (s *GraphStore) collectMatches(ctx context.Context, cypher string, params map[string]any, exact bool) ([]domain.EntityMatch, error) {
	records, err := s.run(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("resolve entities: %w", err)
	}

	confidence := fuzzyConfidence
	if exact {
		confidence = 1
	}
	seen := make(map[string]bool)
	var matches []domain.EntityMatch
	for _, rec := range records {
		props, _, err := neo4j.GetRecordValue[map[string]any](rec, "entity")
		if err != nil {
			return nil, fmt.Errorf("read entity: %w", err)
		}
		mention, _, err := neo4j.GetRecordValue[string](rec, "mention")
		if err != nil {
			return nil, fmt.Errorf("read mention: %w", err)
		}
		e := entityFromProps(props)
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		matches = append(matches, domain.EntityMatch{Entity: e, Mention: mention, Confidence: confidence, Exact: exact})
	}
	return matches, nil
}

// Neighbors returns edges of the allowed types touching any of the entities, in either direction
func (s *GraphStore) Neighbors(ctx context.Context, target domain.ScopeTarget, entityIDs []string, edgeTypes []domain.EdgeType) ([]*domain.Relationship, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}
	types := make([]string, len(edgeTypes))
	for i, t := range edgeTypes {
		types[i] = string(t)
	}

	params := map[string]any{"ids": entityIDs, "types": types}
	cypher := `
		MATCH (a:Entity)-[r:RELATES]-(:Entity)
		WHERE a.id IN $ids AND (size($types) = 0 OR r.type IN $types) AND ` + scopeWhere("r", target, params) + `
		RETURN DISTINCT r.id AS id, r.type AS type, startNode(r).id AS from, endNode(r).id AS to,
			r.confidence AS confidence, r.detected_by AS detected_by, r.since AS since, r.until AS until,
			coalesce(r.evidence_ids, []) AS evidence_ids
		ORDER BY id`

	records, err := s.run(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("query neighbors: %w", err)
	}

	var edges []*domain.Relationship
	for _, rec := range records {
		r := relationshipFromRecord(rec)
		if r.DetectedBy == domain.DetectedByLLM && domain.ReviewDecisionFor(r.Confidence) == domain.ReviewDiscard {
			continue
		}
		edges = append(edges, r)
	}
	return edges, nil
}

// Entities loads entities by id
func (s *GraphStore) Entities(ctx context.Context, ids []string) ([]*domain.Entity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	records, err := s.run(ctx, `MATCH (e:Entity) WHERE e.id IN $ids RETURN e {.*} AS entity ORDER BY e.id`, map[string]any{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}

	out := make([]*domain.Entity, 0, len(records))
	for _, rec := range records {
		props, _, err := neo4j.GetRecordValue[map[string]any](rec, "entity")
		if err != nil {
			return nil, fmt.Errorf("read entity: %w", err)
		}
		out = append(out, entityFromProps(props))
	}
	return out, nil
}

// LinkedItems returns items mentioning the entities or evidencing the relationships, newest first
func (s *GraphStore) LinkedItems(ctx context.Context, target domain.ScopeTarget, entityIDs, relationshipIDs []string, limit int) ([]domain.GraphLink, error) {
	if len(entityIDs) == 0 && len(relationshipIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}

	params := map[string]any{"entityIds": entityIDs, "relIds": relationshipIDs, "limit": limit}
	scope := scopeWhere("i", target, params)
	cypher := `
		CALL {
			MATCH (i:Item)-[:MENTIONS]->(e:Entity)
			WHERE e.id IN $entityIds AND ` + scope + `
			RETURN i, e.id AS entity_id, '' AS relationship_id
			UNION
			MATCH (i:Item)
			WHERE ` + scope + ` AND any(r IN coalesce(i.evidence_for, []) WHERE r IN $relIds)
			RETURN i, '' AS entity_id, [r IN i.evidence_for WHERE r IN $relIds][0] AS relationship_id
		}
		RETURN i {.*} AS item, entity_id, relationship_id
		ORDER BY i.occurred_at DESC, i.id
		LIMIT $limit`

	records, err := s.run(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("query linked items: %w", err)
	}

	links := make([]domain.GraphLink, 0, len(records))
	for _, rec := range records {
		props, _, err := neo4j.GetRecordValue[map[string]any](rec, "item")
		if err != nil {
			return nil, fmt.Errorf("read item: %w", err)
		}
		links = append(links, domain.GraphLink{
			Item:           itemFromProps(props),
			EntityID:       recordString(rec, "entity_id"),
			RelationshipID: recordString(rec, "relationship_id"),
		})
	}
	return links, nil
}

func recordString(rec *neo4j.Record, key string) string {
	v, _ := rec.Get(key)
	s, _ := v.(string)
	return s
}

func relationshipFromRecord(rec *neo4j.Record) *domain.Relationship {
	props := make(map[string]any, len(rec.Keys))
	for i, k := range rec.Keys {
		props[k] = rec.Values[i]
	}
	return &domain.Relationship{
		ID:          str(props, "id"),
		Type:        domain.EdgeType(str(props, "type")),
		From:        str(props, "from"),
		To:          str(props, "to"),
		Confidence:  num(props, "confidence"),
		DetectedBy:  domain.DetectedBy(str(props, "detected_by")),
		Since:       timePtr(props, "since"),
		Until:       timePtr(props, "until"),
		EvidenceIDs: strs(props, "evidence_ids"),
	}
}

func entityFromProps(props map[string]any) *domain.Entity {
	return &domain.Entity{
		ID:             str(props, "id"),
		WorkspaceID:    str(props, "workspace_id"),
		OrganizationID: str(props, "organization_id"),
		Kind:           str(props, "kind"),
		Name:           str(props, "name"),
		Aliases:        strs(props, "aliases"),
	}
}

func itemFromProps(props map[string]any) *domain.Item {
	item := &domain.Item{
		ID:             str(props, "id"),
		Kind:           domain.ItemKind(str(props, "kind")),
		ChunkID:        str(props, "chunk_id"),
		WorkspaceID:    str(props, "workspace_id"),
		OrganizationID: str(props, "organization_id"),
		Source:         str(props, "source"),
		Type:           str(props, "type"),
		Title:          str(props, "title"),
		Text:           str(props, "body"),
		Author:         str(props, "author"),
		ActorID:        str(props, "actor_id"),
		URL:            str(props, "url"),
		Significance:   int(num(props, "significance")),
		Labels:         strs(props, "labels"),
		Visibility:     domain.Visibility(str(props, "visibility")),
	}
	if t := timePtr(props, "occurred_at"); t != nil {
		item.OccurredAt = *t
	}
	return item
}

func str(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func num(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func strs(props map[string]any, key string) []string {
	raw, ok := props[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func timePtr(props map[string]any, key string) *time.Time {
	switch v := props[key].(type) {
	case time.Time:
		return &v
	case neo4j.LocalDateTime:
		t := v.Time()
		return &t
	}
	return nil
}
