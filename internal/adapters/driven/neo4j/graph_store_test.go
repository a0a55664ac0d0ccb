package neo4j

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
)

type call struct {
	cypher string
	params map[string]any
}

// scripted returns a store whose queries are answered in order
func scripted(responses ...[]*neo4j.Record) (*GraphStore, *[]call) {
	calls := &[]call{}
	s := &GraphStore{}
	s.run = func(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
		*calls = append(*calls, call{cypher: cypher, params: params})
		if len(responses) == 0 {
			return nil, nil
		}
		next := responses[0]
		responses = responses[1:]
		return next, nil
	}
	return s, calls
}

func record(keys []string, values ...any) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}

var billingEntity = map[string]any{
	"id": "svc_billing", "workspace_id": "ws_123", "organization_id": "org_1",
	"kind": "service", "name": "billing-service", "aliases": []any{"billing", "billing-api"},
}

func TestResolveEntitiesExact(t *testing.T) {
	store, calls := scripted([]*neo4j.Record{
		record([]string{"entity", "mention"}, billingEntity, "billing"),
		record([]string{"entity", "mention"}, billingEntity, "billing-api"),
	})

	matches, err := store.ResolveEntities(context.Background(), domain.WorkspaceTarget("org_1", "ws_123"), []string{"Billing", "billing-API"}, true)
	require.NoError(t, err)
	require.Len(t, matches, 1, "duplicate entity matches collapse")
	assert.True(t, matches[0].Exact)
	assert.Equal(t, 1.0, matches[0].Confidence)
	assert.Equal(t, []string{"billing", "billing-api"}, matches[0].Entity.Aliases)

	require.Len(t, *calls, 1, "no fuzzy pass after an exact hit")
	assert.Equal(t, []string{"billing", "billing-api"}, (*calls)[0].params["mentions"])
	assert.Equal(t, "ws_123", (*calls)[0].params["workspaceId"])
	assert.Equal(t, "org_1", (*calls)[0].params["organizationId"])
	assert.Contains(t, (*calls)[0].cypher, "e.organization_id = $organizationId")
}

func TestResolveEntitiesFuzzyFallback(t *testing.T) {
	store, calls := scripted(nil, []*neo4j.Record{
		record([]string{"entity", "mention"}, billingEntity, "billing-svc"),
	})

	matches, err := store.ResolveEntities(context.Background(), domain.OrgTarget("org_1"), []string{"billing-svc"}, true)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.False(t, matches[0].Exact)
	assert.Equal(t, fuzzyConfidence, matches[0].Confidence)

	require.Len(t, *calls, 2)
	assert.Contains(t, (*calls)[1].cypher, "CONTAINS")
	assert.Equal(t, "org_1", (*calls)[1].params["organizationId"])
}

func TestResolveEntitiesNoFuzzy(t *testing.T) {
	store, calls := scripted(nil)

	matches, err := store.ResolveEntities(context.Background(), domain.OrgTarget("org_1"), []string{"nothing"}, false)
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Len(t, *calls, 1)
}

func TestNeighbors(t *testing.T) {
	keys := []string{"id", "type", "from", "to", "confidence", "detected_by", "since", "until", "evidence_ids"}
	since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store, calls := scripted([]*neo4j.Record{
		record(keys, "rel_owned", "OWNED_BY", "svc_billing", "team_billing", 0.9, "rule", since, nil, []any{"doc_1"}),
		record(keys, "rel_junk", "OWNED_BY", "svc_billing", "team_x", 0.3, "llm", nil, nil, []any{}),
		record(keys, "rel_member", "MEMBER_OF", "team_billing", "eng", int64(1), "manual", nil, nil, []any{}),
	})

	edges, err := store.Neighbors(context.Background(), domain.WorkspaceTarget("org_1", "ws_123"),
		[]string{"svc_billing"}, []domain.EdgeType{domain.EdgeOwnedBy, domain.EdgeMemberOf})
	require.NoError(t, err)
	require.Len(t, edges, 2, "discarded llm proposals are dropped")

	assert.Equal(t, "rel_owned", edges[0].ID)
	require.NotNil(t, edges[0].Since)
	assert.True(t, edges[0].Since.Equal(since))
	assert.Nil(t, edges[0].Until)
	assert.Equal(t, []string{"doc_1"}, edges[0].EvidenceIDs)
	assert.Equal(t, 1.0, edges[1].Confidence)

	assert.Equal(t, []string{"OWNED_BY", "MEMBER_OF"}, (*calls)[0].params["types"])
}

func TestNeighborsNoSeeds(t *testing.T) {
	store, calls := scripted()
	edges, err := store.Neighbors(context.Background(), domain.OrgTarget("org_1"), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, edges)
	assert.Empty(t, *calls)
}

func TestLinkedItems(t *testing.T) {
	occurred := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	item := map[string]any{
		"id": "doc_rota", "kind": "document", "workspace_id": "ws_123", "organization_id": "org_1",
		"title": "Payments rota", "body": "Weekly rota", "occurred_at": occurred,
		"significance": int64(55), "labels": []any{"oncall"}, "visibility": "org",
	}
	store, calls := scripted([]*neo4j.Record{
		record([]string{"item", "entity_id", "relationship_id"}, item, "", "rel_owned"),
	})

	links, err := store.LinkedItems(context.Background(), domain.WorkspaceTarget("org_1", "ws_123"), []string{"team_billing"}, []string{"rel_owned"}, 0)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "rel_owned", links[0].RelationshipID)
	assert.Empty(t, links[0].EntityID)
	assert.Equal(t, "Weekly rota", links[0].Item.Text)
	assert.Equal(t, 55, links[0].Item.Significance)
	assert.True(t, links[0].Item.OccurredAt.Equal(occurred))

	assert.Equal(t, 100, (*calls)[0].params["limit"])
	assert.Equal(t, 2, strings.Count((*calls)[0].cypher, "i.workspace_id = $workspaceId"))
	assert.Equal(t, 2, strings.Count((*calls)[0].cypher, "i.organization_id = $organizationId"))
}

func TestScopeWhere(t *testing.T) {
	params := map[string]any{}
	assert.Equal(t, "(r.workspace_id = $workspaceId AND r.organization_id = $organizationId)",
		scopeWhere("r", domain.WorkspaceTarget("org_1", "ws_123"), params))
	assert.Equal(t, map[string]any{"workspaceId": "ws_123", "organizationId": "org_1"}, params)

	bare := map[string]any{}
	assert.Equal(t, "r.workspace_id = $workspaceId", scopeWhere("r", domain.WorkspaceTarget("", "ws_123"), bare))
	assert.NotContains(t, bare, "organizationId")

	org := map[string]any{}
	assert.Equal(t, "r.organization_id = $organizationId", scopeWhere("r", domain.OrgTarget("org_1"), org))
}

func TestEntities(t *testing.T) {
	store, _ := scripted([]*neo4j.Record{record([]string{"entity"}, billingEntity)})

	entities, err := store.Entities(context.Background(), []string{"svc_billing"})
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "billing-service", entities[0].Name)
}

func TestQueryErrorsAreWrapped(t *testing.T) {
	boom := errors.New("session expired")
	store := &GraphStore{run: func(context.Context, string, map[string]any) ([]*neo4j.Record, error) {
		return nil, boom
	}}

	_, err := store.Neighbors(context.Background(), domain.OrgTarget("org_1"), []string{"x"}, nil)
	assert.ErrorIs(t, err, boom)
	_, err = store.ResolveEntities(context.Background(), domain.OrgTarget("org_1"), []string{"x"}, true)
	assert.ErrorIs(t, err, boom)
}

func TestHealthCheckWithoutDriver(t *testing.T) {
	store := &GraphStore{}
	assert.NoError(t, store.HealthCheck(context.Background()))
	assert.NoError(t, store.Close(context.Background()))
}
