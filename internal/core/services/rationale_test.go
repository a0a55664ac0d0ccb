package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
)

func rationaleTraversal() *domain.GraphTraversal {
	tr := domain.NewGraphTraversal()
	tr.Entities["svc"] = &domain.Entity{ID: "svc", Name: "billing-service", Kind: "service"}
	tr.Entities["team"] = &domain.Entity{ID: "team", Name: "payments", Kind: "team"}
	tr.Entities["person"] = &domain.Entity{ID: "person", Name: "ada", Kind: "person"}
	tr.Hops["svc"] = 0
	tr.Hops["team"] = 1
	tr.Hops["person"] = 1
	tr.Edges["e_owned"] = &domain.Relationship{ID: "e_owned", Type: domain.EdgeOwnedBy, From: "svc", To: "team", Confidence: 0.9, DetectedBy: domain.DetectedByRule}
	tr.Edges["e_llm"] = &domain.Relationship{ID: "e_llm", Type: domain.EdgeAuthoredBy, From: "svc", To: "person", Confidence: 0.65, DetectedBy: domain.DetectedByLLM}
	return tr
}

func TestBuildRationale(t *testing.T) {
	results := []*domain.RetrievalResult{
		{
			Item:            &domain.Item{ID: "doc_rota"},
			Scores:          domain.SignalScores{Graph: 0.9},
			GraphConfidence: 0.9,
			Evidence: domain.Evidence{
				ChunkIDs:  []string{"chk_2", "chk_1"},
				EntityIDs: []string{"svc", "team"},
				EdgeIDs:   []string{"e_owned"},
			},
		},
		{
			Item:            &domain.Item{ID: "doc_hidden"},
			Scores:          domain.SignalScores{Graph: 0.5},
			GraphConfidence: 0.65,
			Evidence:        domain.Evidence{EntityIDs: []string{"svc"}, EdgeIDs: []string{"e_llm"}},
		},
		{
			Item:   &domain.Item{ID: "doc_lexical"},
			Scores: domain.SignalScores{Lexical: 0.9},
		},
	}

	set := BuildRationale(results, []*domain.GraphTraversal{rationaleTraversal(), nil}, domain.RouterWorkspace)

	require.NotNil(t, set.Response)
	assert.Equal(t, domain.RouterWorkspace, set.Response.RouterMode)
	require.NotNil(t, set.Response.Graph)

	graph := set.Response.Graph
	require.Len(t, graph.Edges, 1, "llm edges under review are never shown")
	assert.Equal(t, "e_owned", graph.Edges[0].ID)
	assert.Equal(t, domain.DetectedByRule, graph.Edges[0].DetectedBy)

	var entityIDs []string
	for _, e := range graph.Entities {
		entityIDs = append(entityIDs, e.ID)
	}
	assert.Equal(t, []string{"svc", "team"}, entityIDs, "entities behind hidden edges stay out")
	assert.Equal(t, []string{"chk_1", "chk_2", "doc_hidden"}, graph.EvidenceChunks)

	rota := set.Hits["doc_rota"]
	require.NotNil(t, rota)
	assert.Equal(t, []string{"e_owned"}, rota.Edges)
	assert.Equal(t, 0.9, rota.GraphConfidence)

	hidden := set.Hits["doc_hidden"]
	require.NotNil(t, hidden)
	assert.Empty(t, hidden.Edges)
	assert.Equal(t, []string{"doc_hidden"}, hidden.Evidence)

	assert.NotContains(t, set.Hits, "doc_lexical")
}

func TestBuildRationale_NoGraphResults(t *testing.T) {
	set := BuildRationale([]*domain.RetrievalResult{
		{Item: &domain.Item{ID: "doc_1"}, Scores: domain.SignalScores{Lexical: 1}},
	}, nil, domain.RouterOrgFallback)

	require.NotNil(t, set.Response)
	assert.Equal(t, domain.RouterOrgFallback, set.Response.RouterMode)
	assert.Nil(t, set.Response.Graph)
	assert.Empty(t, set.Hits)
}
