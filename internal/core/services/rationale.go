package services

import (
	"sort"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
)

// RationaleSet is the response-level rationale plus per-result subgraphs
type RationaleSet struct {
	Response *domain.Rationale
	Hits     map[string]*domain.HitRationale
}

// BuildRationale explains graph-influenced results. Only entities and edges
// the graph retriever actually walked are shown, and only edges whose
// confidence and detection source make them visible.
func BuildRationale(results []*domain.RetrievalResult, traversals []*domain.GraphTraversal, routerMode domain.RouterState) RationaleSet {
	entities := make(map[string]*domain.Entity)
	edges := make(map[string]*domain.Relationship)
	hops := make(map[string]int)
	for _, t := range traversals {
		if t == nil {
			continue
		}
		for id, e := range t.Entities {
			entities[id] = e
		}
		for id, e := range t.Edges {
			if e.Visible() {
				edges[id] = e
			}
		}
		for id, h := range t.Hops {
			if prev, ok := hops[id]; !ok || h < prev {
				hops[id] = h
			}
		}
	}

	set := RationaleSet{
		Response: &domain.Rationale{RouterMode: routerMode},
		Hits:     make(map[string]*domain.HitRationale),
	}

	usedEntities := make(map[string]bool)
	usedEdges := make(map[string]bool)
	usedChunks := make(map[string]bool)
	for _, r := range results {
		if r.Scores.Graph == 0 {
			continue
		}
		hit := &domain.HitRationale{GraphConfidence: r.GraphConfidence}
		for _, id := range r.Evidence.EdgeIDs {
			e, ok := edges[id]
			if !ok {
				continue
			}
			hit.Edges = append(hit.Edges, id)
			usedEdges[id] = true
			for _, end := range []string{e.From, e.To} {
				if _, ok := entities[end]; ok {
					usedEntities[end] = true
				}
			}
		}
		for _, id := range r.Evidence.EntityIDs {
			if _, ok := entities[id]; !ok {
				continue
			}
			hit.Entities = append(hit.Entities, id)
			usedEntities[id] = true
		}
		hit.Evidence = r.Evidence.ChunkIDs
		if len(hit.Evidence) == 0 {
			hit.Evidence = []string{r.Item.ID}
		}
		for _, c := range hit.Evidence {
			usedChunks[c] = true
		}
		set.Hits[r.Item.ID] = hit
	}

	if len(set.Hits) == 0 {
		return set
	}

	graph := &domain.GraphRationale{
		Entities:       make([]domain.RationaleEntity, 0, len(usedEntities)),
		Edges:          make([]domain.RationaleEdge, 0, len(usedEdges)),
		EvidenceChunks: make([]string, 0, len(usedChunks)),
	}
	for id := range usedEntities {
		e := entities[id]
		graph.Entities = append(graph.Entities, domain.RationaleEntity{ID: id, Name: e.Name, Kind: e.Kind, Hop: hops[id]})
	}
	sort.Slice(graph.Entities, func(i, j int) bool {
		if graph.Entities[i].Hop != graph.Entities[j].Hop {
			return graph.Entities[i].Hop < graph.Entities[j].Hop
		}
		return graph.Entities[i].ID < graph.Entities[j].ID
	})
	for id := range usedEdges {
		e := edges[id]
		graph.Edges = append(graph.Edges, domain.RationaleEdge{
			ID:         id,
			Type:       e.Type,
			From:       e.From,
			To:         e.To,
			Confidence: e.Confidence,
			DetectedBy: e.DetectedBy,
		})
	}
	sort.Slice(graph.Edges, func(i, j int) bool { return graph.Edges[i].ID < graph.Edges[j].ID })
	for id := range usedChunks {
		graph.EvidenceChunks = append(graph.EvidenceChunks, id)
	}
	sort.Strings(graph.EvidenceChunks)

	set.Response.Graph = graph
	return set
}
