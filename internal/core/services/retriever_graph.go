package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
)

// maxGraphHops bounds the traversal depth
const maxGraphHops = 2

// hopWeights[h] weights an entity reached at hop h; seeds are hop 0
var hopWeights = [maxGraphHops + 1]float64{1.0, 1.0, 0.5}

// Ensure GraphRetriever implements Retriever
var _ Retriever = (*GraphRetriever)(nil)

// GraphRetriever resolves query mentions to entities and walks at most two
// hops over the intent's edge allowlist. Items linked to reached entities or
// evidencing traversed edges become candidates.
type GraphRetriever struct {
	store driven.GraphStore
	now   func() time.Time
}

// NewGraphRetriever creates a new GraphRetriever
func NewGraphRetriever(store driven.GraphStore, now func() time.Time) *GraphRetriever {
	if now == nil {
		now = time.Now
	}
	return &GraphRetriever{store: store, now: now}
}

func (r *GraphRetriever) Signal() domain.Signal {
	return domain.SignalGraph
}

// reach is how an entity or edge was first reached
type reach struct {
	hop    int
	conf   float64 // weakest confidence along the path
	parent string  // entity we came from
	via    string  // edge id used to arrive
}

func (x reach) score() float64 {
	return hopWeights[x.hop] * x.conf
}

func (r *GraphRetriever) Retrieve(ctx context.Context, q *domain.ResolvedQuery, target domain.ScopeTarget) (*domain.CandidateList, error) {
	list := &domain.CandidateList{Signal: domain.SignalGraph, Target: target}
	if len(q.EdgeTypes) == 0 {
		return list, nil
	}

	mentions := graphMentions(q.Text, q.Terms)
	seeds, err := r.store.ResolveEntities(ctx, target, mentions, false)
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		if seeds, err = r.store.ResolveEntities(ctx, target, mentions, true); err != nil {
			return nil, err
		}
	}

	traversal := domain.NewGraphTraversal()
	traversal.Seeds = seeds
	list.Traversal = traversal
	if len(seeds) == 0 {
		return list, nil
	}

	entities := make(map[string]reach)
	frontier := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if s.Entity == nil {
			continue
		}
		id := s.Entity.ID
		if prev, ok := entities[id]; ok && prev.conf >= s.Confidence {
			continue
		}
		if _, ok := entities[id]; !ok {
			frontier = append(frontier, id)
		}
		entities[id] = reach{hop: 0, conf: clamp01(s.Confidence)}
		traversal.Entities[id] = s.Entity
		traversal.Hops[id] = 0
	}

	edges, err := r.walk(ctx, q.EdgeTypes, target, frontier, entities, traversal)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(entities))
	for id := range entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	loaded, err := r.store.Entities(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, e := range loaded {
		traversal.Entities[e.ID] = e
	}

	edgeIDs := make([]string, 0, len(edges))
	for id := range edges {
		edgeIDs = append(edgeIDs, id)
	}
	sort.Strings(edgeIDs)

	links, err := r.store.LinkedItems(ctx, target, ids, edgeIDs, q.Limit)
	if err != nil {
		return nil, err
	}
	for _, link := range links {
		if link.Item == nil {
			continue
		}
		var x reach
		var entityID string
		switch {
		case link.EntityID != "":
			var ok bool
			if x, ok = entities[link.EntityID]; !ok {
				continue
			}
			entityID = link.EntityID
		case link.RelationshipID != "":
			var ok bool
			if x, ok = edges[link.RelationshipID]; !ok {
				continue
			}
			entityID = x.parent
		default:
			continue
		}

		path := pathEdges(entities, entityID)
		if link.RelationshipID != "" {
			path = append(path, link.RelationshipID)
		}
		list.Candidates = append(list.Candidates, domain.Candidate{
			Item:       link.Item,
			Score:      x.score(),
			RawScore:   x.score(),
			Confidence: x.conf,
			Evidence: domain.Evidence{
				ChunkIDs:  nonEmpty(link.Item.ChunkID),
				EntityIDs: pathEntities(entities, entityID),
				EdgeIDs:   path,
			},
		})
	}
	return list, nil
}

// walk expands the frontier breadth-first, one store round trip per hop.
// Edges that are hidden, expired or outside the allowlist are never crossed.
func (r *GraphRetriever) walk(
	ctx context.Context,
	allow []domain.EdgeType,
	target domain.ScopeTarget,
	frontier []string,
	entities map[string]reach,
	traversal *domain.GraphTraversal,
) (map[string]reach, error) {
	now := r.now()
	edges := make(map[string]reach)

	for hop := 1; hop <= maxGraphHops && len(frontier) > 0; hop++ {
		found, err := r.store.Neighbors(ctx, target, frontier, allow)
		if err != nil {
			return nil, err
		}
		sort.Slice(found, func(i, j int) bool { return found[i].ID < found[j].ID })

		inFrontier := make(map[string]bool, len(frontier))
		for _, id := range frontier {
			inFrontier[id] = true
		}

		var next []string
		for _, e := range found {
			if !e.Visible() || !e.ActiveAt(now) || !edgeAllowed(allow, e.Type) {
				continue
			}
			for _, from := range []string{e.From, e.To} {
				if !inFrontier[from] {
					continue
				}
				src := entities[from]
				arrived := reach{hop: hop, conf: minFloat(src.conf, clamp01(e.Confidence)), parent: from, via: e.ID}

				if prev, ok := edges[e.ID]; !ok || arrived.score() > prev.score() {
					edges[e.ID] = arrived
				}
				traversal.Edges[e.ID] = e

				to := e.Other(from)
				prev, seen := entities[to]
				switch {
				case !seen:
					entities[to] = arrived
					traversal.Hops[to] = hop
					next = append(next, to)
				case prev.hop == hop && arrived.conf > prev.conf:
					entities[to] = arrived
				}
			}
		}
		frontier = next
	}
	return edges, nil
}

// pathEntities lists the entities from a seed to id
func pathEntities(entities map[string]reach, id string) []string {
	var out []string
	for i := 0; id != "" && i <= maxGraphHops; i++ {
		out = append([]string{id}, out...)
		id = entities[id].parent
	}
	return out
}

// pathEdges lists the edges from a seed to id
func pathEdges(entities map[string]reach, id string) []string {
	var out []string
	for i := 0; id != "" && i <= maxGraphHops; i++ {
		x := entities[id]
		if x.via != "" {
			out = append([]string{x.via}, out...)
		}
		id = x.parent
	}
	return out
}

// graphMentions returns the phrases to resolve against the alias table:
// the full query, each bigram and each term.
func graphMentions(text string, terms []string) []string {
	words := tokenize(text)
	mentions := []string{strings.ToLower(strings.TrimSpace(text))}
	for i := 0; i+1 < len(words); i++ {
		mentions = append(mentions, words[i]+" "+words[i+1])
	}
	mentions = append(mentions, words...)
	for _, t := range terms {
		if !stopwords[t] {
			mentions = append(mentions, t)
		}
	}
	out := dedupe(mentions)
	filtered := out[:0]
	for _, m := range out {
		if m != "" && !stopwords[m] {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

func edgeAllowed(allow []domain.EdgeType, t domain.EdgeType) bool {
	for _, a := range allow {
		if a == t {
			return true
		}
	}
	return false
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
