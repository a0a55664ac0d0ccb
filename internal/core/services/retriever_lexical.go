package services

import (
	"context"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
)

// Lexical score bands. Bands do not overlap so exact > prefix > fuzzy.
const (
	lexicalExactBase  = 0.80
	lexicalPrefixBase = 0.55
	lexicalCoverage   = 0.20
	lexicalFuzzyScale = 0.50
)

// Ensure LexicalRetriever implements Retriever
var _ Retriever = (*LexicalRetriever)(nil)

// LexicalRetriever matches query terms against the keyword/trigram index
type LexicalRetriever struct {
	index driven.LexicalIndex
}

// NewLexicalRetriever creates a new LexicalRetriever
func NewLexicalRetriever(index driven.LexicalIndex) *LexicalRetriever {
	return &LexicalRetriever{index: index}
}

func (r *LexicalRetriever) Signal() domain.Signal {
	return domain.SignalLexical
}

func (r *LexicalRetriever) Retrieve(ctx context.Context, q *domain.ResolvedQuery, target domain.ScopeTarget) (*domain.CandidateList, error) {
	hits, err := r.index.Search(ctx, driven.LexicalQuery{
		Text:       q.Text,
		Terms:      q.Terms,
		Identifier: q.Identifier,
		Target:     target,
		Filters:    q.Filters,
		Limit:      q.Limit,
	})
	if err != nil {
		return nil, err
	}

	list := &domain.CandidateList{Signal: domain.SignalLexical, Target: target}
	for _, hit := range hits {
		score, raw := lexicalScore(hit)
		if score <= 0 {
			continue
		}
		list.Candidates = append(list.Candidates, domain.Candidate{
			Item:     hit.Item,
			Score:    score,
			RawScore: raw,
			Evidence: domain.Evidence{
				ChunkIDs: nonEmpty(hit.Item.ChunkID),
				Snippet:  hit.Snippet,
			},
		})
	}
	return list, nil
}

// lexicalScore maps a hit to its band and returns the normalized and raw scores
func lexicalScore(hit driven.LexicalHit) (float64, float64) {
	coverage := clamp01(hit.Coverage)
	switch hit.Match {
	case driven.MatchExact:
		return lexicalExactBase + lexicalCoverage*coverage, coverage
	case driven.MatchPrefix:
		return lexicalPrefixBase + lexicalCoverage*coverage, coverage
	case driven.MatchFuzzy:
		sim := clamp01(hit.Similarity)
		return lexicalFuzzyScale * sim, sim
	}
	return 0, 0
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
