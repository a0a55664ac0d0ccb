package driven

import (
	"context"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
)

// MatchKind is the quality of a lexical match
type MatchKind string

const (
	MatchExact  MatchKind = "exact"
	MatchPrefix MatchKind = "prefix"
	MatchFuzzy  MatchKind = "fuzzy"
)

// LexicalQuery is a token/fuzzy lookup within one scope target
type LexicalQuery struct {
	Text       string
	Terms      []string
	Identifier bool
	Target     domain.ScopeTarget
	Filters    domain.Filters
	Limit      int
}

// LexicalHit is one lexical match.
// Coverage is the fraction of query terms found; Similarity is trigram similarity in [0,1].
type LexicalHit struct {
	Item       *domain.Item
	Match      MatchKind
	Coverage   float64
	Similarity float64
	Snippet    string
}

// LexicalIndex is a keyword/trigram index over retrievable items
type LexicalIndex interface {
	// Search returns matches ordered by match quality
	Search(ctx context.Context, query LexicalQuery) ([]LexicalHit, error)
}
