package rerank

import (
	"context"
	"strings"
	"unicode"

	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Reranker = (*OverlapReranker)(nil)

// OverlapReranker is a local relevance model for installs without a
// cross-encoder. A passage scores the share of query tokens it contains,
// with a bonus when the whole query appears as a phrase.
type OverlapReranker struct{}

// NewOverlapReranker creates a new OverlapReranker
func NewOverlapReranker() *OverlapReranker {
	return &OverlapReranker{}
}

func (o *OverlapReranker) Rerank(ctx context.Context, query string, texts []string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryTokens := toTokenSet(query)
	phrase := strings.Join(splitAlphaNumLower(query), " ")

	scores := make([]float64, len(texts))
	for i, text := range texts {
		tokens := splitAlphaNumLower(text)
		overlap := tokenOverlap(queryTokens, tokens)
		phraseHit := 0.0
		if phrase != "" && strings.Contains(" "+strings.Join(tokens, " ")+" ", " "+phrase+" ") {
			phraseHit = 1
		}
		scores[i] = 0.8*overlap + 0.2*phraseHit
	}
	return scores, nil
}

func (o *OverlapReranker) Name() string {
	return "token-overlap"
}

func tokenOverlap(query map[string]struct{}, passage []string) float64 {
	if len(query) == 0 || len(passage) == 0 {
		return 0
	}
	found := make(map[string]struct{}, len(query))
	for _, tok := range passage {
		if _, ok := query[tok]; ok {
			found[tok] = struct{}{}
		}
	}
	return float64(len(found)) / float64(len(query))
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
