package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.LexicalIndex = (*LexicalIndex)(nil)

const defaultLexicalLimit = 100

// LexicalIndex implements driven.LexicalIndex with Postgres full text search
// for exact and prefix token matches and pg_trgm for fuzzy title matches.
type LexicalIndex struct {
	db *DB
}

// NewLexicalIndex creates a new LexicalIndex
func NewLexicalIndex(db *DB) *LexicalIndex {
	return &LexicalIndex{db: db}
}

// Search returns matches ordered by match quality: identifier hits, then
// exact term coverage, then prefix coverage, then trigram similarity.
func (x *LexicalIndex) Search(ctx context.Context, q driven.LexicalQuery) ([]driven.LexicalHit, error) {
	terms := q.Terms
	if len(terms) == 0 {
		terms = strings.Fields(strings.ToLower(q.Text))
	}
	if len(terms) == 0 {
		return nil, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLexicalLimit
	}

	var a args
	termsP := a.add(pq.Array(terms))
	textP := a.add(q.Text)
	identP := a.add(q.Identifier)
	where := append([]string{scopeClause("i", q.Target, &a)}, filterClauses("i", q.Filters, &a)...)

	query := `
		SELECT ` + itemColumns + `, m.exact_terms, m.prefix_terms, m.ident, m.sim,
			ts_headline('simple', i.body, plainto_tsquery('simple', ` + textP + `), 'MaxFragments=1, MaxWords=30, MinWords=10') AS snippet
		FROM items i
		CROSS JOIN LATERAL (
			SELECT
				(SELECT count(*) FROM unnest(` + termsP + `::text[]) t
					WHERE i.search_vector @@ to_tsquery('simple', quote_literal(t))) AS exact_terms,
				(SELECT count(*) FROM unnest(` + termsP + `::text[]) t
					WHERE i.search_vector @@ to_tsquery('simple', quote_literal(t) || ':*')) AS prefix_terms,
				(` + identP + `::boolean AND strpos(lower(i.title || ' ' || i.body), lower(` + textP + `)) > 0) AS ident,
				similarity(i.title, ` + textP + `) AS sim
		) m
		WHERE ` + strings.Join(where, " AND ") + `
			AND (m.prefix_terms > 0 OR m.ident OR i.title % ` + textP + `)
		ORDER BY m.ident DESC, m.exact_terms DESC, m.prefix_terms DESC, m.sim DESC, i.occurred_at DESC, i.id
		LIMIT ` + a.add(limit)

	rows, err := x.db.QueryContext(ctx, query, a...)
	if err != nil {
		return nil, fmt.Errorf("lexical query: %w", err)
	}
	defer rows.Close()

	var hits []driven.LexicalHit
	for rows.Next() {
		var (
			exact, prefix int
			ident         bool
			sim           float64
			snippet       sql.NullString
		)
		item, err := scanItem(rows, &exact, &prefix, &ident, &sim, &snippet)
		if err != nil {
			return nil, fmt.Errorf("scan lexical hit: %w", err)
		}
		hits = append(hits, classifyMatch(item, len(terms), exact, prefix, ident, sim, snippet.String))
	}
	return hits, rows.Err()
}

// classifyMatch turns per-row match counts into a single match kind.
// prefix counts include exact terms, so it is only consulted when nothing matched exactly.
func classifyMatch(item *domain.Item, termCount, exact, prefix int, ident bool, sim float64, snippet string) driven.LexicalHit {
	hit := driven.LexicalHit{Item: item, Similarity: clamp01(sim), Snippet: snippet}
	n := float64(termCount)
	switch {
	case ident:
		hit.Match = driven.MatchExact
		hit.Coverage = 1
	case exact > 0:
		hit.Match = driven.MatchExact
		hit.Coverage = clamp01(float64(exact) / n)
	case prefix > 0:
		hit.Match = driven.MatchPrefix
		hit.Coverage = clamp01(float64(prefix) / n)
	default:
		hit.Match = driven.MatchFuzzy
	}
	return hit
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
