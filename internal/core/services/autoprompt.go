package services

import (
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true,
	"by": true, "did": true, "do": true, "does": true, "for": true, "from": true, "how": true,
	"in": true, "is": true, "it": true, "of": true, "on": true, "or": true, "the": true,
	"this": true, "that": true, "to": true, "was": true, "were": true, "what": true,
	"when": true, "where": true, "which": true, "with": true, "why": true,
}

// tokenize lowercases q and splits it into words. Underscores, hyphens,
// '#' and '/' stay inside a word so identifiers survive intact.
func tokenize(q string) []string {
	return strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' && r != '#' && r != '/'
	})
}

// queryTerms returns the lexical term set of a query.
// With expand set, stopwords are dropped and singulars and identifier parts are added.
func queryTerms(q string, expand bool) []string {
	words := tokenize(q)
	if !expand {
		return dedupe(words)
	}

	terms := make([]string, 0, len(words)*2)
	for _, w := range words {
		if stopwords[w] {
			continue
		}
		terms = append(terms, w)
		if s := singular(w); s != w {
			terms = append(terms, s)
		}
		if strings.ContainsAny(w, "_-") {
			for _, part := range strings.FieldsFunc(w, func(r rune) bool { return r == '_' || r == '-' }) {
				if len(part) > 1 && !stopwords[part] {
					terms = append(terms, part)
				}
			}
		}
	}
	if len(terms) == 0 {
		// a query made only of stopwords still searches for them
		return dedupe(words)
	}
	return dedupe(terms)
}

func singular(w string) string {
	switch {
	case len(w) <= 3:
		return w
	case strings.HasSuffix(w, "ies"):
		return strings.TrimSuffix(w, "ies") + "y"
	case strings.HasSuffix(w, "sses"), strings.HasSuffix(w, "xes"),
		strings.HasSuffix(w, "ches"), strings.HasSuffix(w, "shes"):
		return strings.TrimSuffix(w, "es")
	case strings.HasSuffix(w, "ss"), strings.HasSuffix(w, "us"), strings.HasSuffix(w, "is"):
		return w
	case strings.HasSuffix(w, "s"):
		return strings.TrimSuffix(w, "s")
	}
	return w
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0:0]
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
