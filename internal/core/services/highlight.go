package services

import (
	"strings"
	"unicode"
)

// MaxHighlightChars caps the highlight length in characters
const MaxHighlightChars = 240

const ellipsis = "…"

// Highlight returns the sentence around the first matched term, or a window
// centred on it when the sentence is too long. Without a match it returns the
// leading text.
func Highlight(text string, terms []string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	runes := []rune(text)
	lower := make([]rune, len(runes))
	for i, r := range runes {
		lower[i] = unicode.ToLower(r)
	}

	pos, length := -1, 0
	for _, term := range terms {
		t := []rune(strings.ToLower(term))
		if len(t) == 0 {
			continue
		}
		if i := indexRunes(lower, t); i >= 0 && (pos < 0 || i < pos) {
			pos, length = i, len(t)
		}
	}
	if pos < 0 {
		return truncateRunes(runes, 0, MaxHighlightChars)
	}

	start, end := sentenceBounds(runes, pos)
	if end-start <= MaxHighlightChars {
		return strings.TrimSpace(string(runes[start:end]))
	}

	// window around the match, leaving room for ellipses
	budget := MaxHighlightChars - 2
	from := pos - (budget-length)/2
	if from < start {
		from = start
	}
	to := from + budget
	if to > end {
		to = end
		from = max(start, to-budget)
	}

	var b strings.Builder
	if from > start {
		b.WriteString(ellipsis)
	}
	b.WriteString(strings.TrimSpace(string(runes[from:to])))
	if to < end {
		b.WriteString(ellipsis)
	}
	return b.String()
}

func sentenceBounds(runes []rune, pos int) (int, int) {
	start := 0
	for i := pos - 1; i >= 0; i-- {
		if isSentenceEnd(runes[i]) {
			start = i + 1
			break
		}
	}
	end := len(runes)
	for i := pos; i < len(runes); i++ {
		if isSentenceEnd(runes[i]) {
			end = i + 1
			break
		}
	}
	return start, end
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '\n'
}

func indexRunes(haystack, needle []rune) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func truncateRunes(runes []rune, from, n int) string {
	if len(runes)-from <= n {
		return strings.TrimSpace(string(runes[from:]))
	}
	return strings.TrimSpace(string(runes[from:from+n-1])) + ellipsis
}
