package search

import (
	"strings"
	"unicode"

	lfuzzy "github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sahilm/fuzzy"

	"github.com/mmcdole/marquee/internal/domain"
)

// Match is a title that passed the filter, with highlight positions into its name
type Match struct {
	Title          domain.Title
	MatchedIndexes []int // byte offsets into Title.Title, empty for description matches
	Score          int   // higher is better
	InDescription  bool
}

// Index implements sahilm/fuzzy.Source over already-fetched titles
type Index struct {
	titles      []domain.Title
	lowerTitles []string // pre-computed at index time
}

// NewIndex builds a filter index over titles
func NewIndex(titles []domain.Title) *Index {
	idx := &Index{
		titles:      titles,
		lowerTitles: make([]string, len(titles)),
	}
	for i, t := range titles {
		idx.lowerTitles[i] = strings.ToLower(t.Title)
	}
	return idx
}

// String returns the lowercase title at index i (implements fuzzy.Source)
func (idx *Index) String(i int) string { return idx.lowerTitles[i] }

// Len returns the number of titles (implements fuzzy.Source)
func (idx *Index) Len() int { return len(idx.titles) }

// Filter matches query against title names, falling back to descriptions
// for titles whose name did not match. Types restricts the result (none = all).
// Blank queries match nothing.
func (idx *Index) Filter(query string, types ...domain.TitleType) []Match {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || idx.Len() == 0 {
		return nil
	}

	allowed := func(t domain.TitleType) bool {
		if len(types) == 0 {
			return true
		}
		for _, want := range types {
			if t == want {
				return true
			}
		}
		return false
	}

	var results []Match
	matched := make(map[int]bool)
	for _, m := range fuzzy.FindFrom(query, idx) {
		t := idx.titles[m.Index]
		if !allowed(t.Type) {
			continue
		}
		matched[m.Index] = true
		results = append(results, Match{Title: t, MatchedIndexes: m.MatchedIndexes, Score: m.Score})
	}

	tokens := tokenize(query)
	for i, t := range idx.titles {
		if matched[i] || !allowed(t.Type) {
			continue
		}
		if score, ok := matchDescription(tokens, t.Description); ok {
			results = append(results, Match{Title: t, Score: score, InDescription: true})
		}
	}
	return results
}

// matchDescription requires every query token to match some description word
// by prefix or within the typo allowance. Scores rank below name matches.
func matchDescription(tokens []string, description string) (int, bool) {
	if len(tokens) == 0 {
		return 0, false
	}
	words := tokenize(strings.ToLower(description))
	total := 0
	for _, tok := range tokens {
		best := -1
		for _, w := range words {
			dist := -1
			if strings.HasPrefix(w, tok) {
				dist = 0
			} else if d := lfuzzy.LevenshteinDistance(tok, w); d <= allowedTypos(len([]rune(tok))) {
				dist = d
			}
			if dist >= 0 && (best < 0 || dist < best) {
				best = dist
			}
		}
		if best < 0 {
			return 0, false
		}
		total += best
	}
	return -100 - total, true
}

// allowedTypos returns the number of typos allowed based on word length
func allowedTypos(length int) int {
	switch {
	case length <= 3:
		return 0
	case length <= 6:
		return 1
	default:
		return 2
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
