package scratchpad

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// Tokenize lowercases and splits on non-alphanumeric runes.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Score rates how well an entry matches the query tokens: term frequency
// over content and key, normalized by content length so short focused notes
// are not drowned out by long dumps.
func Score(queryTokens []string, entry *Entry) float64 {
	if len(queryTokens) == 0 {
		return 0
	}

	contentTokens := Tokenize(entry.Content)
	keyTokens := Tokenize(entry.Key)
	if len(contentTokens) == 0 && len(keyTokens) == 0 {
		return 0
	}

	freq := make(map[string]int, len(contentTokens))
	for _, t := range contentTokens {
		freq[t]++
	}
	inKey := make(map[string]bool, len(keyTokens))
	for _, t := range keyTokens {
		inKey[t] = true
	}

	var score float64
	for _, q := range queryTokens {
		if n := freq[q]; n > 0 {
			score += float64(n)
		}
		// Key matches weigh more than body matches.
		if inKey[q] {
			score += 2
		}
	}
	if score == 0 {
		return 0
	}
	return score / math.Sqrt(float64(len(contentTokens)+1))
}

// RankTopK scores every entry against the query and returns the best k,
// highest score first. Zero-score entries are dropped.
func RankTopK(query string, entries []*Entry, k int) []SearchHit {
	tokens := Tokenize(query)

	hits := make([]SearchHit, 0, len(entries))
	for _, e := range entries {
		if s := Score(tokens, e); s > 0 {
			hits = append(hits, SearchHit{Entry: e, Score: s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
