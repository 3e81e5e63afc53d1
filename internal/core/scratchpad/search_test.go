package scratchpad

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"hello", "world"}, Tokenize("Hello, World!"))
	assert.Equal(t, []string{"go1", "23", "released"}, Tokenize("go1.23 released"))
	assert.Empty(t, Tokenize("  ... "))
}

func TestScoreMatchesContent(t *testing.T) {
	e := &Entry{Key: "notes", Content: "the quick brown fox jumps over the lazy dog"}
	assert.Greater(t, Score(Tokenize("fox"), e), 0.0)
	assert.Equal(t, 0.0, Score(Tokenize("zebra"), e))
	assert.Equal(t, 0.0, Score(nil, e))
}

func TestScoreKeyMatchesWeighMore(t *testing.T) {
	keyed := &Entry{Key: "pricing-page", Content: "misc notes about the site"}
	body := &Entry{Key: "misc", Content: "pricing appears once here somewhere in text"}

	q := Tokenize("pricing")
	assert.Greater(t, Score(q, keyed), Score(q, body))
}

func TestScoreNormalizesByLength(t *testing.T) {
	short := &Entry{Content: "redis cache"}
	long := &Entry{Content: "redis " + repeat("filler ", 200)}

	q := Tokenize("redis")
	assert.Greater(t, Score(q, short), Score(q, long))
}

func TestRankTopK(t *testing.T) {
	entries := []*Entry{
		{Key: "a", Content: "nothing relevant here"},
		{Key: "b", Content: "redis redis redis"},
		{Key: "c", Content: "one redis mention"},
		{Key: "redis-setup", Content: "installation steps"},
	}

	hits := RankTopK("redis", entries, 2)
	require.Len(t, hits, 2)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	// Zero-score entries never appear even with a large k.
	all := RankTopK("redis", entries, 10)
	for _, h := range all {
		assert.NotEqual(t, "a", h.Entry.Key)
	}
}

func TestRankTopKNoMatches(t *testing.T) {
	entries := []*Entry{{Key: "a", Content: "alpha"}, {Key: "b", Content: "beta"}}
	assert.Empty(t, RankTopK("gamma", entries, 5))
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
