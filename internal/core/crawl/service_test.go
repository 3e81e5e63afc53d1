package crawl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scrapegate/internal/api"
)

func TestResolveTargetPrefersDomain(t *testing.T) {
	target, err := resolveTarget(api.ScrapeRequest{Query: "best laptops 2026", Domain: "reviews.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "https://reviews.example.com", target)
}

func TestResolveTargetURLShapedQuery(t *testing.T) {
	target, err := resolveTarget(api.ScrapeRequest{Query: "https://example.com/docs"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/docs", target)

	target, err = resolveTarget(api.ScrapeRequest{Query: "example.com/pricing"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/pricing", target)
}

func TestResolveTargetFreeTextFails(t *testing.T) {
	_, err := resolveTarget(api.ScrapeRequest{Query: "best laptops under 1000"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no crawlable target")
}

func TestLooksLikeURL(t *testing.T) {
	assert.True(t, looksLikeURL("https://example.com"))
	assert.True(t, looksLikeURL("example.com"))
	assert.True(t, looksLikeURL("docs.example.com/intro"))
	assert.False(t, looksLikeURL("plain words here"))
	assert.False(t, looksLikeURL("localhost"))
}

func TestCleanURL(t *testing.T) {
	assert.Equal(t, "https://example.com", cleanURL("example.com"))
	assert.Equal(t, "http://example.com", cleanURL("http://example.com"))
}
