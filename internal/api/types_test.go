package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrapeRequestApplyDefaults(t *testing.T) {
	r := ScrapeRequest{Query: "best go routers"}
	r.ApplyDefaults()

	require.NotNil(t, r.Limit)
	assert.Equal(t, 5, *r.Limit)
	assert.Equal(t, []string{ContentTypeMarkdown, ContentTypeHTML}, r.Formats)
	require.NotNil(t, r.RetryWithStealth)
	assert.True(t, *r.RetryWithStealth)
	require.NotNil(t, r.OnlyMainContent)
	assert.True(t, *r.OnlyMainContent)
	require.NotNil(t, r.Timeout)
	assert.Equal(t, 30000, *r.Timeout)
	require.NotNil(t, r.ParsePDF)
	assert.True(t, *r.ParsePDF)
}

func TestScrapeRequestDefaultsDoNotOverride(t *testing.T) {
	limit := 20
	timeout := 5000
	r := ScrapeRequest{Query: "q", Limit: &limit, Formats: []string{ContentTypeText}, Timeout: &timeout}
	r.ApplyDefaults()

	assert.Equal(t, 20, *r.Limit)
	assert.Equal(t, []string{ContentTypeText}, r.Formats)
	assert.Equal(t, 5000, *r.Timeout)
}

func TestScrapeRequestCredits(t *testing.T) {
	r := ScrapeRequest{Query: "q"}
	assert.Equal(t, 1, r.Credits())

	r.Proxy = "basic"
	assert.Equal(t, 1, r.Credits())

	r.Proxy = "stealth"
	assert.Equal(t, 5, r.Credits())
}

func TestBatchScrapeRequestCredits(t *testing.T) {
	r := BatchScrapeRequest{URLs: []string{"https://a.test", "https://b.test", "https://c.test"}}
	assert.Equal(t, 3, r.Credits())

	r.Proxy = "stealth"
	assert.Equal(t, 15, r.Credits())
}

func TestMapRequestApplyDefaults(t *testing.T) {
	r := MapRequest{URL: "https://example.com"}
	r.ApplyDefaults()
	assert.Equal(t, 100, r.Limit)

	r = MapRequest{URL: "https://example.com", Limit: 25}
	r.ApplyDefaults()
	assert.Equal(t, 25, r.Limit)
}

func TestWantsFormat(t *testing.T) {
	r := ScrapeRequest{Formats: []string{ContentTypeMarkdown, ContentTypeHTML}}
	assert.True(t, r.WantsFormat(ContentTypeMarkdown))
	assert.True(t, r.WantsFormat(ContentTypeHTML))
	assert.False(t, r.WantsFormat(ContentTypeText))
}

func TestWantsExtraction(t *testing.T) {
	assert.False(t, (&ScrapeRequest{}).WantsExtraction())
	assert.True(t, (&ScrapeRequest{ExtractPrompt: "list the prices"}).WantsExtraction())
	assert.True(t, (&ScrapeRequest{ExtractSchema: map[string]interface{}{"type": "object"}}).WantsExtraction())
}

func TestPageMetadataMapSkipsEmptyFields(t *testing.T) {
	m := PageMetadata{Title: "T", StatusCode: 200, SourceURL: "https://x.test"}
	out := m.Map()

	assert.Equal(t, "T", out["title"])
	assert.Equal(t, 200, out["status_code"])
	assert.Equal(t, "https://x.test", out["sourceURL"])
	_, hasDesc := out["description"]
	assert.False(t, hasDesc)
}
