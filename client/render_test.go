package client

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"scrapegate/internal/api"
)

func TestRenderResultMarkdownPassthrough(t *testing.T) {
	item := api.ResultItem{
		URL:         "https://example.com",
		Content:     "# Title\n\nSome **bold** text.",
		ContentType: api.ContentTypeMarkdown,
	}
	assert.Equal(t, item.Content, RenderResult(item))
}

func TestRenderResultHTMLPassthrough(t *testing.T) {
	item := api.ResultItem{
		URL:         "https://example.com",
		Content:     "<article><p>hello</p></article>",
		ContentType: api.ContentTypeHTML,
	}
	assert.Equal(t, item.Content, RenderResult(item))
}

func TestRenderResultJSONPrettyPrinted(t *testing.T) {
	item := api.ResultItem{
		URL:         "https://example.com",
		Content:     `{"name":"widget","price":9.99}`,
		ContentType: api.ContentTypeJSON,
	}
	out := RenderResult(item)
	assert.Contains(t, out, "\n")
	assert.Contains(t, out, `"name": "widget"`)
}

func TestRenderResultInvalidJSONReturnsErrorString(t *testing.T) {
	item := api.ResultItem{
		URL:         "https://example.com",
		Content:     `{"name": "wid`,
		ContentType: api.ContentTypeJSON,
	}
	out := RenderResult(item)
	assert.True(t, strings.HasPrefix(out, "error:"), "malformed JSON should render as an error string, got %q", out)
	assert.Contains(t, out, "https://example.com")
}

func TestRenderResultsJoinsWithHeadings(t *testing.T) {
	items := []api.ResultItem{
		{URL: "https://a.test", Title: "A", Content: "alpha", ContentType: api.ContentTypeMarkdown},
		{URL: "https://b.test", Content: "beta", ContentType: api.ContentTypeText},
	}
	out := RenderResults(items)
	assert.Contains(t, out, "## A (https://a.test)")
	assert.Contains(t, out, "## https://b.test")
	assert.Contains(t, out, "\n\n---\n\n")
}
