package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"scrapegate/internal/api"
)

// RenderResult formats one result item for display. Textual content passes
// through verbatim; JSON content is pretty-printed. Malformed JSON renders
// as an error string rather than failing the whole result set.
func RenderResult(item api.ResultItem) string {
	switch item.ContentType {
	case api.ContentTypeJSON:
		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(item.Content), "", "  "); err != nil {
			return fmt.Sprintf("error: invalid JSON content for %s: %v", item.URL, err)
		}
		return buf.String()
	default:
		return item.Content
	}
}

// RenderResults renders every item, separated by a horizontal rule, with the
// source URL as a heading.
func RenderResults(items []api.ResultItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		header := item.URL
		if item.Title != "" {
			header = fmt.Sprintf("%s (%s)", item.Title, item.URL)
		}
		parts = append(parts, fmt.Sprintf("## %s\n\n%s", header, RenderResult(item)))
	}
	return strings.Join(parts, "\n\n---\n\n")
}
