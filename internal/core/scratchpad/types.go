// Package scratchpad is a Redis-backed working memory for agent-assisted
// jobs: intermediate notes, plans, and page findings keyed per API key and
// optionally grouped into sessions.
package scratchpad

import "time"

// Entry is one stored note.
type Entry struct {
	Key         string                 `json:"key"`
	SessionID   string                 `json:"session_id,omitempty"`
	Content     string                 `json:"content"`
	ContentType string                 `json:"content_type"`
	Source      string                 `json:"source,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// SaveRequest is the write payload.
type SaveRequest struct {
	Key         string                 `json:"key,omitempty"`
	SessionID   string                 `json:"session_id,omitempty"`
	Content     string                 `json:"content"`
	ContentType string                 `json:"content_type,omitempty"`
	Source      string                 `json:"source,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// SearchRequest queries stored entries by relevance.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// SearchHit pairs an entry with its relevance score.
type SearchHit struct {
	Entry *Entry  `json:"entry"`
	Score float64 `json:"score"`
}
