// Package extract turns scraped page content into structured data with an
// LLM.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"scrapegate/internal/logger"
	"scrapegate/internal/platform/claude"
)

type Service struct {
	llm *claude.Service
	log *logger.Logger
}

// NewService accepts a nil llm; extraction then degrades to raw passthrough.
func NewService(llm *claude.Service) *Service {
	return &Service{llm: llm, log: logger.New("ExtractService")}
}

func (s *Service) Enabled() bool { return s != nil && s.llm != nil }

// Plan asks the model how to approach a scraping query: which site areas to
// target and what to pull from each page.
func (s *Service) Plan(ctx context.Context, query, domain string) (string, error) {
	if !s.Enabled() {
		return "", nil
	}
	prompt := fmt.Sprintf(
		"You are planning a web scraping run.\nQuery: %s\n", query)
	if domain != "" {
		prompt += fmt.Sprintf("Target site: %s\n", domain)
	}
	prompt += "\nDescribe in a short paragraph which pages or site sections are most likely to answer the query and what should be extracted from each."

	plan, err := s.llm.Complete(ctx, prompt, "You are a precise web scraping planner. Keep answers short and actionable.")
	if err != nil {
		return "", fmt.Errorf("planning failed: %w", err)
	}
	return strings.TrimSpace(plan), nil
}

// Extract pulls structured data out of page content. schema takes precedence
// over the free-form prompt when both are set.
func (s *Service) Extract(ctx context.Context, content string, schema map[string]interface{}, prompt string) (map[string]interface{}, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("extraction is not configured")
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("no content to extract from")
	}

	// Bound the content so a long page cannot blow the model's input window.
	if len(content) > 50000 {
		content = content[:50000]
	}

	var instruction string
	if len(schema) > 0 {
		schemaJSON, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("invalid schema: %w", err)
		}
		instruction = fmt.Sprintf("Extract data matching this JSON schema:\n%s", schemaJSON)
	} else {
		instruction = prompt
	}

	full := fmt.Sprintf("%s\n\nContent:\n%s\n\nRespond with JSON only, no commentary.", instruction, content)
	raw, err := s.llm.Complete(ctx, full, "You extract structured data from web pages. Always respond with valid JSON.")
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}
	return DecodeJSON(raw), nil
}

// DecodeJSON recovers a JSON object from model output. Models wrap answers in
// code fences or prose; unparseable output falls back to a raw wrapper
// instead of an error.
func DecodeJSON(raw string) map[string]interface{} {
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
	}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(text), &obj); err == nil {
		return obj
	}

	// Scan for the first JSON object embedded in prose.
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err == nil {
				return obj
			}
		}
	}
	// Arrays get wrapped under a stable key.
	if start := strings.Index(text, "["); start >= 0 {
		if end := strings.LastIndex(text, "]"); end > start {
			var arr []interface{}
			if err := json.Unmarshal([]byte(text[start:end+1]), &arr); err == nil {
				return map[string]interface{}{"items": arr}
			}
		}
	}

	return map[string]interface{}{
		"raw":   raw,
		"error": "model output was not valid JSON",
	}
}
