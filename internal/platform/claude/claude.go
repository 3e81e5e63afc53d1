package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"scrapegate/internal/logger"
)

const defaultMaxTokens = 2000

type Config struct {
	APIKey    string
	Model     string
	MaxTokens int64
}

// Service wraps the Anthropic messages API. All callers go through Complete
// so prompt handling and error shaping live in one place.
type Service struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	log       *logger.Logger
}

func New(cfg Config) (*Service, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "claude-3-7-sonnet-20250219"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &Service{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     anthropic.Model(cfg.Model),
		maxTokens: cfg.MaxTokens,
		log:       logger.New("Claude"),
	}, nil
}

// Complete sends a single-turn prompt and returns the concatenated text
// content of the response.
func (s *Service) Complete(ctx context.Context, prompt, system string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := s.client.Messages.New(ctx, params)
	if err != nil {
		s.log.LogErrorf("message request failed: %v", err)
		return "", fmt.Errorf("claude request: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

// AnalyzeContent asks a question about the given content.
func (s *Service) AnalyzeContent(ctx context.Context, content, question string) (string, error) {
	prompt := fmt.Sprintf(`I need you to analyze the following content and answer a question about it:

Content:
%s

Question:
%s

Please provide a comprehensive answer based solely on the content provided.`, content, question)
	return s.Complete(ctx, prompt, "")
}
