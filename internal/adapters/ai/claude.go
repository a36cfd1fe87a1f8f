package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/selivandex/stock-qa-bot/pkg/logger"
)

// ClaudeProvider implements Provider with the Anthropic Messages API
type ClaudeProvider struct {
	client   anthropic.Client
	defaults Options
	enabled  bool
}

// NewClaudeProvider creates Claude provider
func NewClaudeProvider(apiKey string, defaults Options, timeout time.Duration) *ClaudeProvider {
	return &ClaudeProvider{
		client: anthropic.NewClient(
			option.WithAPIKey(apiKey),
			option.WithRequestTimeout(timeoutOrDefault(timeout)),
			option.WithMaxRetries(0),
		),
		defaults: defaults,
		enabled:  apiKey != "",
	}
}

func (c *ClaudeProvider) GetName() string {
	return "claude"
}

func (c *ClaudeProvider) IsEnabled() bool {
	return c.enabled
}

// Chat sends system text separately and alternating user/assistant turns
func (c *ClaudeProvider) Chat(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	params := applyOptions(c.defaults, opts)
	system, turns := splitSystem(messages)

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(params.Model),
		MaxTokens: int64(params.MaxTokens),
		Messages:  make([]anthropic.MessageParam, 0, len(turns)),
	}
	if params.Temperature > 0 {
		req.Temperature = anthropic.Float(float64(params.Temperature))
	}
	if system != "" {
		req.System = []anthropic.TextBlockParam{{Text: system}}
	}
	for _, m := range turns {
		if m.Role == RoleAssistant {
			req.Messages = append(req.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			continue
		}
		req.Messages = append(req.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
	}

	start := time.Now()
	resp, err := c.client.Messages.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("claude API call failed: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("no content in claude response")
	}

	logger.Debug("LLM response",
		zap.String("provider", "claude"),
		zap.String("model", params.Model),
		zap.Duration("latency", time.Since(start)),
	)

	return out.String(), nil
}
