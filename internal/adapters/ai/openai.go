package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/selivandex/stock-qa-bot/pkg/logger"
)

// OpenAIProvider talks to the OpenAI chat completions API or any compatible endpoint
type OpenAIProvider struct {
	name     string
	client   *openai.Client
	defaults Options
	enabled  bool
}

// NewOpenAIProvider creates OpenAI provider; empty baseURL uses api.openai.com
func NewOpenAIProvider(apiKey, baseURL string, defaults Options, timeout time.Duration) *OpenAIProvider {
	return newOpenAICompatible("openai", apiKey, baseURL, defaults, timeout)
}

func newOpenAICompatible(name, apiKey, baseURL string, defaults Options, timeout time.Duration) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeoutOrDefault(timeout)}

	return &OpenAIProvider{
		name:     name,
		client:   openai.NewClientWithConfig(clientCfg),
		defaults: defaults,
		enabled:  apiKey != "",
	}
}

// Client exposes the underlying API client so embeddings can share it
func (o *OpenAIProvider) Client() *openai.Client {
	return o.client
}

func (o *OpenAIProvider) GetName() string {
	return o.name
}

func (o *OpenAIProvider) IsEnabled() bool {
	return o.enabled
}

// Chat sends a single non-streaming completion request
func (o *OpenAIProvider) Chat(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	params := applyOptions(o.defaults, opts)

	req := openai.ChatCompletionRequest{
		Model:       params.Model,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s chat completion failed: %w", o.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", o.name)
	}

	content := resp.Choices[0].Message.Content

	logger.Debug("LLM response",
		zap.String("provider", o.name),
		zap.String("model", params.Model),
		zap.Duration("latency", time.Since(start)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return content, nil
}
