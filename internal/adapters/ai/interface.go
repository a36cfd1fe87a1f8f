package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/selivandex/stock-qa-bot/internal/adapters/config"
)

// Role of a chat message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a provider-agnostic chat message
type Message struct {
	Role    Role
	Content string
}

// Options tune one generation call
type Options struct {
	Temperature float32
	MaxTokens   int
	Model       string
}

// Option overrides a generation parameter
type Option func(*Options)

func WithTemperature(t float32) Option {
	return func(o *Options) { o.Temperature = t }
}

func WithMaxTokens(n int) Option {
	return func(o *Options) { o.MaxTokens = n }
}

func WithModel(model string) Option {
	return func(o *Options) { o.Model = model }
}

// Provider generates one assistant reply for a message list.
// Implementations never retry; callers own the timeout.
type Provider interface {
	GetName() string
	IsEnabled() bool
	Chat(ctx context.Context, messages []Message, opts ...Option) (string, error)
}

func applyOptions(base Options, opts []Option) Options {
	for _, opt := range opts {
		opt(&base)
	}
	return base
}

// splitSystem returns the concatenated system text and the remaining turns
func splitSystem(messages []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

// NewProvider builds the provider selected by AI_PROVIDER
func NewProvider(ctx context.Context, cfg *config.AIConfig) (Provider, error) {
	defaults := Options{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens}

	var p Provider
	switch cfg.Provider {
	case "openai":
		defaults.Model = cfg.OpenAIModel
		p = NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, defaults, cfg.GenerationTimeout)
	case "deepseek":
		defaults.Model = cfg.DeepSeekModel
		p = NewDeepSeekProvider(cfg.DeepSeekAPIKey, defaults, cfg.GenerationTimeout)
	case "claude":
		defaults.Model = cfg.ClaudeModel
		p = NewClaudeProvider(cfg.ClaudeAPIKey, defaults, cfg.GenerationTimeout)
	case "gemini":
		defaults.Model = cfg.GeminiModel
		gp, err := NewGeminiProvider(ctx, cfg.GeminiAPIKey, defaults, cfg.GenerationTimeout)
		if err != nil {
			return nil, err
		}
		p = gp
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}

	if !p.IsEnabled() {
		return nil, fmt.Errorf("AI provider %s is not configured", p.GetName())
	}
	return p, nil
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 60 * time.Second
	}
	return d
}
