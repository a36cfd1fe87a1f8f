package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/selivandex/stock-qa-bot/pkg/logger"
)

// GeminiProvider implements Provider with the Gemini API
type GeminiProvider struct {
	client   *genai.Client
	defaults Options
	timeout  time.Duration
}

// NewGeminiProvider creates Gemini provider
func NewGeminiProvider(ctx context.Context, apiKey string, defaults Options, timeout time.Duration) (*GeminiProvider, error) {
	if apiKey == "" {
		return &GeminiProvider{defaults: defaults}, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	return &GeminiProvider{
		client:   client,
		defaults: defaults,
		timeout:  timeoutOrDefault(timeout),
	}, nil
}

func (g *GeminiProvider) GetName() string {
	return "gemini"
}

func (g *GeminiProvider) IsEnabled() bool {
	return g.client != nil
}

// Chat maps assistant turns to the model role and sends one request
func (g *GeminiProvider) Chat(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("gemini provider not configured")
	}

	params := applyOptions(g.defaults, opts)
	system, turns := splitSystem(messages)

	contents := geminiContents(turns)

	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(params.Temperature),
		MaxOutputTokens: int32(params.MaxTokens),
	}
	if system != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, params.Model, contents, genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	var out strings.Builder
	if resp != nil {
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				out.WriteString(part.Text)
			}
			if out.Len() > 0 {
				break
			}
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("no content in gemini response")
	}

	logger.Debug("LLM response",
		zap.String("provider", "gemini"),
		zap.String("model", params.Model),
		zap.Duration("latency", time.Since(start)),
	)

	return out.String(), nil
}

// geminiContents converts chat turns; assistant turns use the model role
func geminiContents(turns []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		var role genai.Role = genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}
