package ai

import (
	"context"
	"testing"
	"time"

	"github.com/selivandex/stock-qa-bot/internal/adapters/config"
)

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem([]Message{
		{Role: RoleSystem, Content: "a"},
		{Role: RoleUser, Content: "q1"},
		{Role: RoleSystem, Content: "b"},
		{Role: RoleAssistant, Content: "r1"},
	})

	if system != "a\n\nb" {
		t.Errorf("system = %q", system)
	}
	if len(rest) != 2 || rest[0].Content != "q1" || rest[1].Role != RoleAssistant {
		t.Errorf("rest = %+v", rest)
	}
}

func TestGeminiContents(t *testing.T) {
	contents := geminiContents([]Message{
		{Role: RoleUser, Content: "최근 실적은?"},
		{Role: RoleAssistant, Content: "영업이익이 늘었습니다."},
	})

	if len(contents) != 2 {
		t.Fatalf("got %d contents", len(contents))
	}
	if contents[0].Role != "user" || contents[1].Role != "model" {
		t.Errorf("roles = %q, %q", contents[0].Role, contents[1].Role)
	}
	if len(contents[1].Parts) != 1 || contents[1].Parts[0].Text != "영업이익이 늘었습니다." {
		t.Errorf("parts = %+v", contents[1].Parts)
	}
}

func TestApplyOptions(t *testing.T) {
	got := applyOptions(Options{Temperature: 0.1, MaxTokens: 100, Model: "m"},
		[]Option{WithModel("x"), WithMaxTokens(5)})
	if got.Model != "x" || got.MaxTokens != 5 || got.Temperature != 0.1 {
		t.Errorf("options = %+v", got)
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.AIConfig
		wantName string
		wantErr  bool
	}{
		{"openai", config.AIConfig{Provider: "openai", OpenAIAPIKey: "k"}, "openai", false},
		{"deepseek", config.AIConfig{Provider: "deepseek", DeepSeekAPIKey: "k"}, "deepseek", false},
		{"claude", config.AIConfig{Provider: "claude", ClaudeAPIKey: "k"}, "claude", false},
		{"missing key", config.AIConfig{Provider: "openai"}, "", true},
		{"unknown", config.AIConfig{Provider: "nope"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.GenerationTimeout = time.Second
			p, err := NewProvider(context.Background(), &tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && p.GetName() != tt.wantName {
				t.Errorf("name = %s, want %s", p.GetName(), tt.wantName)
			}
		})
	}
}
