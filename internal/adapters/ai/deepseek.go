package ai

import "time"

const deepseekBaseURL = "https://api.deepseek.com/v1"

// NewDeepSeekProvider creates provider for DeepSeek's OpenAI-compatible API
func NewDeepSeekProvider(apiKey string, defaults Options, timeout time.Duration) *OpenAIProvider {
	return newOpenAICompatible("deepseek", apiKey, deepseekBaseURL, defaults, timeout)
}
