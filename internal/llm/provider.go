package llm

import (
	"context"
)

// Provider is the unified abstraction for language generation. Each workflow
// node treats it as an opaque generate(prompt) -> text function; the concrete
// backends (OpenAI, Google, Ollama) are selected at construction time.
type Provider interface {
	// Name returns the provider name (e.g. "openai", "googleai", "ollama").
	Name() string

	// Complete sends a generation request and returns the full response.
	// This is a blocking call that waits for the entire response.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Request represents a generation request.
type Request struct {
	// System is the system instruction framing the generation, if any.
	System string `json:"system,omitempty"`

	// Prompt is the user prompt.
	Prompt string `json:"prompt"`

	// JSON requests structured JSON output from providers that support it.
	JSON bool `json:"json,omitempty"`

	// Temperature controls sampling randomness (0 uses the provider default).
	Temperature float64 `json:"temperature,omitempty"`

	// MaxTokens caps the completion length (0 uses the provider default).
	MaxTokens int `json:"max_tokens,omitempty"`
}

// TokenUsage holds token accounting for a single completion.
type TokenUsage struct {
	// PromptTokens is the number of tokens in the prompt.
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion.
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total number of tokens used.
	TotalTokens int `json:"total_tokens"`
}

// Response represents a completed generation.
type Response struct {
	// Text is the generated content.
	Text string `json:"text"`

	// Usage contains token usage statistics for this completion. When the
	// backend reports no usage metadata, the counts are estimated from text
	// length (roughly 4 characters per token).
	Usage TokenUsage `json:"usage"`
}

// EstimateTokens approximates the token count of a text when the provider
// reports no usage metadata. Roughly 4 characters per token for English.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}

// ProviderConfig holds configuration for constructing a Provider.
type ProviderConfig struct {
	// Provider selects the backend: "openai", "googleai", "ollama", or "mock".
	Provider string `yaml:"provider" json:"provider" mapstructure:"provider"`

	// Model is the model identifier passed to the backend.
	Model string `yaml:"model" json:"model" mapstructure:"model"`

	// APIKey authenticates against hosted backends. Falls back to the
	// backend's conventional environment variable when empty.
	APIKey string `yaml:"api_key" json:"api_key" mapstructure:"api_key"`

	// BaseURL overrides the backend endpoint (Ollama server, API proxies).
	BaseURL string `yaml:"base_url" json:"base_url" mapstructure:"base_url"`
}
