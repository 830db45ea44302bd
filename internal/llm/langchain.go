package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/Zhanna110/worldsmith-v3/internal/types"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

// langchainProvider adapts a langchaingo model to the Provider interface.
// All hosted backends share this wrapper; only construction differs.
type langchainProvider struct {
	name  string
	model llms.Model
}

// NewOpenAI creates a Provider backed by OpenAI's chat models.
func NewOpenAI(cfg ProviderConfig) (Provider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, types.NewError(types.CONFIG_VALIDATION_FAILED,
			"openai provider requires api_key (or OPENAI_API_KEY environment variable)")
	}

	opts := []openai.Option{openai.WithToken(apiKey)}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, types.WrapError(types.GENERATE_FAILED, "failed to construct openai client", err)
	}

	return &langchainProvider{name: "openai", model: client}, nil
}

// NewGoogleAI creates a Provider backed by Google's Gemini models.
func NewGoogleAI(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, types.NewError(types.CONFIG_VALIDATION_FAILED,
			"googleai provider requires api_key (or GOOGLE_API_KEY environment variable)")
	}

	opts := []googleai.Option{googleai.WithAPIKey(apiKey)}
	if cfg.Model != "" {
		opts = append(opts, googleai.WithDefaultModel(cfg.Model))
	}

	client, err := googleai.New(ctx, opts...)
	if err != nil {
		return nil, types.WrapError(types.GENERATE_FAILED, "failed to construct googleai client", err)
	}

	return &langchainProvider{name: "googleai", model: client}, nil
}

// NewOllama creates a Provider backed by a local Ollama server.
func NewOllama(cfg ProviderConfig) (Provider, error) {
	opts := []ollama.Option{}
	if cfg.Model != "" {
		opts = append(opts, ollama.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}

	client, err := ollama.New(opts...)
	if err != nil {
		return nil, types.WrapError(types.GENERATE_FAILED, "failed to construct ollama client", err)
	}

	return &langchainProvider{name: "ollama", model: client}, nil
}

// NewProvider constructs a Provider from configuration.
func NewProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg)
	case "googleai":
		return NewGoogleAI(ctx, cfg)
	case "ollama":
		return NewOllama(cfg)
	case "mock":
		return NewMock(nil), nil
	default:
		return nil, types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("unknown llm provider: %q", cfg.Provider))
	}
}

// Name returns the provider name.
func (p *langchainProvider) Name() string {
	return p.name
}

// Complete sends a generation request through the langchaingo model.
func (p *langchainProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	var messages []llms.MessageContent
	if req.System != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, req.System))
	}
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, req.Prompt))

	var callOpts []llms.CallOption
	if req.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(req.Temperature))
	}
	if req.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.JSON {
		callOpts = append(callOpts, llms.WithJSONMode())
	}

	resp, err := p.model.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return nil, types.WrapRetryableError(types.GENERATE_FAILED,
			fmt.Sprintf("%s completion failed", p.name), err)
	}
	if len(resp.Choices) == 0 {
		return nil, types.NewRetryableError(types.GENERATE_FAILED,
			fmt.Sprintf("%s returned no choices", p.name))
	}

	choice := resp.Choices[0]
	usage := usageFromGenerationInfo(choice.GenerationInfo)
	if usage.TotalTokens == 0 {
		usage = TokenUsage{
			PromptTokens:     EstimateTokens(req.System) + EstimateTokens(req.Prompt),
			CompletionTokens: EstimateTokens(choice.Content),
		}
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}

	return &Response{Text: choice.Content, Usage: usage}, nil
}

// usageFromGenerationInfo extracts token counts from the backend-specific
// generation info map. Key casing varies across langchaingo backends.
func usageFromGenerationInfo(info map[string]any) TokenUsage {
	var usage TokenUsage
	for key, val := range info {
		n, ok := asInt(val)
		if !ok {
			continue
		}
		switch key {
		case "PromptTokens", "prompt_tokens", "input_tokens":
			usage.PromptTokens = n
		case "CompletionTokens", "completion_tokens", "output_tokens":
			usage.CompletionTokens = n
		case "TotalTokens", "total_tokens":
			usage.TotalTokens = n
		}
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
