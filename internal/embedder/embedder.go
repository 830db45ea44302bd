package embedder

import (
	"context"
	"fmt"
	"os"

	"github.com/Zhanna110/worldsmith-v3/internal/types"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder generates embedding vectors from text content.
// Implementations must be thread-safe for concurrent access.
type Embedder interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions returns the dimensionality of embedding vectors.
	Dimensions() int

	// Model returns the name of the embedding model being used.
	Model() string
}

// Config holds configuration for embedding providers.
type Config struct {
	// Provider specifies which embedder implementation to use.
	// Options: "openai", "googleai", "mock"
	Provider string `yaml:"provider" json:"provider" mapstructure:"provider"`

	// Model is the specific embedding model to use.
	Model string `yaml:"model" json:"model" mapstructure:"model"`

	// APIKey is the API key for the embedding provider. Falls back to the
	// backend's conventional environment variable when empty.
	APIKey string `yaml:"api_key" json:"api_key" mapstructure:"api_key"`

	// Dimensions is the embedding dimensionality (e.g. 768 for
	// text-embedding-004, 1536 for text-embedding-3-small).
	Dimensions int `yaml:"dimensions" json:"dimensions" mapstructure:"dimensions"`
}

// langchainEmbedder adapts a langchaingo embedder to the Embedder interface.
type langchainEmbedder struct {
	inner embeddings.Embedder
	model string
	dims  int
}

// New constructs an Embedder from configuration.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "openai":
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		opts := []openai.Option{openai.WithToken(apiKey)}
		if cfg.Model != "" {
			opts = append(opts, openai.WithEmbeddingModel(cfg.Model))
		}
		client, err := openai.New(opts...)
		if err != nil {
			return nil, types.WrapError(types.EMBED_FAILED, "failed to construct openai embedder", err)
		}
		inner, err := embeddings.NewEmbedder(client)
		if err != nil {
			return nil, types.WrapError(types.EMBED_FAILED, "failed to wrap openai embedder", err)
		}
		return &langchainEmbedder{inner: inner, model: cfg.Model, dims: dimsOrDefault(cfg.Dimensions, 1536)}, nil

	case "googleai":
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("GOOGLE_API_KEY")
		}
		opts := []googleai.Option{googleai.WithAPIKey(apiKey)}
		if cfg.Model != "" {
			opts = append(opts, googleai.WithDefaultEmbeddingModel(cfg.Model))
		}
		client, err := googleai.New(ctx, opts...)
		if err != nil {
			return nil, types.WrapError(types.EMBED_FAILED, "failed to construct googleai embedder", err)
		}
		inner, err := embeddings.NewEmbedder(client)
		if err != nil {
			return nil, types.WrapError(types.EMBED_FAILED, "failed to wrap googleai embedder", err)
		}
		return &langchainEmbedder{inner: inner, model: cfg.Model, dims: dimsOrDefault(cfg.Dimensions, 768)}, nil

	case "mock":
		return NewMockEmbedder(dimsOrDefault(cfg.Dimensions, 64)), nil

	default:
		return nil, types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("unknown embedder provider: %q", cfg.Provider))
	}
}

func dimsOrDefault(dims, fallback int) int {
	if dims > 0 {
		return dims
	}
	return fallback
}

// Embed generates an embedding vector for a single text.
func (e *langchainEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vec, err := e.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, types.WrapRetryableError(types.EMBED_FAILED, "embedding request failed", err)
	}
	return toFloat64(vec), nil
}

// EmbedBatch generates embeddings for multiple texts efficiently.
func (e *langchainEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	vecs, err := e.inner.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, types.WrapRetryableError(types.EMBED_FAILED, "batch embedding request failed", err)
	}
	out := make([][]float64, len(vecs))
	for i, v := range vecs {
		out[i] = toFloat64(v)
	}
	return out, nil
}

// Dimensions returns the dimensionality of embedding vectors.
func (e *langchainEmbedder) Dimensions() int {
	return e.dims
}

// Model returns the name of the embedding model being used.
func (e *langchainEmbedder) Model() string {
	return e.model
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
