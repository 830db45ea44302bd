package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, int64(500_000), cfg.Budget.DailyTokenCeiling)
	assert.Equal(t, "sqlite", cfg.Retrieval.Backend)
	assert.InDelta(t, 0.75, cfg.Retrieval.Threshold, 1e-9)
	assert.Equal(t, 1536, cfg.Embedder.Dimensions)
	assert.Equal(t, 3, cfg.Engine.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Engine.RetryBackoff)
	assert.Equal(t, "vault", cfg.Vault.Root)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
log:
  level: debug
  format: json
budget:
  daily_token_ceiling: 42000
retrieval:
  backend: memory
  threshold: 0.6
llm:
  provider: ollama
  model: llama3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, int64(42000), cfg.Budget.DailyTokenCeiling)
	assert.Equal(t, "memory", cfg.Retrieval.Backend)
	assert.InDelta(t, 0.6, cfg.Retrieval.Threshold, 1e-9)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	// Untouched sections keep their defaults.
	assert.Equal(t, "openai", cfg.Embedder.Provider)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero ceiling", func(c *Config) { c.Budget.DailyTokenCeiling = 0 }},
		{"negative threshold", func(c *Config) { c.Retrieval.Threshold = -0.1 }},
		{"threshold above one", func(c *Config) { c.Retrieval.Threshold = 1.5 }},
		{"bad backend", func(c *Config) { c.Retrieval.Backend = "postgres" }},
		{"zero dimensions", func(c *Config) { c.Embedder.Dimensions = 0 }},
		{"negative retries", func(c *Config) { c.Engine.MaxRetries = -1 }},
		{"empty vault root", func(c *Config) { c.Vault.Root = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
