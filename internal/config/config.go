package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Zhanna110/worldsmith-v3/internal/types"
)

// Config is the full application configuration, loaded from YAML with
// environment-variable overrides (WORLDSMITH_ prefix, dots become
// underscores).
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Budget    BudgetConfig    `mapstructure:"budget"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedder  EmbedderConfig  `mapstructure:"embedder"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Vault     VaultConfig     `mapstructure:"vault"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EngineConfig controls the workflow run loop.
type EngineConfig struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// BudgetConfig controls the daily token circuit breaker.
type BudgetConfig struct {
	DailyTokenCeiling int64  `mapstructure:"daily_token_ceiling"`
	LedgerPath        string `mapstructure:"ledger_path"`
}

// LLMConfig selects the generation provider.
type LLMConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

// EmbedderConfig selects the embedding provider.
type EmbedderConfig struct {
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	Dimensions int    `mapstructure:"dimensions"`
}

// RetrievalConfig controls the hybrid search layer.
type RetrievalConfig struct {
	Backend      string  `mapstructure:"backend"`
	Path         string  `mapstructure:"path"`
	Threshold    float64 `mapstructure:"threshold"`
	ContextCount int     `mapstructure:"context_count"`
}

// VaultConfig controls the on-disk markdown workspace.
type VaultConfig struct {
	Root         string `mapstructure:"root"`
	DropDir      string `mapstructure:"drop_dir"`
	SyncDir      string `mapstructure:"sync_dir"`
	RegistryPath string `mapstructure:"registry_path"`
}

// Load reads configuration from the given file (empty path uses defaults and
// environment only).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("WORLDSMITH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, types.WrapError(types.CONFIG_LOAD_FAILED,
				fmt.Sprintf("failed to read config file %s", path), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED, "failed to parse configuration", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("engine.max_retries", 3)
	v.SetDefault("engine.retry_backoff", "500ms")

	v.SetDefault("budget.daily_token_ceiling", 500_000)
	v.SetDefault("budget.ledger_path", "worldsmith-budget.db")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o")

	v.SetDefault("embedder.provider", "openai")
	v.SetDefault("embedder.model", "text-embedding-3-small")
	v.SetDefault("embedder.dimensions", 1536)

	v.SetDefault("retrieval.backend", "sqlite")
	v.SetDefault("retrieval.path", "worldsmith-lore.db")
	v.SetDefault("retrieval.threshold", 0.75)
	v.SetDefault("retrieval.context_count", 4)

	v.SetDefault("vault.root", "vault")
	v.SetDefault("vault.drop_dir", "drop")
	v.SetDefault("vault.sync_dir", "synced")
	v.SetDefault("vault.registry_path", "vault/.registry.json")
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Budget.DailyTokenCeiling <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			"budget.daily_token_ceiling must be positive")
	}
	if c.Retrieval.Threshold < 0 || c.Retrieval.Threshold > 1 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("retrieval.threshold must be in [0,1], got %f", c.Retrieval.Threshold))
	}
	if c.Retrieval.Backend != "sqlite" && c.Retrieval.Backend != "memory" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("retrieval.backend must be sqlite or memory, got %q", c.Retrieval.Backend))
	}
	if c.Embedder.Dimensions <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			"embedder.dimensions must be positive")
	}
	if c.Engine.MaxRetries < 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			"engine.max_retries cannot be negative")
	}
	if c.Vault.Root == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			"vault.root cannot be empty")
	}
	return nil
}
