package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Notion      NotionConfig      `yaml:"notion" mapstructure:"notion"`
	Metaculus   MetaculusConfig   `yaml:"metaculus" mapstructure:"metaculus"`
	Perplexity  PerplexityConfig  `yaml:"perplexity" mapstructure:"perplexity"`
	Jina        JinaConfig        `yaml:"jina" mapstructure:"jina"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI      OpenAIConfig      `yaml:"openai" mapstructure:"openai"`
	Research    ResearchConfig    `yaml:"research" mapstructure:"research"`
	Synthesizer SynthesizerConfig `yaml:"synthesizer" mapstructure:"synthesizer"`
	Assess      AssessConfig      `yaml:"assess" mapstructure:"assess"`
	Pricing     PricingConfig     `yaml:"pricing" mapstructure:"pricing"`
	Monitoring  MonitoringConfig  `yaml:"monitoring" mapstructure:"monitoring"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
}

// NotionConfig holds Notion API credentials and the question registry DB.
type NotionConfig struct {
	Token      string `yaml:"token" mapstructure:"token"`
	QuestionDB string `yaml:"question_db" mapstructure:"question_db"`
}

// MetaculusConfig holds Metaculus API settings.
type MetaculusConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Token   string `yaml:"token" mapstructure:"token"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// JinaConfig holds Jina AI search and reader settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
	ReaderBaseURL string `yaml:"reader_base_url" mapstructure:"reader_base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// OpenAIConfig holds settings for an OpenAI-compatible gateway
// (OpenAI itself, OpenRouter, or any proxy speaking the same API).
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// ResearchConfig configures evidence collection.
type ResearchConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	MaxResults    int    `yaml:"max_results" mapstructure:"max_results"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retries       int    `yaml:"retries" mapstructure:"retries"`
	CacheTTLMins  int    `yaml:"cache_ttl_mins" mapstructure:"cache_ttl_mins"`
	CacheDisabled bool   `yaml:"cache_disabled" mapstructure:"cache_disabled"`
	SiteFilter    string `yaml:"site_filter" mapstructure:"site_filter"`
	DeepReads     int    `yaml:"deep_reads" mapstructure:"deep_reads"`
}

// SynthesizerConfig configures the rationale synthesizer.
type SynthesizerConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"`
	MaxQuotes int    `yaml:"max_quotes" mapstructure:"max_quotes"`
}

// AssessConfig configures assessment runs.
type AssessConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// PricingConfig holds per-provider pricing rates.
type PricingConfig struct {
	Anthropic  map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     map[string]ModelPricing `yaml:"openai" mapstructure:"openai"`
	Jina       JinaPricing             `yaml:"jina" mapstructure:"jina"`
	Perplexity PerplexityPricing       `yaml:"perplexity" mapstructure:"perplexity"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// JinaPricing holds Jina search pricing.
type JinaPricing struct {
	PerMTok float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
}

// PerplexityPricing holds Perplexity pricing.
type PerplexityPricing struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// MonitoringConfig configures run metrics checks and webhook alerting.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	AccuracyFloor        float64 `yaml:"accuracy_floor" mapstructure:"accuracy_floor"`
	CostThresholdUSD     float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
}

// ServerConfig configures the read-only HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. An empty path falls
// back to the search locations; a non-empty path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.resolver")
	}

	// Environment
	v.SetEnvPrefix("RESOLVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "resolver.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("metaculus.base_url", "https://www.metaculus.com/api")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("jina.reader_base_url", "https://r.jina.ai")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("openai.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openai.model", "openai/gpt-4o")
	v.SetDefault("research.provider", "perplexity")
	v.SetDefault("research.max_results", 8)
	v.SetDefault("research.timeout_secs", 60)
	v.SetDefault("research.retries", 2)
	v.SetDefault("research.cache_ttl_mins", 30)
	v.SetDefault("research.deep_reads", 2)
	v.SetDefault("synthesizer.provider", "anthropic")
	v.SetDefault("synthesizer.max_quotes", 5)
	v.SetDefault("assess.concurrency", 5)
	v.SetDefault("pricing.jina.per_mtok", 0.02)
	v.SetDefault("pricing.perplexity.per_query", 0.005)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.accuracy_floor", 0.5)
	v.SetDefault("monitoring.cost_threshold_usd", 100.0)

	// Read config file (optional unless a path was given)
	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if path != "" || !notFound {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for a given invocation mode. Modes map
// to commands: "assess" and "resolve" need provider credentials, "runs"
// needs a store, "serve" needs a store and a listen port.
func (c *Config) Validate(mode string) error {
	var problems []string

	checkStore := func() {
		switch c.Store.Driver {
		case "sqlite":
			if c.Store.Path == "" {
				problems = append(problems, "store.path is required for the sqlite driver")
			}
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for the postgres driver")
			}
		default:
			problems = append(problems, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
		}
	}

	checkProviders := func() {
		switch c.Research.Provider {
		case "perplexity":
			if c.Perplexity.Key == "" {
				problems = append(problems, "perplexity.key is required")
			}
		case "jina":
			if c.Jina.Key == "" {
				problems = append(problems, "jina.key is required")
			}
		default:
			problems = append(problems, fmt.Sprintf("research.provider must be perplexity or jina, got %q", c.Research.Provider))
		}

		switch c.Synthesizer.Provider {
		case "anthropic":
			if c.Anthropic.Key == "" {
				problems = append(problems, "anthropic.key is required")
			}
		case "openai":
			if c.OpenAI.Key == "" {
				problems = append(problems, "openai.key is required")
			}
		case "none":
			// Deterministic labeling only.
		default:
			problems = append(problems, fmt.Sprintf("synthesizer.provider must be anthropic, openai, or none, got %q", c.Synthesizer.Provider))
		}

		if c.Research.MaxResults < 1 || c.Research.MaxResults > 50 {
			problems = append(problems, "research.max_results must be between 1 and 50")
		}
	}

	switch mode {
	case "assess":
		checkProviders()
		if c.Assess.Concurrency < 1 || c.Assess.Concurrency > 50 {
			problems = append(problems, "assess.concurrency must be between 1 and 50")
		}
	case "resolve":
		checkProviders()
	case "runs":
		checkStore()
	case "serve":
		checkStore()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
