package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig               `yaml:"store" mapstructure:"store"`
	Server     ServerConfig              `yaml:"server" mapstructure:"server"`
	Log        LogConfig                 `yaml:"log" mapstructure:"log"`
	Providers  map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
	Anthropic  AnthropicConfig           `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityConfig          `yaml:"perplexity" mapstructure:"perplexity"`
	Pricing    PricingConfig             `yaml:"pricing" mapstructure:"pricing"`
	Report     ReportConfig              `yaml:"report" mapstructure:"report"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging. When File is set, log lines are also written
// to a size-rotated file.
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// ProviderConfig holds the transport settings of one external provider.
// Enabled flags and credentials live in the store, not here.
type ProviderConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// Timeout returns the per-call deadline, falling back to def when unset.
func (p ProviderConfig) Timeout(def time.Duration) time.Duration {
	if p.TimeoutSecs <= 0 {
		return def
	}
	return time.Duration(p.TimeoutSecs) * time.Second
}

// AnthropicConfig holds the fallback Anthropic credential.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// PerplexityConfig holds the fallback Perplexity credential.
type PerplexityConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// PricingConfig holds per-provider pricing rates.
type PricingConfig struct {
	Anthropic  map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityPricing       `yaml:"perplexity" mapstructure:"perplexity"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// PerplexityPricing holds Perplexity pricing.
type PerplexityPricing struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
	PerMTok  float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
}

// ReportConfig configures PDF report output.
type ReportConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
}

// Provider returns the transport settings for key (zero value when absent).
func (c *Config) Provider(key string) ProviderConfig {
	return c.Providers[key]
}

// FallbackKeys maps provider keys to credentials from the environment, used
// when the stored credential is empty.
func (c *Config) FallbackKeys() map[string]string {
	return map[string]string{
		"anthropic":  c.Anthropic.Key,
		"perplexity": c.Perplexity.Key,
	}
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CREDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("anthropic.key", "CREDIT_ANTHROPIC_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("perplexity.key", "CREDIT_PERPLEXITY_KEY", "PERPLEXITY_API_KEY")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "credito.db")
	v.SetDefault("server.port", 5099)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("report.dir", "reports")
	v.SetDefault("report.enabled", true)

	v.SetDefault("providers.opencnpj.base_url", "https://api.opencnpj.org")
	v.SetDefault("providers.opencnpj.timeout_secs", 10)
	v.SetDefault("providers.brasilapi.base_url", "https://brasilapi.com.br/api/cnpj/v1")
	v.SetDefault("providers.brasilapi.timeout_secs", 10)
	v.SetDefault("providers.cnpja.base_url", "https://api.cnpja.com/office")
	v.SetDefault("providers.cnpja.timeout_secs", 10)
	v.SetDefault("providers.invertexto.base_url", "https://api.invertexto.com/v1/cnpj")
	v.SetDefault("providers.invertexto.timeout_secs", 10)
	v.SetDefault("providers.datajud.base_url", "https://api-publica.datajud.cnj.jus.br/api_publica_tjsp/_search")
	v.SetDefault("providers.datajud.timeout_secs", 15)
	v.SetDefault("providers.anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("providers.anthropic.max_tokens", 2500)
	v.SetDefault("providers.anthropic.timeout_secs", 60)
	v.SetDefault("providers.perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("providers.perplexity.model", "sonar-pro")
	v.SetDefault("providers.perplexity.max_tokens", 2500)
	v.SetDefault("providers.perplexity.timeout_secs", 30)
	v.SetDefault("providers.research.model", "sonar")
	v.SetDefault("providers.research.max_tokens", 800)
	v.SetDefault("providers.research.timeout_secs", 20)

	v.SetDefault("pricing.anthropic", map[string]any{
		"claude-sonnet-4-5-20250929": map[string]any{"input": 3.00, "output": 15.00},
		"claude-haiku-4-5-20251001":  map[string]any{"input": 0.80, "output": 4.00},
	})
	v.SetDefault("pricing.perplexity.per_query", 0.005)
	v.SetDefault("pricing.perplexity.per_mtok", 1.00)
}

// Validate checks the fields a command mode needs.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	case "cli":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	for key, p := range c.Providers {
		if p.TimeoutSecs < 0 {
			errs = append(errs, fmt.Sprintf("providers.%s.timeout_secs must be >= 0", key))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
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

	if cfg.File != "" {
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays,
				Compress:   cfg.Compress,
			}),
			zapCfg.Level,
		)
		logger = logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore)
		}))
	}

	zap.ReplaceGlobals(logger)

	return nil
}
