package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Files      FilesConfig      `yaml:"files" mapstructure:"files"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Browser    BrowserConfig    `yaml:"browser" mapstructure:"browser"`
	Completion CompletionConfig `yaml:"completion" mapstructure:"completion"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite | postgres
	Path        string `yaml:"path" mapstructure:"path"`     // sqlite file
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FilesConfig locates the human-facing data files.
type FilesConfig struct {
	Inbox  string `yaml:"inbox" mapstructure:"inbox"`
	Ledger string `yaml:"ledger" mapstructure:"ledger"`
	Sites  string `yaml:"sites" mapstructure:"sites"`
}

// FetchConfig configures page retrieval.
type FetchConfig struct {
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent        string  `yaml:"user_agent" mapstructure:"user_agent"`
	MinContentLength int     `yaml:"min_content_length" mapstructure:"min_content_length"`
	RequestsPerSec   float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// BrowserConfig configures the headless escalation path.
type BrowserConfig struct {
	Enabled         bool `yaml:"enabled" mapstructure:"enabled"`
	Headless        bool `yaml:"headless" mapstructure:"headless"`
	NavTimeoutSecs  int  `yaml:"nav_timeout_secs" mapstructure:"nav_timeout_secs"`
	SettleDelaySecs int  `yaml:"settle_delay_secs" mapstructure:"settle_delay_secs"`
}

// CompletionConfig configures the model backend that fills residual fields.
type CompletionConfig struct {
	Provider     string          `yaml:"provider" mapstructure:"provider"` // ollama | anthropic
	MaxPageChars int             `yaml:"max_page_chars" mapstructure:"max_page_chars"`
	Ollama       OllamaConfig    `yaml:"ollama" mapstructure:"ollama"`
	Anthropic    AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
}

// OllamaConfig holds local Ollama settings.
type OllamaConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds hosted API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// PipelineConfig configures batch behavior.
type PipelineConfig struct {
	Workers      int  `yaml:"workers" mapstructure:"workers"`
	SkipExisting bool `yaml:"skip_existing" mapstructure:"skip_existing"`
	Normalize    bool `yaml:"normalize" mapstructure:"normalize"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROPSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "data/properties.db")
	v.SetDefault("files.inbox", "data/links-to-scrape.md")
	v.SetDefault("files.ledger", "data/properties-status.md")
	v.SetDefault("files.sites", "config/sites.yaml")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.min_content_length", 1000)
	v.SetDefault("fetch.requests_per_sec", 1)
	v.SetDefault("browser.enabled", true)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.nav_timeout_secs", 60)
	v.SetDefault("browser.settle_delay_secs", 3)
	v.SetDefault("completion.provider", "ollama")
	v.SetDefault("completion.max_page_chars", 10000)
	v.SetDefault("completion.ollama.base_url", "http://localhost:11434")
	v.SetDefault("completion.ollama.model", "llama3.1")
	v.SetDefault("completion.anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.normalize", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return eris.New("config: store.path required for sqlite")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url required for postgres")
		}
	default:
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}

	switch c.Completion.Provider {
	case "ollama":
	case "anthropic":
		if c.Completion.Anthropic.Key == "" {
			return eris.New("config: completion.anthropic.key required")
		}
	default:
		return eris.Errorf("config: unknown completion.provider %q", c.Completion.Provider)
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
