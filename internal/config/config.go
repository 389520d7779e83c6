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
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Tokenizer TokenizerConfig `yaml:"tokenizer" mapstructure:"tokenizer"`
	Pool      PoolConfig      `yaml:"pool" mapstructure:"pool"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Select    SelectConfig    `yaml:"select" mapstructure:"select"`
	Buckets   BucketsConfig   `yaml:"buckets" mapstructure:"buckets"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TokenizerConfig selects the token encoding used for every count.
type TokenizerConfig struct {
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
}

// PoolConfig sizes the worker pool and its retry policy.
type PoolConfig struct {
	Workers          int `yaml:"workers" mapstructure:"workers"`
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// StoreConfig configures the artifact store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Dir         string `yaml:"dir" mapstructure:"dir"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SelectConfig configures the select stage.
type SelectConfig struct {
	Percentile float64 `yaml:"percentile" mapstructure:"percentile"`
}

// BucketsConfig configures prompt matching.
type BucketsConfig struct {
	// Normalize enables case, punctuation and whitespace folding of system
	// prompts before lookup. Off means exact match.
	Normalize bool `yaml:"normalize" mapstructure:"normalize"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CURATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("tokenizer.encoding", "o200k_base")
	v.SetDefault("pool.workers", 0)
	v.SetDefault("pool.max_attempts", 3)
	v.SetDefault("pool.initial_backoff_ms", 50)
	v.SetDefault("pool.max_backoff_ms", 2000)
	v.SetDefault("store.driver", "fs")
	v.SetDefault("store.dir", "classified_output")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("select.percentile", 10)
	v.SetDefault("buckets.normalize", false)

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

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is the command name:
// "prompts", "classify", "select" or "run".
func (c *Config) Validate(mode string) error {
	var errs []string

	if c.Pool.Workers < 0 {
		errs = append(errs, "pool.workers must be >= 0")
	}
	if c.Pool.MaxAttempts < 1 {
		errs = append(errs, "pool.max_attempts must be >= 1")
	}

	switch mode {
	case "classify", "select", "run":
		switch c.Store.Driver {
		case "memory", "fs", "sqlite":
		case "postgres":
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required for the postgres driver")
			}
		default:
			errs = append(errs, fmt.Sprintf("store.driver %q is not one of fs, memory, sqlite, postgres", c.Store.Driver))
		}
	}

	switch mode {
	case "classify", "run":
		if c.Tokenizer.Encoding == "" {
			errs = append(errs, "tokenizer.encoding is required")
		}
	}

	switch mode {
	case "select", "run":
		if !(c.Select.Percentile > 0 && c.Select.Percentile <= 100) {
			errs = append(errs, fmt.Sprintf("select.percentile %v must be in (0, 100]", c.Select.Percentile))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
