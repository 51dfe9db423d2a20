package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Ranking policies for the signal classifier. They are not interchangeable:
// a run always states which one it used.
const (
	RankByZScore    = "zscore"
	RankByLiquidity = "liquidity"
)

// EnvPrefix is the prefix for environment overrides (EVEMO_DB_PATH, ...).
const EnvPrefix = "EVEMO"

// Config holds all settings for one analyzer process. It is built once at startup
// and handed to each component by value or pointer; components never mutate it.
type Config struct {
	ESI      ESIConfig      `yaml:"esi"`
	Database DatabaseConfig `yaml:"database"`
	Market   MarketConfig   `yaml:"market"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Export   ExportConfig   `yaml:"export"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ESIConfig configures the resilient fetch client.
type ESIConfig struct {
	BaseURL            string        `yaml:"base_url" default:"https://esi.evetech.net/latest" validate:"required,url"`
	UserAgent          string        `yaml:"user_agent" default:"eve-mo-market-analyzer/0.1" validate:"required"`
	Timeout            time.Duration `yaml:"timeout" default:"20s" validate:"gt=0"`
	MaxRetries         int           `yaml:"max_retries" default:"3" validate:"min=1,max=10"`
	RequestDelay       time.Duration `yaml:"request_delay" default:"250ms" validate:"gte=0"`
	NetworkBackoff     time.Duration `yaml:"network_backoff" default:"2s" validate:"gte=0"`
	RateLimitBackoff   time.Duration `yaml:"rate_limit_backoff" default:"5s" validate:"gte=0"`
	ServerErrorBackoff time.Duration `yaml:"server_error_backoff" default:"5s" validate:"gte=0"`
}

// DatabaseConfig locates the SQLite store.
type DatabaseConfig struct {
	Path string `yaml:"path" default:"eve_market.db" validate:"required"`
}

// MarketConfig selects which series are ingested.
type MarketConfig struct {
	RegionIDs  []int32  `yaml:"region_ids" default:"[10000002]" validate:"min=1,dive,gt=0"`
	RootGroups []string `yaml:"root_groups" default:"[\"Ship Equipment\",\"Ship and Module Modifications\",\"Ammunition & Charges\"]" validate:"min=1,dive,required"`
	MaxTypes   int      `yaml:"max_types" default:"2000" validate:"min=1"`
}

// AnalysisConfig holds the rolling-statistics and ranking parameters.
type AnalysisConfig struct {
	Window          int     `yaml:"window" default:"30" validate:"min=2"`
	MinObservations int     `yaml:"min_observations" default:"5" validate:"min=2,ltefield=Window"`
	ZThreshold      float64 `yaml:"z_threshold" default:"1.5" validate:"gt=0"`
	Ranking         string  `yaml:"ranking" default:"zscore" validate:"oneof=zscore liquidity"`
	TopN            int     `yaml:"top_n" default:"50" validate:"min=1"`
	Workers         int     `yaml:"workers" default:"1" validate:"min=1,max=32"`
}

// ExportConfig names the export artifacts. The extension picks the format
// (.csv or .xlsx); an empty SellPath skips the SELL export.
type ExportConfig struct {
	BuyPath  string `yaml:"buy_path" default:"jita_undervalued_top50.csv" validate:"required"`
	SellPath string `yaml:"sell_path"`
}

// ServerConfig configures serve mode.
type ServerConfig struct {
	Listen     string `yaml:"listen" default:"127.0.0.1:13370" validate:"required,hostname_port"`
	Schedule   string `yaml:"schedule"`
	RunOnStart bool   `yaml:"run_on_start"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=console json"`
}

// envOverrides lists the settings that can be changed per process without a file.
type envOverrides struct {
	DBPath    string `envconfig:"DB_PATH"`
	UserAgent string `envconfig:"USER_AGENT"`
	LogLevel  string `envconfig:"LOG_LEVEL"`
	Workers   int    `envconfig:"WORKERS"`
	Listen    string `envconfig:"LISTEN"`
	Schedule  string `envconfig:"SCHEDULE"`
}

var validate = validator.New()

// Default returns a Config with the analyzer defaults.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}

// Load builds the configuration: defaults, then the YAML file at path (a missing
// file is not an error), then EVEMO_* environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("env config: %w", err)
	}
	if env.DBPath != "" {
		c.Database.Path = env.DBPath
	}
	if env.UserAgent != "" {
		c.ESI.UserAgent = env.UserAgent
	}
	if env.LogLevel != "" {
		c.Logging.Level = env.LogLevel
	}
	if env.Workers > 0 {
		c.Analysis.Workers = env.Workers
	}
	if env.Listen != "" {
		c.Server.Listen = env.Listen
	}
	if env.Schedule != "" {
		c.Server.Schedule = env.Schedule
	}
	return nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	return validate.Struct(c)
}
