package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Trading212 Trading212Config `yaml:"trading212"`
	Refresh    RefreshConfig    `yaml:"refresh"`
	Persist    PersistConfig    `yaml:"persist"`
	Database   DatabaseConfig   `yaml:"database"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Web        WebConfig        `yaml:"web"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type Trading212Config struct {
	Token          string `yaml:"token"`
	BaseURL        string `yaml:"base_url"`
	RequestTimeout string `yaml:"request_timeout"`
	Currency       string `yaml:"currency"`
}

type RefreshConfig struct {
	Interval string `yaml:"interval"`
}

type PersistConfig struct {
	Path     string `yaml:"path"`
	Schedule string `yaml:"schedule"`
}

type DatabaseConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Retention string `yaml:"retention"`
}

type TelegramConfig struct {
	Enabled       bool   `yaml:"enabled"`
	BotToken      string `yaml:"bot_token"`
	ChatID        int64  `yaml:"chat_id"`
	FailureStreak int    `yaml:"failure_streak"`
}

type WebConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Port           int    `yaml:"port"`
	HistoryWindow  string `yaml:"history_window"`
	SampleInterval string `yaml:"sample_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML file at path, applies environment overrides and
// defaults, then validates. A missing file is fine when the environment
// supplies what is required.
func Load(path string) (*Config, error) {
	cfg, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// LoadUnvalidated is Load without Validate, for tools that only read local state.
func LoadUnvalidated(path string) (*Config, error) {
	return parse(path)
}

func parse(path string) (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{Enabled: true},
		Web:      WebConfig{Enabled: true},
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	setDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TRADING212_API_TOKEN"); v != "" {
		cfg.Trading212.Token = v
	}
	if v := os.Getenv("TRADING212_BASE_URL"); v != "" {
		cfg.Trading212.BaseURL = v
	}
	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		cfg.Refresh.Interval = v
	}
	if v := os.Getenv("PIES_PATH"); v != "" {
		cfg.Persist.Path = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Trading212.BaseURL == "" {
		cfg.Trading212.BaseURL = "https://live.trading212.com/api/v0"
	}
	if cfg.Trading212.RequestTimeout == "" {
		cfg.Trading212.RequestTimeout = "15s"
	}
	if cfg.Trading212.Currency == "" {
		cfg.Trading212.Currency = "EUR"
	}
	if cfg.Refresh.Interval == "" {
		cfg.Refresh.Interval = "3s"
	}
	if cfg.Persist.Path == "" {
		cfg.Persist.Path = "pies.json"
	}
	if cfg.Persist.Schedule == "" {
		cfg.Persist.Schedule = "@every 30s"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/pie-watch.db"
	}
	if cfg.Database.Retention == "" {
		cfg.Database.Retention = "168h"
	}
	if cfg.Telegram.FailureStreak == 0 {
		cfg.Telegram.FailureStreak = 5
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Web.HistoryWindow == "" {
		cfg.Web.HistoryWindow = "1h"
	}
	if cfg.Web.SampleInterval == "" {
		cfg.Web.SampleInterval = "5s"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

func (c *Config) Validate() error {
	if c.Trading212.Token == "" {
		return fmt.Errorf("trading212.token is required (or set TRADING212_API_TOKEN)")
	}
	durations := []struct {
		name, value string
	}{
		{"trading212.request_timeout", c.Trading212.RequestTimeout},
		{"refresh.interval", c.Refresh.Interval},
		{"database.retention", c.Database.Retention},
		{"web.history_window", c.Web.HistoryWindow},
		{"web.sample_interval", c.Web.SampleInterval},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.name, d.value, err)
		}
		if v <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}
	if c.Persist.Path == "" {
		return fmt.Errorf("persist.path is required")
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

func (c *Config) RefreshInterval() time.Duration {
	d, _ := time.ParseDuration(c.Refresh.Interval)
	return d
}

func (c *Config) RequestTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Trading212.RequestTimeout)
	return d
}

func (c *Config) Retention() time.Duration {
	d, _ := time.ParseDuration(c.Database.Retention)
	return d
}

func (c *Config) HistoryWindow() time.Duration {
	d, _ := time.ParseDuration(c.Web.HistoryWindow)
	return d
}

func (c *Config) SampleInterval() time.Duration {
	d, _ := time.ParseDuration(c.Web.SampleInterval)
	return d
}
