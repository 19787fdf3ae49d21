// Package config loads the crawld application configuration from a YAML
// file with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the daemon-wide settings. Per-source settings live on the
// sources themselves.
type Config struct {
	DatabasePath string `yaml:"database_path"`
	LogLevel     string `yaml:"log_level"`
	SourcesFile  string `yaml:"sources_file"`
	UserAgent    string `yaml:"user_agent"`
	WebhookURL   string `yaml:"webhook_url"`

	// Scheduler knobs. Zero values take the defaults below.
	RetryDelayMinutes      int `yaml:"retry_delay_minutes"`
	ReconcileThreshold     int `yaml:"reconcile_threshold"`
	DefaultIntervalMinutes int `yaml:"default_interval_minutes"`
	BrowserSettleSeconds   int `yaml:"browser_settle_seconds"`
	FetchTimeoutSeconds    int `yaml:"fetch_timeout_seconds"`
	SchedulerWorkers       int `yaml:"scheduler_workers"`
	SchedulerTickSeconds   int `yaml:"scheduler_tick_seconds"`
}

const (
	defaultDatabasePath  = "crawld.db"
	defaultLogLevel      = "info"
	defaultUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	defaultRetryDelay    = 30
	defaultThreshold     = 3
	defaultInterval      = 10
	defaultSettleSeconds = 3
	defaultFetchTimeout  = 30
	defaultWorkers       = 4
	defaultTickSeconds   = 1
)

// Load reads the config file at path (missing file is not an error; the
// defaults apply), then applies CRAWLD_* environment overrides. A .env
// file in the working directory is loaded first if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabasePath:           defaultDatabasePath,
		LogLevel:               defaultLogLevel,
		UserAgent:              defaultUserAgent,
		RetryDelayMinutes:      defaultRetryDelay,
		ReconcileThreshold:     defaultThreshold,
		DefaultIntervalMinutes: defaultInterval,
		BrowserSettleSeconds:   defaultSettleSeconds,
		FetchTimeoutSeconds:    defaultFetchTimeout,
		SchedulerWorkers:       defaultWorkers,
		SchedulerTickSeconds:   defaultTickSeconds,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CRAWLD_DB"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("CRAWLD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CRAWLD_SOURCES"); v != "" {
		cfg.SourcesFile = v
	}
	if v := os.Getenv("CRAWLD_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("CRAWLD_WEBHOOK_URL"); v != "" {
		cfg.WebhookURL = v
	}
	if v, ok := envInt("CRAWLD_RETRY_DELAY_MINUTES"); ok {
		cfg.RetryDelayMinutes = v
	}
	if v, ok := envInt("CRAWLD_RECONCILE_THRESHOLD"); ok {
		cfg.ReconcileThreshold = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// RetryDelay returns the failure retry delay as a duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMinutes) * time.Minute
}

// FetchTimeout returns the per-fetch timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// BrowserSettle returns the rendered-fetch settle time as a duration.
func (c *Config) BrowserSettle() time.Duration {
	return time.Duration(c.BrowserSettleSeconds) * time.Second
}

// SchedulerTick returns the scheduler check interval as a duration.
func (c *Config) SchedulerTick() time.Duration {
	return time.Duration(c.SchedulerTickSeconds) * time.Second
}
