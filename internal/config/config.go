package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Search    SearchConfig    `yaml:"search"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Sync      SyncConfig      `yaml:"sync"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port           string   `yaml:"port" env:"PORT"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Type   string       `yaml:"type" env:"DB_TYPE"`
	MySQL  MySQLConfig  `yaml:"mysql"`
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// MySQLConfig contains MySQL connection settings
type MySQLConfig struct {
	Host     string `yaml:"host" env:"DB_HOST"`
	Port     int    `yaml:"port" env:"DB_PORT"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	Database string `yaml:"database" env:"DB_NAME"`
}

// SQLiteConfig contains SQLite settings (local development and tests)
type SQLiteConfig struct {
	Path string `yaml:"path" env:"SQLITE_PATH"`
}

// SearchConfig contains search engine settings
type SearchConfig struct {
	Meilisearch MeilisearchConfig `yaml:"meilisearch"`
}

// MeilisearchConfig contains Meilisearch connection settings
type MeilisearchConfig struct {
	Host   string `yaml:"host" env:"MEILISEARCH_HOST"`
	APIKey string `yaml:"api_key" env:"MEILISEARCH_KEY"`
}

// UpstreamConfig contains settings for the property data provider
type UpstreamConfig struct {
	BaseURL             string `yaml:"base_url" env:"PROVIDER_BASE_URL"`
	APIKey              string `yaml:"api_key" env:"PROVIDER_API_KEY"`
	TimeoutSeconds      int    `yaml:"timeout_seconds"`
	MaxRetries          int    `yaml:"max_retries"`
	RetryDelaySeconds   int    `yaml:"retry_delay_seconds"`
	PageSize            int    `yaml:"page_size"`
	RequestDelayMillis  int    `yaml:"request_delay_millis"`
	RequestJitterMillis int    `yaml:"request_jitter_millis"`
}

// CityScope identifies one sync scope.
type CityScope struct {
	City  string `yaml:"city" json:"city"`
	State string `yaml:"state" json:"state"`
}

// SyncConfig contains sync orchestrator settings
type SyncConfig struct {
	Cities               []CityScope `yaml:"cities"`
	DailyRunEnabled      bool        `yaml:"daily_run_enabled"`
	DailyRunTime         string      `yaml:"daily_run_time"`
	UpdateExisting       bool        `yaml:"update_existing"`
	Limit                int         `yaml:"limit"`
	MissedSyncThreshold  int         `yaml:"missed_sync_threshold"`
	SearchRefreshMinutes int         `yaml:"search_refresh_minutes"`
	WeeklyPurgeEnabled   bool        `yaml:"weekly_purge_enabled"`
	EnrichPollSeconds    int         `yaml:"enrich_poll_seconds"`
}

// RateLimitConfig contains upstream quota settings
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	RequestsPerHour   int  `yaml:"requests_per_hour"`
	RequestsPerDay    int  `yaml:"requests_per_day"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8084",
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Database: DatabaseConfig{
			Type: "mysql",
			MySQL: MySQLConfig{
				Host:     "db",
				Port:     3306,
				User:     "listing_user",
				Password: "listing_pass",
				Database: "listing_db",
			},
			SQLite: SQLiteConfig{
				Path: "listing-portal.db",
			},
		},
		Search: SearchConfig{
			Meilisearch: MeilisearchConfig{
				Host: "http://meilisearch:7700",
			},
		},
		Upstream: UpstreamConfig{
			BaseURL:             "https://api.rentcast.io/v1",
			TimeoutSeconds:      30,
			MaxRetries:          3,
			RetryDelaySeconds:   2,
			PageSize:            50,
			RequestDelayMillis:  500,
			RequestJitterMillis: 250,
		},
		Sync: SyncConfig{
			DailyRunEnabled:      false,
			DailyRunTime:         "02:00",
			UpdateExisting:       true,
			Limit:                500,
			MissedSyncThreshold:  3,
			SearchRefreshMinutes: 15,
			WeeklyPurgeEnabled:   false,
			EnrichPollSeconds:    30,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 30,
			RequestsPerHour:   500,
			RequestsPerDay:    5000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration from a YAML file, then applies environment
// overrides on top. A missing file is not an error.
func LoadConfig(filepath string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(filepath); err == nil {
		data, err := os.ReadFile(filepath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return config, nil
}

// GetTimeout returns the upstream request timeout as a duration
func (c *UpstreamConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GetRetryDelay returns the base retry delay as a duration
func (c *UpstreamConfig) GetRetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// GetRequestDelay returns the pacing delay between paged fetches
func (c *UpstreamConfig) GetRequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMillis) * time.Millisecond
}

// GetRequestJitter returns the jitter added to the pacing delay
func (c *UpstreamConfig) GetRequestJitter() time.Duration {
	return time.Duration(c.RequestJitterMillis) * time.Millisecond
}
