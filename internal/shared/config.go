package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Services   ServicesConfig   `toml:"services"`
	Genres     []string         `toml:"genres"`
	Database   DatabaseConfig   `toml:"database"`
	Redis      RedisConfig      `toml:"redis"`
	Popularity PopularityConfig `toml:"popularity"`
	Schedule   ScheduleConfig   `toml:"schedule"`
}

// ServicesConfig contains the cross-service aggregation settings.
type ServicesConfig struct {
	// Priority is the service order used to break ties when a track charts on
	// more than one service. Highest priority first.
	Priority []string `toml:"priority"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// RedisConfig contains settings for the provider response cache.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	TTLMinutes int    `toml:"ttl_minutes"`
}

// PopularityConfig tunes the popularity collection batch.
type PopularityConfig struct {
	Workers          int     `toml:"workers"`
	MaxAttempts      int     `toml:"max_attempts"`
	RateLimit        float64 `toml:"rate_limit"`
	CheckEvery       int     `toml:"check_every"`
	MinSampleSize    int     `toml:"min_sample_size"`
	FailureThreshold float64 `toml:"failure_threshold"`
	RateLimitShare   float64 `toml:"rate_limit_share"`
	SpotifyClientID  string  `toml:"spotify_client_id"`
	SpotifySecret    string  `toml:"spotify_client_secret"`
	YouTubeAPIKey    string  `toml:"youtube_api_key"`
}

// ScheduleConfig describes the ETL schedule used to gate cache clears.
type ScheduleConfig struct {
	Cron          string `toml:"cron"`
	WindowMinutes int    `toml:"window_minutes"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
