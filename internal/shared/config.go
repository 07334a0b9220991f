package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override secrets from the config file.
const (
	EnvNewsAPIKey          = "MDASH_NEWS_API_KEY"
	EnvAppleDeveloperToken = "MDASH_APPLE_DEVELOPER_TOKEN"
	EnvAppleUserToken      = "MDASH_APPLE_USER_TOKEN"
	EnvRedisPassword       = "MDASH_REDIS_PASSWORD"
	EnvStoreDriver         = "MDASH_STORE_DRIVER"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Store       StoreConfig       `toml:"store"`
	Server      ServerConfig      `toml:"server"`
	Log         LogConfig         `toml:"log"`
	Playlist    PlaylistConfig    `toml:"playlist"`
	Retry       RetryConfig       `toml:"retry"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	AppleMusic AppleMusicConfig `toml:"apple_music"`
	News       NewsConfig       `toml:"news"`
}

// AppleMusicConfig contains Apple Music API credentials.
//
// DeveloperToken takes precedence; otherwise a token is signed from TeamID, KeyID and the key at PrivateKeyPath.
type AppleMusicConfig struct {
	DeveloperToken string `toml:"developer_token"`
	TeamID         string `toml:"team_id"`
	KeyID          string `toml:"key_id"`
	PrivateKeyPath string `toml:"private_key_path"`
	UserToken      string `toml:"user_token"`
	Storefront     string `toml:"storefront"`
	BaseURL        string `toml:"base_url"`
}

// NewsConfig contains the news API key and source endpoints.
type NewsConfig struct {
	APIKey    string `toml:"api_key"`
	BaseURL   string `toml:"base_url"`
	ScrapeURL string `toml:"scrape_url"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// StoreConfig selects the record store backend.
type StoreConfig struct {
	Driver        string `toml:"driver"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr joins host and port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig contains logger settings. File enables a rotated log file next to stderr output.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// PlaylistConfig contains playlist generation settings.
type PlaylistConfig struct {
	Size        int `toml:"size"`
	SeedDelayMS int `toml:"seed_delay_ms"`
}

// SeedDelay is the pause enforced between seed searches.
func (p PlaylistConfig) SeedDelay() time.Duration {
	return time.Duration(p.SeedDelayMS) * time.Millisecond
}

// RetryConfig contains backoff settings for rate limited calls.
type RetryConfig struct {
	MaxAttempts    int `toml:"max_attempts"`
	InitialDelayMS int `toml:"initial_delay_ms"`
}

// Policy converts the config to a [RetryPolicy].
func (r RetryConfig) Policy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  r.MaxAttempts,
		InitialDelay: time.Duration(r.InitialDelayMS) * time.Millisecond,
	}
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
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
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv loads the given .env files (default ".env") into the process environment and applies
// MDASH_* overrides to config. A missing .env file is not an error.
func LoadEnv(config *Config, files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	ApplyEnv(config)
	return nil
}

// ApplyEnv overrides secrets in config from the environment.
func ApplyEnv(config *Config) {
	if v, ok := os.LookupEnv(EnvNewsAPIKey); ok {
		config.Credentials.News.APIKey = v
	}
	if v, ok := os.LookupEnv(EnvAppleDeveloperToken); ok {
		config.Credentials.AppleMusic.DeveloperToken = v
	}
	if v, ok := os.LookupEnv(EnvAppleUserToken); ok {
		config.Credentials.AppleMusic.UserToken = v
	}
	if v, ok := os.LookupEnv(EnvRedisPassword); ok {
		config.Store.RedisPassword = v
	}
	if v, ok := os.LookupEnv(EnvStoreDriver); ok {
		config.Store.Driver = v
	}
	if v, ok := os.LookupEnv("MDASH_SERVER_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
}
