package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for folio.
//
// Rebalancing policy, retention limits and the reporting currency are not part of it:
// they are constants of the cryptofolio and history packages.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`
	Clients ClientsConfig `toml:"clients"`
	Prompts PromptsConfig `toml:"prompts"`
	Logging LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig selects where holdings and history are persisted.
type StorageConfig struct {
	Backend string `toml:"backend"` // "file" or "badger"
	Path    string `toml:"path"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	CoinMarketCap CoinMarketCapConfig `toml:"coinmarketcap"`
	Gemini        GeminiConfig        `toml:"gemini"`
}

// CoinMarketCapConfig holds CoinMarketCap API configuration
type CoinMarketCapConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *CoinMarketCapConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	Timeout string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *GeminiConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// PromptsConfig points to a directory overriding the built-in prompts.
type PromptsConfig struct {
	Dir string `toml:"dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `toml:"level"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 10000,
		},
		Storage: StorageConfig{
			Backend: "file",
			Path:    "data",
		},
		Clients: ClientsConfig{
			CoinMarketCap: CoinMarketCapConfig{
				BaseURL:   "https://pro-api.coinmarketcap.com",
				RateLimit: 5,
				Timeout:   "15s",
			},
			Gemini: GeminiConfig{
				Model:   "gemini-2.5-flash",
				Timeout: "2m",
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// Later files override earlier ones, missing files are skipped.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if host := os.Getenv("FOLIO_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("FOLIO_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("FOLIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("FOLIO_DATA_PATH"); path != "" {
		config.Storage.Path = filepath.Clean(path)
	}

	if backend := os.Getenv("FOLIO_STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = strings.ToLower(backend)
	}

	if dir := os.Getenv("FOLIO_PROMPTS_DIR"); dir != "" {
		config.Prompts.Dir = dir
	}

	if key := os.Getenv("CMC_API_KEY"); key != "" {
		config.Clients.CoinMarketCap.APIKey = key
	}

	// GOOGLE_API_KEY is the variable genai reads by itself, honor it too.
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Clients.Gemini.APIKey = key
	} else if key := os.Getenv("GOOGLE_API_KEY"); key != "" && config.Clients.Gemini.APIKey == "" {
		config.Clients.Gemini.APIKey = key
	}
}

// Addr returns the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
