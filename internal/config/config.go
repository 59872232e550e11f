package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"stockcast/internal/forecast"
)

// Config represents the application configuration
type Config struct {
	API      APIConfig       `yaml:"api"`
	Server   ServerConfig    `yaml:"server"`
	Forecast forecast.Config `yaml:"forecast"`
	Cache    CacheConfig     `yaml:"cache"`
	Log      LogConfig       `yaml:"log"`
}

// APIConfig holds API provider configurations
type APIConfig struct {
	Yahoo        ProviderConfig `yaml:"yahoo"`
	AlphaVantage ProviderConfig `yaml:"alphavantage"`
	Screener     ProviderConfig `yaml:"screener"`
	Breaker      BreakerConfig  `yaml:"breaker"`
}

// ProviderConfig holds individual provider settings
type ProviderConfig struct {
	Key       string `yaml:"key"`
	RateLimit int    `yaml:"rate_limit"` // requests per minute
}

// BreakerConfig holds circuit breaker settings shared by all providers
type BreakerConfig struct {
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
	Timeout             time.Duration `yaml:"timeout"`
	Interval            time.Duration `yaml:"interval"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CacheConfig holds the memo settings. Redis is used only when RedisAddr
// is set.
type CacheConfig struct {
	MemoTTL       time.Duration `yaml:"memo_ttl"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	RedisTTL      time.Duration `yaml:"redis_ttl"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console, json or auto
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Yahoo: ProviderConfig{
				RateLimit: 60,
			},
			AlphaVantage: ProviderConfig{
				RateLimit: 5,
			},
			Screener: ProviderConfig{
				RateLimit: 30,
			},
			Breaker: BreakerConfig{
				ConsecutiveFailures: 5,
				Timeout:             30 * time.Second,
				Interval:            time.Minute,
			},
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    3 * time.Minute,
			RequestTimeout:  2 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Forecast: forecast.DefaultConfig(),
		Cache: CacheConfig{
			MemoTTL:  15 * time.Minute,
			RedisTTL: time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Variables from a .env file in the working directory are loaded
// first; environment variables override the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides settings with environment variables if set
func (c *Config) applyEnv() error {
	if key := os.Getenv("ALPHAVANTAGE_API_KEY"); key != "" {
		c.API.AlphaVantage.Key = key
	}
	if addr := os.Getenv("STOCKCAST_REDIS_ADDR"); addr != "" {
		c.Cache.RedisAddr = addr
	}
	if lvl := os.Getenv("STOCKCAST_LOG_LEVEL"); lvl != "" {
		c.Log.Level = lvl
	}
	if port := os.Getenv("HTTP_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid HTTP_PORT %q: %w", port, err)
		}
		c.Server.Port = p
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.API.Yahoo.RateLimit < 1 {
		return fmt.Errorf("api.yahoo.rate_limit must be at least 1")
	}
	if c.API.AlphaVantage.Key != "" && c.API.AlphaVantage.RateLimit < 1 {
		return fmt.Errorf("api.alphavantage.rate_limit must be at least 1")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive")
	}
	if err := c.Forecast.Validate(); err != nil {
		return fmt.Errorf("forecast: %w", err)
	}
	if c.Cache.MemoTTL < 0 || c.Cache.RedisTTL < 0 {
		return fmt.Errorf("cache ttl must not be negative")
	}
	switch c.Log.Format {
	case "", "auto", "console", "text", "json":
	default:
		return fmt.Errorf("log.format must be console, json or auto, got %q", c.Log.Format)
	}
	return nil
}
