package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"ALPHAVANTAGE_API_KEY", "STOCKCAST_REDIS_ADDR", "STOCKCAST_LOG_LEVEL", "HTTP_PORT"} {
		t.Setenv(k, "")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 30, cfg.Forecast.Window)
	assert.Equal(t, 0.8, cfg.Forecast.TrainRatio)
}

func TestLoadFileAndEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  alphavantage:
    key: from-file
    rate_limit: 25
server:
  port: 9000
  request_timeout: 45s
forecast:
  horizon: 10
cache:
  memo_ttl: 5m
log:
  format: json
`), 0o644))

	t.Setenv("ALPHAVANTAGE_API_KEY", "from-env")
	t.Setenv("STOCKCAST_REDIS_ADDR", "localhost:6379")
	t.Setenv("HTTP_PORT", "8181")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.API.AlphaVantage.Key)
	assert.Equal(t, 25, cfg.API.AlphaVantage.RateLimit)
	assert.Equal(t, 60, cfg.API.Yahoo.RateLimit)
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, 45*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 10, cfg.Forecast.Horizon)
	assert.Equal(t, 5, cfg.Forecast.ARLags)
	assert.Equal(t, 5*time.Minute, cfg.Cache.MemoTTL)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "0.0.0.0:8181", cfg.Server.Addr())
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [1, 2"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)

	t.Setenv("HTTP_PORT", "eighty")
	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"yahoo rate", func(c *Config) { c.API.Yahoo.RateLimit = 0 }},
		{"alphavantage rate", func(c *Config) {
			c.API.AlphaVantage.Key = "k"
			c.API.AlphaVantage.RateLimit = 0
		}},
		{"train ratio", func(c *Config) { c.Forecast.TrainRatio = 1 }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"timeout", func(c *Config) { c.Server.RequestTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
