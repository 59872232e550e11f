package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"stockcast/internal/cache"
	"stockcast/internal/config"
	"stockcast/internal/forecast"
	"stockcast/internal/metrics"
	"stockcast/internal/provider"
	"stockcast/internal/ratelimit"
)

// app holds the wired services shared by all commands
type app struct {
	cfg       *config.Config
	metrics   *metrics.Registry
	data      *provider.CachingProvider
	forecasts *forecast.Service
	redis     *cache.RedisCache
}

func newApp(ctx context.Context, cfg *config.Config) *app {
	m := metrics.NewRegistry()

	data := provider.NewCachingProvider(buildProviders(cfg, m), cfg.Cache.MemoTTL).WithMetrics(m)
	svc := forecast.NewService(data, cfg.Forecast).WithMetrics(m)

	a := &app{cfg: cfg, metrics: m, data: data, forecasts: svc}

	if cfg.Cache.RedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Cache.RedisTTL)
		if err != nil {
			// forecasts still work without the shared memo
			log.Warn().Err(err).Str("addr", cfg.Cache.RedisAddr).Msg("Redis unavailable, forecast memo disabled")
		} else {
			a.redis = rc
			svc.WithMemo(rc)
		}
	}
	return a
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("closing redis")
		}
	}
}

// buildProviders chains Yahoo, Alpha Vantage when a key is set and the
// screener.in profile scraper. Each is rate limited and behind its own
// circuit breaker.
func buildProviders(cfg *config.Config, m *metrics.Registry) *provider.FallbackProvider {
	limiters := ratelimit.NewMultiLimiter(m.ObserveThrottle)
	breakerCfg := provider.DefaultBreakerConfig()
	breakerCfg.Interval = cfg.API.Breaker.Interval
	breakerCfg.Timeout = cfg.API.Breaker.Timeout
	breakerCfg.ConsecutiveFailures = cfg.API.Breaker.ConsecutiveFailures
	onChange := func(name string, st gobreaker.State) {
		m.SetBreakerState(name, provider.BreakerStateValue(st))
	}

	var breakers []*provider.BreakerProvider

	// Yahoo Finance (primary - no key needed)
	yahoo := provider.NewYahooProvider(limiters.Add("yahoo", cfg.API.Yahoo.RateLimit), cfg.API.Yahoo.RateLimit)
	breakers = append(breakers, provider.NewBreakerProvider(yahoo, breakerCfg, onChange))

	// Alpha Vantage (secondary)
	if cfg.API.AlphaVantage.Key != "" {
		av := provider.NewAlphaVantageProvider(cfg.API.AlphaVantage.Key,
			limiters.Add("alphavantage", cfg.API.AlphaVantage.RateLimit), cfg.API.AlphaVantage.RateLimit)
		breakers = append(breakers, provider.NewBreakerProvider(av, breakerCfg, onChange))
	}

	// screener.in (profile fallback for NSE listings)
	if cfg.API.Screener.RateLimit > 0 {
		sc := provider.NewScreenerProvider(limiters.Add("screener", cfg.API.Screener.RateLimit), cfg.API.Screener.RateLimit)
		breakers = append(breakers, provider.NewBreakerProvider(sc, breakerCfg, onChange))
	}

	providers := make([]provider.Provider, 0, len(breakers))
	for _, b := range breakers {
		m.SetBreakerState(b.Name(), provider.BreakerStateValue(b.State()))
		providers = append(providers, b)
	}

	fallback := provider.NewFallbackProvider(providers...).WithMetrics(m)
	names := make([]string, 0, len(providers))
	for _, p := range fallback.Providers() {
		names = append(names, p.Name())
	}
	log.Debug().Strs("providers", names).Msg("Data providers ready")
	return fallback
}
