package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"stockcast/internal/metrics"
	"stockcast/pkg/model"
)

// Provider defines the interface for data providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// GetDailyHistory fetches daily OHLCV candles covering lookback
	// (a range token such as "5y" or "max"), ascending by date
	GetDailyHistory(ctx context.Context, symbol, lookback string) (*model.History, error)

	// GetProfile fetches company metadata and key metrics
	GetProfile(ctx context.Context, symbol string) (*model.Profile, error)

	// IsAvailable checks if the provider is available (has valid API key)
	IsAvailable() bool

	// RateLimit returns the rate limit per minute
	RateLimit() int
}

// ProviderError represents a provider-specific error
type ProviderError struct {
	Provider  string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transient provider failure
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Retryable
}

// FallbackProvider tries multiple providers in order
type FallbackProvider struct {
	providers []Provider
	metrics   *metrics.Registry
}

// NewFallbackProvider creates a new fallback provider
func NewFallbackProvider(providers ...Provider) *FallbackProvider {
	// Filter to only available providers
	available := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p.IsAvailable() {
			available = append(available, p)
		}
	}
	return &FallbackProvider{providers: available}
}

// WithMetrics counts calls per underlying provider
func (f *FallbackProvider) WithMetrics(m *metrics.Registry) *FallbackProvider {
	f.metrics = m
	return f
}

func (f *FallbackProvider) record(p Provider, err error) {
	if f.metrics != nil {
		f.metrics.RecordProviderCall(p.Name(), err)
	}
}

// Name returns the combined provider name
func (f *FallbackProvider) Name() string {
	return "fallback"
}

// GetDailyHistory tries each provider in order until one returns candles
func (f *FallbackProvider) GetDailyHistory(ctx context.Context, symbol, lookback string) (*model.History, error) {
	lastErr := errNoProviders
	for _, p := range f.providers {
		hist, err := p.GetDailyHistory(ctx, symbol, lookback)
		if errors.Is(err, errHistoryUnsupported) {
			continue
		}
		f.record(p, err)
		if err == nil && !hist.Empty() {
			return hist, nil
		}
		if err == nil {
			err = &ProviderError{Provider: p.Name(), Err: errors.New("no data available")}
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// GetProfile tries each provider in order until one returns a valid profile
func (f *FallbackProvider) GetProfile(ctx context.Context, symbol string) (*model.Profile, error) {
	lastErr := errNoProviders
	for _, p := range f.providers {
		profile, err := p.GetProfile(ctx, symbol)
		f.record(p, err)
		if err == nil && profile.Valid() {
			return profile, nil
		}
		if err == nil {
			err = &ProviderError{Provider: p.Name(), Err: errors.New("empty profile")}
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// IsAvailable returns true if any provider is available
func (f *FallbackProvider) IsAvailable() bool {
	return len(f.providers) > 0
}

// RateLimit returns the highest rate limit among providers
func (f *FallbackProvider) RateLimit() int {
	maxRate := 0
	for _, p := range f.providers {
		if p.RateLimit() > maxRate {
			maxRate = p.RateLimit()
		}
	}
	return maxRate
}

// Providers returns the list of underlying providers
func (f *FallbackProvider) Providers() []Provider {
	return f.providers
}

var errNoProviders = errors.New("no available data providers")

// LookbackStart returns the first date covered by a range token relative
// to now. The zero time means unbounded ("max").
func LookbackStart(lookback string, now time.Time) (time.Time, error) {
	lookback = strings.ToLower(strings.TrimSpace(lookback))
	switch lookback {
	case "max", "":
		return time.Time{}, nil
	case "ytd":
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location()), nil
	}

	var n int
	var unit string
	if _, err := fmt.Sscanf(lookback, "%d%s", &n, &unit); err != nil || n <= 0 {
		return time.Time{}, fmt.Errorf("invalid lookback %q", lookback)
	}
	switch unit {
	case "d":
		return now.AddDate(0, 0, -n), nil
	case "wk":
		return now.AddDate(0, 0, -7*n), nil
	case "mo":
		return now.AddDate(0, -n, 0), nil
	case "y":
		return now.AddDate(-n, 0, 0), nil
	}
	return time.Time{}, fmt.Errorf("invalid lookback %q", lookback)
}

// tradingDate truncates t to midnight UTC of its calendar day
func tradingDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// normalizeCandles sorts candles ascending and keeps the last candle seen
// for each trading date.
func normalizeCandles(candles []model.Candle) []model.Candle {
	byDate := make(map[time.Time]model.Candle, len(candles))
	for _, c := range candles {
		c.Time = tradingDate(c.Time)
		byDate[c.Time] = c
	}
	out := make([]model.Candle, 0, len(byDate))
	for _, c := range byDate {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return out
}
