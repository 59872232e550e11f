package provider

import (
	"context"
	"sync"
	"time"

	"stockcast/internal/metrics"
	"stockcast/pkg/model"
)

type historyKey struct {
	symbol   string
	lookback string
}

type cachedHistory struct {
	history *model.History
	fetched time.Time
}

type cachedProfile struct {
	profile *model.Profile
	fetched time.Time
}

// CachingProvider wraps a Provider with an in-memory memo so repeated
// requests for a ticker within ttl reuse the same data.
type CachingProvider struct {
	inner    Provider
	ttl      time.Duration
	mu       sync.Mutex
	history  map[historyKey]cachedHistory
	profiles map[string]cachedProfile
	metrics  *metrics.Registry
	now      func() time.Time
}

// NewCachingProvider creates a caching wrapper
func NewCachingProvider(inner Provider, ttl time.Duration) *CachingProvider {
	return &CachingProvider{
		inner:    inner,
		ttl:      ttl,
		history:  make(map[historyKey]cachedHistory),
		profiles: make(map[string]cachedProfile),
		now:      time.Now,
	}
}

// WithMetrics counts memo hits and misses
func (p *CachingProvider) WithMetrics(m *metrics.Registry) *CachingProvider {
	p.metrics = m
	return p
}

func (p *CachingProvider) Name() string      { return p.inner.Name() }
func (p *CachingProvider) IsAvailable() bool { return p.inner.IsAvailable() }
func (p *CachingProvider) RateLimit() int    { return p.inner.RateLimit() }

func (p *CachingProvider) GetDailyHistory(ctx context.Context, symbol, lookback string) (*model.History, error) {
	key := historyKey{symbol: symbol, lookback: lookback}

	p.mu.Lock()
	if cached, ok := p.history[key]; ok && p.now().Sub(cached.fetched) < p.ttl {
		p.mu.Unlock()
		p.record("history", true)
		return cached.history, nil
	}
	p.mu.Unlock()
	p.record("history", false)

	hist, err := p.inner.GetDailyHistory(ctx, symbol, lookback)
	if err != nil {
		return nil, err
	}

	// empty results are not memoized so a later request can retry
	if !hist.Empty() {
		p.mu.Lock()
		p.history[key] = cachedHistory{history: hist, fetched: p.now()}
		p.mu.Unlock()
	}
	return hist, nil
}

func (p *CachingProvider) GetProfile(ctx context.Context, symbol string) (*model.Profile, error) {
	p.mu.Lock()
	if cached, ok := p.profiles[symbol]; ok && p.now().Sub(cached.fetched) < p.ttl {
		p.mu.Unlock()
		p.record("profile", true)
		return cached.profile, nil
	}
	p.mu.Unlock()
	p.record("profile", false)

	profile, err := p.inner.GetProfile(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if profile.Valid() {
		p.mu.Lock()
		p.profiles[symbol] = cachedProfile{profile: profile, fetched: p.now()}
		p.mu.Unlock()
	}
	return profile, nil
}

// Purge drops every memoized entry
func (p *CachingProvider) Purge() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = make(map[historyKey]cachedHistory)
	p.profiles = make(map[string]cachedProfile)
}

func (p *CachingProvider) record(kind string, hit bool) {
	if p.metrics == nil {
		return
	}
	if hit {
		p.metrics.RecordCacheHit(kind)
	} else {
		p.metrics.RecordCacheMiss(kind)
	}
}
