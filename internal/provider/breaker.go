package provider

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"stockcast/pkg/model"
)

// BreakerConfig configures the circuit breaker around a provider
type BreakerConfig struct {
	MaxRequests         uint32        // trial requests allowed while half-open
	Interval            time.Duration // closed-state counter reset period
	Timeout             time.Duration // open-state duration
	ConsecutiveFailures uint32
}

// DefaultBreakerConfig returns a breaker that opens after five transient
// failures in a row and lets a trial request through after 30 seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// StateFunc observes breaker state changes
type StateFunc func(provider string, state gobreaker.State)

// BreakerProvider wraps a Provider with a circuit breaker. Only transient
// failures count against the breaker; an unknown symbol or a caller that
// gave up does not.
type BreakerProvider struct {
	inner Provider
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerProvider creates a breaker-guarded provider
func NewBreakerProvider(inner Provider, cfg BreakerConfig, onChange StateFunc) *BreakerProvider {
	settings := gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsRetryable(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("component", "provider").Str("provider", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
			if onChange != nil {
				onChange(name, to)
			}
		},
	}
	return &BreakerProvider{inner: inner, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (p *BreakerProvider) Name() string      { return p.inner.Name() }
func (p *BreakerProvider) IsAvailable() bool { return p.inner.IsAvailable() }
func (p *BreakerProvider) RateLimit() int    { return p.inner.RateLimit() }

// State returns the current breaker state
func (p *BreakerProvider) State() gobreaker.State {
	return p.cb.State()
}

func (p *BreakerProvider) GetDailyHistory(ctx context.Context, symbol, lookback string) (*model.History, error) {
	out, err := p.cb.Execute(func() (any, error) {
		return p.inner.GetDailyHistory(ctx, symbol, lookback)
	})
	if err != nil {
		return nil, p.wrap(err)
	}
	return out.(*model.History), nil
}

func (p *BreakerProvider) GetProfile(ctx context.Context, symbol string) (*model.Profile, error) {
	out, err := p.cb.Execute(func() (any, error) {
		return p.inner.GetProfile(ctx, symbol)
	})
	if err != nil {
		return nil, p.wrap(err)
	}
	return out.(*model.Profile), nil
}

func (p *BreakerProvider) wrap(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &ProviderError{Provider: p.Name(), Err: err, Retryable: true}
	}
	return err
}

// BreakerStateValue maps a breaker state to the gauge encoding
// (0=closed, 1=half-open, 2=open).
func BreakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}
