// Package ratelimit throttles calls to market data providers.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 2 * time.Minute
	maxBurst       = 5
)

// WaitFunc receives the time a caller spent throttled by the named limiter
type WaitFunc func(name string, waited time.Duration)

// Limiter is a per-provider token bucket. After a provider answers 429 the
// next Wait first sleeps for a backoff that doubles on every further 429
// and resets on the next success.
type Limiter struct {
	name    string
	bucket  *rate.Limiter
	onWait  WaitFunc
	mu      sync.Mutex
	backoff time.Duration
	limited bool
}

// NewLimiter allows perMinute requests per minute with a burst of a tenth
// of that, between 1 and 5.
func NewLimiter(name string, perMinute int) *Limiter {
	burst := min(max(perMinute/10, 1), maxBurst)
	return &Limiter{
		name:    name,
		bucket:  rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
		backoff: initialBackoff,
	}
}

// Wait blocks until the provider may be called or ctx is done
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	defer func() {
		if l.onWait != nil {
			l.onWait(l.name, time.Since(start))
		}
	}()

	if d := l.penalty(); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return l.bucket.Wait(ctx)
}

func (l *Limiter) penalty() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.limited {
		return 0
	}
	return l.backoff
}

// SignalRateLimited records a 429 from the provider
func (l *Limiter) SignalRateLimited() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.limited {
		l.backoff = min(l.backoff*2, maxBackoff)
	}
	l.limited = true
}

// ResetBackoff clears the backoff after a successful call
func (l *Limiter) ResetBackoff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backoff = initialBackoff
	l.limited = false
}

// MultiLimiter keeps one limiter per provider name
type MultiLimiter struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
	onWait   WaitFunc
}

// NewMultiLimiter creates an empty set. onWait may be nil.
func NewMultiLimiter(onWait WaitFunc) *MultiLimiter {
	return &MultiLimiter{limiters: make(map[string]*Limiter), onWait: onWait}
}

// Add returns the limiter of a provider, creating it on first use. Callers
// naming the same provider share one bucket.
func (m *MultiLimiter) Add(name string, perMinute int) *Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.limiters[name]; ok {
		return l
	}
	l := NewLimiter(name, perMinute)
	l.onWait = m.onWait
	m.limiters[name] = l
	return l
}
