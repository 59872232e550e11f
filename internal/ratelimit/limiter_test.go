package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLimiterWait(t *testing.T) {
	limiter := NewLimiter("yahoo", 120)

	if limiter.name != "yahoo" {
		t.Errorf("Expected name 'yahoo', got '%s'", limiter.name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// the burst is served immediately
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := limiter.Wait(ctx); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	if time.Since(start) > time.Second {
		t.Error("Burst took too long")
	}
}

func TestLimiterBackoff(t *testing.T) {
	limiter := NewLimiter("yahoo", 60)

	if limiter.penalty() != 0 {
		t.Errorf("Expected no backoff before a 429, got %v", limiter.penalty())
	}

	limiter.SignalRateLimited()
	first := limiter.penalty()
	if first != initialBackoff {
		t.Errorf("Expected %v after first 429, got %v", initialBackoff, first)
	}

	limiter.SignalRateLimited()
	if got := limiter.penalty(); got != 2*first {
		t.Errorf("Expected backoff to double to %v, got %v", 2*first, got)
	}

	for i := 0; i < 20; i++ {
		limiter.SignalRateLimited()
	}
	if got := limiter.penalty(); got != maxBackoff {
		t.Errorf("Expected backoff capped at %v, got %v", maxBackoff, got)
	}

	limiter.ResetBackoff()
	if limiter.penalty() != 0 {
		t.Error("Backoff should clear after a success")
	}
}

func TestLimiterWaitServesBackoff(t *testing.T) {
	limiter := NewLimiter("screener", 6000)
	limiter.SignalRateLimited()

	start := time.Now()
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < initialBackoff {
		t.Errorf("Expected wait of at least %v, got %v", initialBackoff, elapsed)
	}

	// a cancelled context ends the backoff early
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := limiter.Wait(ctx); err == nil {
		t.Error("Expected error from cancelled context during backoff")
	}

	limiter.ResetBackoff()
	start = time.Now()
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("Wait after reset should not back off")
	}
}

func TestLimiterContextCancellation(t *testing.T) {
	limiter := NewLimiter("alphavantage", 1)

	// use up the single token
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := limiter.Wait(ctx); err == nil {
		t.Error("Expected error from cancelled context")
	}
}

func TestMultiLimiter(t *testing.T) {
	var mu sync.Mutex
	waits := map[string]int{}
	ml := NewMultiLimiter(func(name string, waited time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		waits[name]++
	})

	yahoo := ml.Add("yahoo", 60)
	av := ml.Add("alphavantage", 5)

	if ml.Add("yahoo", 60) != yahoo {
		t.Error("Add should return the existing limiter for a known provider")
	}
	if av == yahoo {
		t.Error("Providers should not share a limiter")
	}

	if err := yahoo.Wait(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := yahoo.Wait(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if waits["yahoo"] != 2 || waits["alphavantage"] != 0 {
		t.Errorf("Expected two reported yahoo waits, got %v", waits)
	}
}
