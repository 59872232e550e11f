package provider

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

const screenerPage = `<html><body>
<div id="top">
  <h1 class="h2">Tata Consultancy Services Ltd</h1>
  <div class="company-links">
    <a href="https://www.tcs.com/" target="_blank">tcs.com</a>
    <a href="https://www.bseindia.com/stock-share-price/tcs/532540/">BSE: 532540</a>
  </div>
  <div class="company-profile"><div class="about"><p>TCS is an IT services company.</p></div></div>
  <ul id="top-ratios">
    <li><span class="name">Market Cap</span><span class="nowrap value">₹ <span class="number">12,50,000</span> Cr.</span></li>
    <li><span class="name">Current Price</span><span class="nowrap value">₹ <span class="number">3,450</span></span></li>
    <li><span class="name">High / Low</span><span class="nowrap value">₹ <span class="number">4,592</span> / <span class="number">3,056</span></span></li>
    <li><span class="name">Stock P/E</span><span class="nowrap value"><span class="number">25.0</span></span></li>
    <li><span class="name">Dividend Yield</span><span class="nowrap value"><span class="number"></span> %</span></li>
  </ul>
</div>
</body></html>`

func TestScreenerGetProfile(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(screenerPage))
	}))
	defer server.Close()

	p := NewScreenerProvider(fastLimiter(), 60).WithBaseURL(server.URL + "/")
	profile, err := p.GetProfile(context.Background(), "tcs.ns")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if path != "/TCS/consolidated/" {
		t.Errorf("Unexpected request path %s", path)
	}
	if !profile.Valid() || profile.ShortName != "Tata Consultancy Services Ltd" {
		t.Errorf("Unexpected short name %q", profile.ShortName)
	}
	if profile.Website != "https://www.tcs.com/" {
		t.Errorf("Unexpected website %q", profile.Website)
	}
	if profile.BusinessSummary != "TCS is an IT services company." || profile.Currency != "INR" {
		t.Errorf("Unexpected summary/currency %q/%q", profile.BusinessSummary, profile.Currency)
	}
	if profile.MarketCap == nil || *profile.MarketCap != 1250000*crore {
		t.Errorf("Unexpected market cap %v", profile.MarketCap)
	}
	if profile.TrailingPE == nil || *profile.TrailingPE != 25 {
		t.Errorf("Unexpected trailing PE %v", profile.TrailingPE)
	}
	if profile.TrailingEPS == nil || math.Abs(*profile.TrailingEPS-138) > 1e-9 {
		t.Errorf("Expected EPS derived from price and P/E, got %v", profile.TrailingEPS)
	}
	if profile.Beta != nil || profile.QuickRatio != nil {
		t.Error("Expected absent metrics to stay nil")
	}
}

func TestScreenerErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"not found", http.StatusNotFound, false},
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusBadGateway, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			p := NewScreenerProvider(fastLimiter(), 60).WithBaseURL(server.URL)
			_, err := p.GetProfile(context.Background(), "CIPLA.NS")
			if err == nil {
				t.Fatal("Expected error")
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("Expected retryable=%v, got %v", tt.retryable, err)
			}
		})
	}
}

func TestScreenerRejectsNonNSESymbols(t *testing.T) {
	p := NewScreenerProvider(fastLimiter(), 60).WithBaseURL("http://127.0.0.1:1")
	if _, err := p.GetProfile(context.Background(), "AAPL"); err == nil || IsRetryable(err) {
		t.Errorf("Expected permanent error for non-NSE symbol, got %v", err)
	}
}

func TestFallbackSkipsHistoryUnsupported(t *testing.T) {
	down := &stubProvider{name: "a", err: &ProviderError{Provider: "a", Err: errors.New("down"), Retryable: true}}
	sc := NewScreenerProvider(fastLimiter(), 60)

	_, err := NewFallbackProvider(down, sc).GetDailyHistory(context.Background(), "TCS.NS", "max")
	if !IsRetryable(err) || errors.Is(err, errHistoryUnsupported) {
		t.Errorf("Expected the history provider's error, got %v", err)
	}
}
