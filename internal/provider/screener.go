package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"stockcast/internal/ratelimit"
	"stockcast/pkg/model"
)

const screenerBaseURL = "https://www.screener.in/company"

// crore is the unit of market capitalization on screener.in
const crore = 1e7

var errHistoryUnsupported = errors.New("price history not supported")

// ScreenerProvider scrapes company pages of screener.in. It serves NSE
// profiles only and is meant as the last entry of a fallback chain.
type ScreenerProvider struct {
	client    *http.Client
	limiter   *ratelimit.Limiter
	rateLimit int
	baseURL   string
}

// NewScreenerProvider creates a new screener.in provider
func NewScreenerProvider(limiter *ratelimit.Limiter, rateLimitPerMin int) *ScreenerProvider {
	if limiter == nil {
		limiter = ratelimit.NewLimiter("screener", rateLimitPerMin)
	}
	return &ScreenerProvider{
		client:    &http.Client{Timeout: 20 * time.Second},
		limiter:   limiter,
		rateLimit: rateLimitPerMin,
		baseURL:   screenerBaseURL,
	}
}

// WithBaseURL points the provider at an alternative host
func (p *ScreenerProvider) WithBaseURL(u string) *ScreenerProvider {
	p.baseURL = strings.TrimRight(u, "/")
	return p
}

func (p *ScreenerProvider) Name() string      { return "screener" }
func (p *ScreenerProvider) IsAvailable() bool { return true }
func (p *ScreenerProvider) RateLimit() int    { return p.rateLimit }

// GetDailyHistory is not offered by screener.in
func (p *ScreenerProvider) GetDailyHistory(ctx context.Context, symbol, lookback string) (*model.History, error) {
	return nil, &ProviderError{Provider: p.Name(), Err: errHistoryUnsupported}
}

// GetProfile scrapes the company name, summary, links and top ratios
func (p *ScreenerProvider) GetProfile(ctx context.Context, symbol string) (*model.Profile, error) {
	code, ok := screenerCode(symbol)
	if !ok {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("unsupported symbol %s", symbol)}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s/consolidated/", p.baseURL, code), nil)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}
	req.Header.Set("User-Agent", yahooUserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		p.limiter.SignalRateLimited()
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("rate limited"), Retryable: true}
	case resp.StatusCode >= 500:
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("HTTP %d", resp.StatusCode), Retryable: true}
	case resp.StatusCode != http.StatusOK:
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}
	p.limiter.ResetBackoff()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("failed to parse HTML: %w", err)}
	}
	return parseScreenerPage(doc, symbol), nil
}

func parseScreenerPage(doc *goquery.Document, symbol string) *model.Profile {
	profile := &model.Profile{
		Symbol:          symbol,
		ShortName:       strings.TrimSpace(doc.Find("h1").First().Text()),
		BusinessSummary: strings.TrimSpace(doc.Find(".about p").First().Text()),
		Currency:        "INR",
	}

	doc.Find(".company-links a").EachWithBreak(func(i int, a *goquery.Selection) bool {
		href, ok := a.Attr("href")
		if ok && strings.HasPrefix(href, "http") && !strings.Contains(href, "bseindia") && !strings.Contains(href, "nseindia") {
			profile.Website = href
			return false
		}
		return true
	})

	var price *float64
	doc.Find("#top-ratios li").Each(func(i int, li *goquery.Selection) {
		name := strings.ToLower(strings.TrimSpace(li.Find(".name").Text()))
		value, ok := parseScreenerNumber(li.Find(".number").First().Text())
		if !ok {
			return
		}
		switch name {
		case "market cap":
			v := value * crore
			profile.MarketCap = &v
		case "stock p/e":
			profile.TrailingPE = &value
		case "current price":
			price = &value
		}
	})

	// EPS is not listed; it follows from price and P/E
	if price != nil && profile.TrailingPE != nil && *profile.TrailingPE != 0 {
		eps := *price / *profile.TrailingPE
		profile.TrailingEPS = &eps
	}
	return profile
}

// parseScreenerNumber parses Indian-grouped numbers such as "12,34,567.5"
func parseScreenerNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// screenerCode maps an NSE ticker to its screener.in company code
func screenerCode(symbol string) (string, bool) {
	code, ok := strings.CutSuffix(strings.ToUpper(symbol), ".NS")
	return code, ok && code != ""
}
