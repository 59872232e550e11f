package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"stockcast/internal/ratelimit"
	"stockcast/pkg/model"
)

const alphaVantageBaseURL = "https://www.alphavantage.co/query"

// AlphaVantageProvider implements the Provider interface for Alpha Vantage API
type AlphaVantageProvider struct {
	apiKey    string
	client    *http.Client
	limiter   *ratelimit.Limiter
	rateLimit int
	baseURL   string
	now       func() time.Time
}

// NewAlphaVantageProvider creates a new Alpha Vantage provider
func NewAlphaVantageProvider(apiKey string, limiter *ratelimit.Limiter, rateLimitPerMin int) *AlphaVantageProvider {
	if limiter == nil {
		limiter = ratelimit.NewLimiter("alphavantage", rateLimitPerMin)
	}
	return &AlphaVantageProvider{
		apiKey:    apiKey,
		client:    &http.Client{Timeout: 30 * time.Second},
		limiter:   limiter,
		rateLimit: rateLimitPerMin,
		baseURL:   alphaVantageBaseURL,
		now:       time.Now,
	}
}

// WithBaseURL points the provider at an alternative endpoint
func (p *AlphaVantageProvider) WithBaseURL(u string) *AlphaVantageProvider {
	p.baseURL = u
	return p
}

// Name returns the provider name
func (p *AlphaVantageProvider) Name() string {
	return "alphavantage"
}

// IsAvailable checks if the provider has an API key
func (p *AlphaVantageProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// RateLimit returns the rate limit per minute
func (p *AlphaVantageProvider) RateLimit() int {
	return p.rateLimit
}

// alphaVantageDaily represents the TIME_SERIES_DAILY response
type alphaVantageDaily struct {
	MetaData    map[string]string            `json:"Meta Data"`
	TimeSeries  map[string]map[string]string `json:"Time Series (Daily)"`
	Note        string                       `json:"Note"`        // Rate limit message
	Information string                       `json:"Information"` // Quota message
	Error       string                       `json:"Error Message"`
}

// alphaVantageOverview represents the OVERVIEW response. Numbers arrive as
// strings, "None" when missing.
type alphaVantageOverview struct {
	Symbol               string `json:"Symbol"`
	Name                 string `json:"Name"`
	Description          string `json:"Description"`
	Sector               string `json:"Sector"`
	Currency             string `json:"Currency"`
	OfficialSite         string `json:"OfficialSite"`
	MarketCapitalization string `json:"MarketCapitalization"`
	Beta                 string `json:"Beta"`
	EPS                  string `json:"EPS"`
	PERatio              string `json:"PERatio"`
	RevenuePerShareTTM   string `json:"RevenuePerShareTTM"`
	ProfitMargin         string `json:"ProfitMargin"`
	Note                 string `json:"Note"`
	Information          string `json:"Information"`
	Error                string `json:"Error Message"`
}

// GetDailyHistory fetches daily candles and trims them to lookback
func (p *AlphaVantageProvider) GetDailyHistory(ctx context.Context, symbol, lookback string) (*model.History, error) {
	since, err := LookbackStart(lookback, p.now())
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err, Retryable: false}
	}

	outputSize := "full"
	if !since.IsZero() && p.now().Sub(since) < 100*24*time.Hour {
		outputSize = "compact" // last 100 points
	}

	var data alphaVantageDaily
	if err := p.query(ctx, url.Values{
		"function":   {"TIME_SERIES_DAILY"},
		"symbol":     {alphaVantageSymbol(symbol)},
		"outputsize": {outputSize},
	}, &data); err != nil {
		return nil, err
	}

	if err := p.checkMessages(data.Note, data.Information, data.Error); err != nil {
		return nil, err
	}

	if len(data.TimeSeries) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("no data available"), Retryable: false}
	}

	candles := make([]model.Candle, 0, len(data.TimeSeries))
	for dateStr, values := range data.TimeSeries {
		t, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		if !since.IsZero() && t.Before(tradingDate(since)) {
			continue
		}

		open, _ := strconv.ParseFloat(values["1. open"], 64)
		high, _ := strconv.ParseFloat(values["2. high"], 64)
		low, _ := strconv.ParseFloat(values["3. low"], 64)
		closePrice, err := strconv.ParseFloat(values["4. close"], 64)
		if err != nil {
			continue
		}
		volume, _ := strconv.ParseInt(values["5. volume"], 10, 64)

		candles = append(candles, model.Candle{
			Time:   t,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}

	return &model.History{
		Symbol:  symbol,
		Candles: normalizeCandles(candles),
	}, nil
}

// GetProfile fetches the company overview
func (p *AlphaVantageProvider) GetProfile(ctx context.Context, symbol string) (*model.Profile, error) {
	var data alphaVantageOverview
	if err := p.query(ctx, url.Values{
		"function": {"OVERVIEW"},
		"symbol":   {alphaVantageSymbol(symbol)},
	}, &data); err != nil {
		return nil, err
	}

	if err := p.checkMessages(data.Note, data.Information, data.Error); err != nil {
		return nil, err
	}

	if data.Name == "" {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("no profile available"), Retryable: false}
	}

	return &model.Profile{
		Symbol:          symbol,
		ShortName:       data.Name,
		BusinessSummary: data.Description,
		Sector:          data.Sector,
		Website:         data.OfficialSite,
		Currency:        data.Currency,
		MarketCap:       parseOptional(data.MarketCapitalization),
		Beta:            parseOptional(data.Beta),
		TrailingEPS:     parseOptional(data.EPS),
		TrailingPE:      parseOptional(data.PERatio),
		RevenuePerShare: parseOptional(data.RevenuePerShareTTM),
		ProfitMargins:   parseOptional(data.ProfitMargin),
	}, nil
}

func (p *AlphaVantageProvider) query(ctx context.Context, params url.Values, v any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	params.Set("apikey", p.apiKey)
	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return &ProviderError{Provider: p.Name(), Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		p.limiter.SignalRateLimited()
		return &ProviderError{Provider: p.Name(), Err: fmt.Errorf("rate limited"), Retryable: true}
	}

	if resp.StatusCode != http.StatusOK {
		return &ProviderError{Provider: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode), Retryable: false}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &ProviderError{Provider: p.Name(), Err: fmt.Errorf("decoding response: %w", err), Retryable: false}
	}
	return nil
}

func (p *AlphaVantageProvider) checkMessages(note, information, errMsg string) error {
	if note != "" || information != "" {
		p.limiter.SignalRateLimited()
		msg := note
		if msg == "" {
			msg = information
		}
		return &ProviderError{Provider: p.Name(), Err: fmt.Errorf("rate limited: %s", msg), Retryable: true}
	}

	if errMsg != "" {
		return &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%s", errMsg), Retryable: false}
	}

	p.limiter.ResetBackoff()
	return nil
}

// alphaVantageSymbol maps Yahoo NSE tickers (TCS.NS) to Alpha Vantage's
// exchange suffix (TCS.BSE is the only Indian listing served).
func alphaVantageSymbol(symbol string) string {
	const nse = ".NS"
	if len(symbol) > len(nse) && symbol[len(symbol)-len(nse):] == nse {
		return symbol[:len(symbol)-len(nse)] + ".BSE"
	}
	return symbol
}

func parseOptional(s string) *float64 {
	if s == "" || s == "None" || s == "-" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
