package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"stockcast/internal/ratelimit"
	"stockcast/pkg/model"
)

const (
	yahooChartURL   = "https://query1.finance.yahoo.com/v8/finance/chart"
	yahooSummaryURL = "https://query2.finance.yahoo.com/v10/finance/quoteSummary"
	yahooUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// YahooProvider implements the Provider interface for Yahoo Finance (unofficial API)
type YahooProvider struct {
	client     *http.Client
	limiter    *ratelimit.Limiter
	rateLimit  int
	chartURL   string
	summaryURL string
}

// NewYahooProvider creates a new Yahoo Finance provider
func NewYahooProvider(limiter *ratelimit.Limiter, rateLimitPerMin int) *YahooProvider {
	if limiter == nil {
		limiter = ratelimit.NewLimiter("yahoo", rateLimitPerMin)
	}
	return &YahooProvider{
		client:     &http.Client{Timeout: 30 * time.Second},
		limiter:    limiter,
		rateLimit:  rateLimitPerMin,
		chartURL:   yahooChartURL,
		summaryURL: yahooSummaryURL,
	}
}

// WithBaseURLs points the provider at alternative chart and summary endpoints
func (p *YahooProvider) WithBaseURLs(chartURL, summaryURL string) *YahooProvider {
	p.chartURL = chartURL
	p.summaryURL = summaryURL
	return p
}

// Name returns the provider name
func (p *YahooProvider) Name() string {
	return "yahoo"
}

// IsAvailable always returns true (no API key needed)
func (p *YahooProvider) IsAvailable() bool {
	return true
}

// RateLimit returns the rate limit per minute
func (p *YahooProvider) RateLimit() int {
	return p.rateLimit
}

// yahooResponse represents the chart API response. Quote arrays hold null
// entries on non-trading days.
type yahooResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				Currency  string `json:"currency"`
				GMTOffset int64  `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"chart"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// GetDailyHistory fetches daily candles for the lookback range
func (p *YahooProvider) GetDailyHistory(ctx context.Context, symbol, lookback string) (*model.History, error) {
	u := fmt.Sprintf("%s/%s?range=%s&interval=1d&includePrePost=false&events=div%%2Csplit",
		p.chartURL, url.PathEscape(symbol), url.QueryEscape(lookback))

	var data yahooResponse
	if err := p.get(ctx, u, &data); err != nil {
		return nil, err
	}

	if data.Chart.Error != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%s", data.Chart.Error.Description), Retryable: false}
	}

	if len(data.Chart.Result) == 0 || len(data.Chart.Result[0].Timestamp) == 0 || len(data.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("no data available"), Retryable: false}
	}

	result := data.Chart.Result[0]
	quotes := result.Indicators.Quote[0]

	candles := make([]model.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o, h, l, c := at(quotes.Open, i), at(quotes.High, i), at(quotes.Low, i), at(quotes.Close, i)
		if o == nil || h == nil || l == nil || c == nil {
			continue // null bar (holiday)
		}

		var volume int64
		if i < len(quotes.Volume) && quotes.Volume[i] != nil {
			volume = *quotes.Volume[i]
		}

		// shift to exchange-local time so the bar lands on its trading date
		local := time.Unix(ts+result.Meta.GMTOffset, 0).UTC()
		candles = append(candles, model.Candle{
			Time:   local,
			Open:   *o,
			High:   *h,
			Low:    *l,
			Close:  *c,
			Volume: volume,
		})
	}

	return &model.History{
		Symbol:   symbol,
		Currency: result.Meta.Currency,
		Candles:  normalizeCandles(candles),
	}, nil
}

// rawValue is Yahoo's {"raw": 1.23, "fmt": "1.23"} number wrapper
type rawValue struct {
	Raw *float64 `json:"raw"`
}

type yahooSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			AssetProfile struct {
				Sector              string `json:"sector"`
				Website             string `json:"website"`
				LongBusinessSummary string `json:"longBusinessSummary"`
			} `json:"assetProfile"`
			Price struct {
				ShortName string   `json:"shortName"`
				Currency  string   `json:"currency"`
				MarketCap rawValue `json:"marketCap"`
			} `json:"price"`
			SummaryDetail struct {
				Beta       rawValue `json:"beta"`
				TrailingPE rawValue `json:"trailingPE"`
			} `json:"summaryDetail"`
			DefaultKeyStatistics struct {
				TrailingEps rawValue `json:"trailingEps"`
			} `json:"defaultKeyStatistics"`
			FinancialData struct {
				QuickRatio      rawValue `json:"quickRatio"`
				RevenuePerShare rawValue `json:"revenuePerShare"`
				ProfitMargins   rawValue `json:"profitMargins"`
				DebtToEquity    rawValue `json:"debtToEquity"`
			} `json:"financialData"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"quoteSummary"`
}

// GetProfile fetches company metadata from the quote summary endpoint
func (p *YahooProvider) GetProfile(ctx context.Context, symbol string) (*model.Profile, error) {
	u := fmt.Sprintf("%s/%s?modules=assetProfile%%2Cprice%%2CsummaryDetail%%2CdefaultKeyStatistics%%2CfinancialData",
		p.summaryURL, url.PathEscape(symbol))

	var data yahooSummaryResponse
	if err := p.get(ctx, u, &data); err != nil {
		return nil, err
	}

	if data.QuoteSummary.Error != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%s", data.QuoteSummary.Error.Description), Retryable: false}
	}
	if len(data.QuoteSummary.Result) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("no profile available"), Retryable: false}
	}

	r := data.QuoteSummary.Result[0]
	return &model.Profile{
		Symbol:          symbol,
		ShortName:       r.Price.ShortName,
		BusinessSummary: r.AssetProfile.LongBusinessSummary,
		Sector:          r.AssetProfile.Sector,
		Website:         r.AssetProfile.Website,
		Currency:        r.Price.Currency,
		MarketCap:       r.Price.MarketCap.Raw,
		Beta:            r.SummaryDetail.Beta.Raw,
		TrailingEPS:     r.DefaultKeyStatistics.TrailingEps.Raw,
		TrailingPE:      r.SummaryDetail.TrailingPE.Raw,
		QuickRatio:      r.FinancialData.QuickRatio.Raw,
		RevenuePerShare: r.FinancialData.RevenuePerShare.Raw,
		ProfitMargins:   r.FinancialData.ProfitMargins.Raw,
		DebtToEquity:    r.FinancialData.DebtToEquity.Raw,
	}, nil
}

// get performs a rate-limited GET and decodes the JSON body into v
func (p *YahooProvider) get(ctx context.Context, u string, v any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", yahooUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return &ProviderError{Provider: p.Name(), Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		p.limiter.SignalRateLimited()
		return &ProviderError{Provider: p.Name(), Err: fmt.Errorf("rate limited"), Retryable: true}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return &ProviderError{Provider: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode), Retryable: true}
	}

	if resp.StatusCode != http.StatusOK {
		return &ProviderError{Provider: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode), Retryable: false}
	}

	p.limiter.ResetBackoff()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &ProviderError{Provider: p.Name(), Err: fmt.Errorf("decoding response: %w", err), Retryable: false}
	}
	return nil
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}
