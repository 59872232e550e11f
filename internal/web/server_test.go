package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcast/internal/arima"
	"stockcast/internal/chart"
	"stockcast/internal/config"
	"stockcast/internal/forecast"
	"stockcast/internal/metrics"
	"stockcast/internal/stats"
	"stockcast/pkg/model"
)

type fakeData struct {
	history  map[string]*model.History
	profiles map[string]*model.Profile
}

func (f *fakeData) GetDailyHistory(ctx context.Context, symbol, lookback string) (*model.History, error) {
	if h, ok := f.history[symbol]; ok {
		return h, nil
	}
	return nil, errors.New("yahoo: no data")
}

func (f *fakeData) GetProfile(ctx context.Context, symbol string) (*model.Profile, error) {
	if p, ok := f.profiles[symbol]; ok {
		return p, nil
	}
	return nil, errors.New("yahoo: no profile")
}

type fakeForecaster struct {
	mu     sync.Mutex
	result *forecast.Result
	err    error
	calls  []string
}

func (f *fakeForecaster) Run(ctx context.Context, symbol string, progress forecast.ProgressFunc) (*forecast.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, symbol)
	return f.result, f.err
}

func testHistory(symbol string, n int) *model.History {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]model.Candle, n)
	for i := range candles {
		c := 1000 + float64(i%17)
		candles[i] = model.Candle{Time: start.AddDate(0, 0, i), Open: c, High: c + 5, Low: c - 5, Close: c, Volume: 10000}
	}
	return &model.History{Symbol: symbol, Candles: candles}
}

func testResult() *forecast.Result {
	last := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	r := &forecast.Result{
		Symbol:    "TCS.NS",
		RMSE:      12.3456,
		Selection: stats.OrderSelection{Order: 1, PValues: []float64{0.4, 0.01}},
		Model:     arima.Order{P: 5, D: 1},
		LastDate:  last,
	}
	for i := 0; i < 30; i++ {
		r.Forecast = append(r.Forecast, model.ForecastPoint{Date: last.AddDate(0, 0, i+1), Close: 3900})
	}
	for i := 0; i < 200; i++ {
		r.History = append(r.History, model.ForecastPoint{Date: last.AddDate(0, 0, i-199), Close: 3800})
	}
	return r
}

func newTestServer(t *testing.T, fc *fakeForecaster) *httptest.Server {
	t.Helper()
	data := &fakeData{
		history: map[string]*model.History{"TCS.NS": testHistory("TCS.NS", 500)},
		profiles: map[string]*model.Profile{
			"TCS.NS": {Symbol: "TCS.NS", ShortName: "TATA CONSULTANCY SERV LT", Currency: "INR"},
		},
	}
	m := metrics.NewRegistry()
	cfg := config.DefaultConfig().Server
	srv := NewServer(cfg, data, fc).WithMetrics(m)
	h, err := srv.Handler()
	require.NoError(t, err)
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

// decode reads the body to EOF, which also waits for the middleware to
// finish with the request
func decode(t *testing.T, res *http.Response, v any) {
	t.Helper()
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}

func TestStocks(t *testing.T) {
	ts := newTestServer(t, &fakeForecaster{})

	res, err := http.Get(ts.URL + "/api/stocks")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotEmpty(t, res.Header.Get("X-Request-ID"))

	var body StocksResponse
	decode(t, res, &body)
	require.Len(t, body.Stocks, 3)
	assert.Equal(t, "TATA CONSULTANCY SERV LT", body.Stocks[0].Name)
	assert.Equal(t, "Cipla Limited", body.Stocks[1].Name)
}

func TestCORSAllowsOnlyLoopbackOrigins(t *testing.T) {
	ts := newTestServer(t, &fakeForecaster{})

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"http://localhost:3000", true},
		{"http://127.0.0.1:8080", true},
		{"https://localhost", true},
		{"http://[::1]:5173", true},
		{"http://localhost.evil.example", false},
		{"http://evil.example/?localhost", false},
		{"http://127.0.0.1.evil.example", false},
		{"file://localhost/etc", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/stocks", nil)
			require.NoError(t, err)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			res, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			var body StocksResponse
			decode(t, res, &body)

			if tt.allowed {
				assert.Equal(t, tt.origin, res.Header.Get("Access-Control-Allow-Origin"))
			} else {
				assert.Empty(t, res.Header.Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestAnalysis(t *testing.T) {
	ts := newTestServer(t, &fakeForecaster{})

	res, err := http.Get(ts.URL + "/api/stocks/tcs.ns/analysis?period=6mo&chart=candle&indicator=macd")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var cookie *http.Cookie
	for _, c := range res.Cookies() {
		if c.Name == periodCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, "6mo", cookie.Value)

	var a chart.Analysis
	decode(t, res, &a)
	assert.Equal(t, "TCS.NS", a.Symbol)
	assert.Equal(t, "INR", a.Currency)
	assert.Equal(t, chart.Period6M, a.Period)
	assert.Equal(t, chart.ChartCandle, a.ChartType)
	assert.Equal(t, chart.IndicatorMACD, a.Indicator)
	require.NotNil(t, a.Chart)
	assert.Equal(t, "candlestick", a.Chart.Data[0].Type)
	require.NotNil(t, a.IndicatorChart)
	assert.Len(t, a.Recent, chart.RecentDays)
	require.NotNil(t, a.LastClose)

	// the cookie carries the period into the next request
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/stocks/TCS.NS/analysis", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	decode(t, res, &a)
	assert.Equal(t, chart.Period6M, a.Period)
	assert.Equal(t, chart.ChartLine, a.ChartType)
}

func TestAnalysisErrors(t *testing.T) {
	ts := newTestServer(t, &fakeForecaster{})

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"unknown symbol", "/api/stocks/AAPL/analysis", http.StatusNotFound},
		{"no data", "/api/stocks/CIPLA.NS/analysis", http.StatusNotFound},
		{"bad period", "/api/stocks/TCS.NS/analysis?period=2w", http.StatusBadRequest},
		{"indicator not offered", "/api/stocks/TCS.NS/analysis?chart=candle&indicator=ma", http.StatusBadRequest},
		{"unknown endpoint", "/api/nothing", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := http.Get(ts.URL + tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.status, res.StatusCode)
			assert.Equal(t, "application/json", res.Header.Get("Content-Type"))

			var body ErrorResponse
			decode(t, res, &body)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestPrediction(t *testing.T) {
	fc := &fakeForecaster{result: testResult()}
	ts := newTestServer(t, fc)

	res, err := http.Post(ts.URL+"/api/stocks/TCS.NS/prediction", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var p chart.Prediction
	decode(t, res, &p)
	fc.mu.Lock()
	assert.Equal(t, []string{"TCS.NS"}, fc.calls)
	fc.mu.Unlock()
	assert.Equal(t, "12.35 INR", p.RMSEText)
	assert.Equal(t, 1, p.Order)
	assert.Len(t, p.Forecast, 30)
	assert.Equal(t, "2024-07-01", p.Forecast[0].Date)
	assert.Equal(t, "3900.00", p.Forecast[0].Close)
	assert.Len(t, p.Chart.Data[0].X, chart.ForecastPlotPoints)

	res, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	raw, err := io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `stockcast_http_request_duration_seconds_count{method="POST",route="/api/stocks/{symbol}/prediction",status="200"} 1`)
}

func TestPredictionErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"no data", forecast.ErrNoData, http.StatusNotFound},
		{"insufficient", forecast.ErrInsufficientData, http.StatusNotFound},
		{"fit failure", errors.New("matrix exploded"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &fakeForecaster{err: tt.err})

			res, err := http.Post(ts.URL+"/api/stocks/HDFCBANK.NS/prediction", "application/json", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.status, res.StatusCode)

			var body ErrorResponse
			decode(t, res, &body)
			assert.NotContains(t, body.Error, "matrix")
		})
	}

	ts := newTestServer(t, &fakeForecaster{})
	res, err := http.Post(ts.URL+"/api/stocks/MSFT/prediction", "application/json", nil)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestHealthAndStatic(t *testing.T) {
	ts := newTestServer(t, &fakeForecaster{})

	res, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	var h HealthResponse
	decode(t, res, &h)
	assert.Equal(t, "healthy", h.Status)

	res, err = http.Get(ts.URL + "/")
	require.NoError(t, err)
	raw, err := io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, strings.Contains(string(raw), "<title>stockcast</title>"))
}
