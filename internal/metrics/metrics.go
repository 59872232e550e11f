// Package metrics exposes the Prometheus collectors of the dashboard.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all stockcast metrics
type Registry struct {
	reg *prometheus.Registry

	// HTTP
	RequestDuration *prometheus.HistogramVec

	// Pipeline step durations (fetch, order, evaluate, forecast)
	StepDuration *prometheus.HistogramVec
	Forecasts    *prometheus.CounterVec
	ForecastRMSE *prometheus.GaugeVec

	// Data providers
	ProviderRequests *prometheus.CounterVec
	ProviderThrottle *prometheus.HistogramVec
	BreakerState     *prometheus.GaugeVec

	// Memo caches
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
}

// NewRegistry creates the collectors and registers them on a private
// registry, together with the Go runtime and process collectors.
func NewRegistry() *Registry {
	m := &Registry{
		reg: prometheus.NewRegistry(),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockcast_http_request_duration_seconds",
				Help:    "HTTP request latency by route and status",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method", "status"},
		),

		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockcast_pipeline_step_duration_seconds",
				Help:    "Duration of each forecasting pipeline step in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"step", "result"},
		),

		Forecasts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_forecasts_total",
				Help: "Forecast requests by symbol and outcome",
			},
			[]string{"symbol", "result"},
		),

		ForecastRMSE: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockcast_forecast_rmse",
				Help: "Walk-forward RMSE of the latest forecast per symbol",
			},
			[]string{"symbol"},
		),

		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_provider_requests_total",
				Help: "Data provider calls by provider and outcome",
			},
			[]string{"provider", "result"},
		),

		ProviderThrottle: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockcast_provider_throttle_seconds",
				Help:    "Time spent waiting on a provider rate limiter",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"provider"},
		),

		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockcast_provider_breaker_state",
				Help: "Circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
			},
			[]string{"provider"},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_cache_hits_total",
				Help: "Total number of cache hits by cache type",
			},
			[]string{"cache_type"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_cache_misses_total",
				Help: "Total number of cache misses by cache type",
			},
			[]string{"cache_type"},
		),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestDuration,
		m.StepDuration,
		m.Forecasts,
		m.ForecastRMSE,
		m.ProviderRequests,
		m.ProviderThrottle,
		m.BreakerState,
		m.CacheHits,
		m.CacheMisses,
	)

	return m
}

// StepTimer measures one pipeline step
type StepTimer struct {
	hist  *prometheus.HistogramVec
	step  string
	start time.Time
}

// StartStepTimer begins timing a pipeline step
func (m *Registry) StartStepTimer(step string) *StepTimer {
	return &StepTimer{hist: m.StepDuration, step: step, start: time.Now()}
}

// Stop records the elapsed time with the step result
func (st *StepTimer) Stop(result string) {
	st.hist.WithLabelValues(st.step, result).Observe(time.Since(st.start).Seconds())
}

// ObserveRequest records one served HTTP request
func (m *Registry) ObserveRequest(route, method, status string, d time.Duration) {
	m.RequestDuration.WithLabelValues(route, method, status).Observe(d.Seconds())
}

// RecordForecast counts a forecast outcome and keeps its RMSE
func (m *Registry) RecordForecast(symbol string, rmse float64, err error) {
	if err != nil {
		m.Forecasts.WithLabelValues(symbol, "error").Inc()
		return
	}
	m.Forecasts.WithLabelValues(symbol, "ok").Inc()
	m.ForecastRMSE.WithLabelValues(symbol).Set(rmse)
}

// RecordProviderCall counts a data provider call
func (m *Registry) RecordProviderCall(provider string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ProviderRequests.WithLabelValues(provider, result).Inc()
}

// ObserveThrottle records a rate limiter wait
func (m *Registry) ObserveThrottle(provider string, waited time.Duration) {
	m.ProviderThrottle.WithLabelValues(provider).Observe(waited.Seconds())
}

// SetBreakerState publishes a circuit breaker state
func (m *Registry) SetBreakerState(provider string, state float64) {
	m.BreakerState.WithLabelValues(provider).Set(state)
}

// RecordCacheHit counts a memo hit
func (m *Registry) RecordCacheHit(cacheType string) {
	m.CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss counts a memo miss
func (m *Registry) RecordCacheMiss(cacheType string) {
	m.CacheMisses.WithLabelValues(cacheType).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
