package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordForecast(t *testing.T) {
	m := NewRegistry()

	m.RecordForecast("TCS.NS", 12.5, nil)
	m.RecordForecast("TCS.NS", 0, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Forecasts.WithLabelValues("TCS.NS", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Forecasts.WithLabelValues("TCS.NS", "error")))
	assert.Equal(t, 12.5, testutil.ToFloat64(m.ForecastRMSE.WithLabelValues("TCS.NS")))
}

func TestCountersAndTimers(t *testing.T) {
	m := NewRegistry()

	m.RecordCacheHit("forecast")
	m.RecordCacheHit("forecast")
	m.RecordCacheMiss("forecast")
	m.RecordProviderCall("yahoo", nil)
	m.SetBreakerState("yahoo", 2)
	m.ObserveThrottle("yahoo", 250*time.Millisecond)

	timer := m.StartStepTimer("evaluate")
	timer.Stop("ok")
	m.ObserveRequest("/api/stocks", "GET", "200", 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheHits.WithLabelValues("forecast")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMisses.WithLabelValues("forecast")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("yahoo", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("yahoo")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StepDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ProviderThrottle))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewRegistry()
	m.RecordCacheHit("forecast")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(string(body), `stockcast_cache_hits_total{cache_type="forecast"} 1`))
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
}
