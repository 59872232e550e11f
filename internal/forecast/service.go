package forecast

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"stockcast/internal/metrics"
	"stockcast/internal/timeseries"
	"stockcast/pkg/model"
)

// HistorySource supplies daily price history
type HistorySource interface {
	GetDailyHistory(ctx context.Context, symbol, lookback string) (*model.History, error)
}

// Memo stores finished results keyed by symbol and data
type Memo interface {
	GetJSON(ctx context.Context, key string, v any) (bool, error)
	SetJSON(ctx context.Context, key string, v any) error
}

// FetchCloses loads the close prices of symbol. Any provider failure or
// empty response yields an empty series; callers check Empty.
func FetchCloses(ctx context.Context, src HistorySource, symbol, lookback string) *timeseries.Series {
	empty := &timeseries.Series{Name: symbol}

	hist, err := src.GetDailyHistory(ctx, symbol, lookback)
	if err != nil {
		log.Warn().Err(err).Str("component", "forecast").Str("symbol", symbol).Msg("price history unavailable")
		return empty
	}
	if hist.Empty() {
		log.Warn().Str("component", "forecast").Str("symbol", symbol).Msg("price history is empty")
		return empty
	}

	s, err := timeseries.New(symbol, hist.Times(), hist.Closes())
	if err != nil {
		log.Warn().Err(err).Str("component", "forecast").Str("symbol", symbol).Msg("price history rejected")
		return empty
	}
	return s
}

// Service runs the forecasting pipeline against a data source
type Service struct {
	src     HistorySource
	cfg     Config
	memo    Memo
	metrics *metrics.Registry
}

// NewService creates a new forecasting service
func NewService(src HistorySource, cfg Config) *Service {
	return &Service{src: src, cfg: cfg}
}

// WithMemo enables result memoization
func (s *Service) WithMemo(m Memo) *Service {
	s.memo = m
	return s
}

// WithMetrics enables step timing and outcome counters
func (s *Service) WithMetrics(m *metrics.Registry) *Service {
	s.metrics = m
	return s
}

// Config returns the pipeline parameters
func (s *Service) Config() Config {
	return s.cfg
}

// Run fetches history for symbol and forecasts it. progress may be nil.
func (s *Service) Run(ctx context.Context, symbol string, progress ProgressFunc) (*Result, error) {
	result, err := s.run(ctx, symbol, progress)
	if s.metrics != nil {
		rmse := 0.0
		if result != nil {
			rmse = result.RMSE
		}
		s.metrics.RecordForecast(symbol, rmse, err)
	}
	return result, err
}

func (s *Service) run(ctx context.Context, symbol string, progress ProgressFunc) (*Result, error) {
	done := s.step("fetch")
	closes := FetchCloses(ctx, s.src, symbol, s.cfg.Lookback)
	if closes.Empty() {
		done(ErrNoData)
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoData)
	}
	done(nil)

	key := s.memoKey(closes)
	if cached := s.lookup(ctx, key); cached != nil {
		return cached, nil
	}

	done = s.step("predict")
	result, err := Predict(ctx, closes, s.cfg, progress)
	done(err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}

	if s.memo != nil {
		if err := s.memo.SetJSON(ctx, key, result); err != nil {
			log.Warn().Err(err).Str("component", "forecast").Str("key", key).Msg("memo write failed")
		}
	}
	return result, nil
}

func (s *Service) lookup(ctx context.Context, key string) *Result {
	if s.memo == nil {
		return nil
	}
	var cached Result
	found, err := s.memo.GetJSON(ctx, key, &cached)
	if err != nil {
		log.Warn().Err(err).Str("component", "forecast").Str("key", key).Msg("memo read failed")
	}
	if s.metrics != nil {
		if found {
			s.metrics.RecordCacheHit("forecast")
		} else {
			s.metrics.RecordCacheMiss("forecast")
		}
	}
	if !found {
		return nil
	}
	return &cached
}

// memoKey identifies a forecast by its input data and parameters
func (s *Service) memoKey(closes *timeseries.Series) string {
	last, value, _ := closes.Last()
	c := s.cfg
	return fmt.Sprintf("forecast:%s:%s:%d:%g:%s:w%d:h%d:p%d:a%g:t%g",
		closes.Name, last.Format("2006-01-02"), closes.Len(), value,
		c.Lookback, c.Window, c.Horizon, c.ARLags, c.Significance, c.TrainRatio)
}

func (s *Service) step(name string) func(error) {
	if s.metrics == nil {
		return func(error) {}
	}
	timer := s.metrics.StartStepTimer(name)
	return func(err error) {
		switch {
		case err == nil:
			timer.Stop("ok")
		case errors.Is(err, ErrNoData), errors.Is(err, ErrInsufficientData):
			timer.Stop("no_data")
		default:
			timer.Stop("error")
		}
	}
}
