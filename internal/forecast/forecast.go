// Package forecast runs the prediction pipeline: smoothing, differencing
// order selection, walk-forward evaluation and the final forecast.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"stockcast/internal/arima"
	"stockcast/internal/logging"
	"stockcast/internal/stats"
	"stockcast/internal/timeseries"
	"stockcast/pkg/model"
)

var (
	ErrNoData           = errors.New("no price data available")
	ErrInsufficientData = errors.New("not enough price history to forecast")
)

// Config holds the pipeline parameters
type Config struct {
	Window       int     `yaml:"window"`        // rolling mean window
	Horizon      int     `yaml:"horizon"`       // forecast steps (days)
	ARLags       int     `yaml:"ar_lags"`       // p of ARIMA(p,d,0)
	Significance float64 `yaml:"significance"`  // ADF p-value threshold
	TrainRatio   float64 `yaml:"train_ratio"`   // walk-forward split
	PlotPoints   int     `yaml:"plot_points"`   // rolling history kept for charts
	Lookback     string  `yaml:"lookback"`      // provider range token
}

// DefaultConfig returns the standard pipeline parameters
func DefaultConfig() Config {
	return Config{
		Window:       timeseries.DefaultWindow,
		Horizon:      30,
		ARLags:       5,
		Significance: stats.DefaultSignificance,
		TrainRatio:   0.8,
		PlotPoints:   200,
		Lookback:     "5y",
	}
}

// Validate checks the parameters
func (c Config) Validate() error {
	if c.Window < 1 {
		return fmt.Errorf("window must be positive, got %d", c.Window)
	}
	if c.Horizon < 1 {
		return fmt.Errorf("horizon must be positive, got %d", c.Horizon)
	}
	if c.ARLags < 0 {
		return fmt.Errorf("ar_lags must not be negative, got %d", c.ARLags)
	}
	if c.Significance <= 0 || c.Significance >= 1 {
		return fmt.Errorf("significance must be in (0, 1), got %v", c.Significance)
	}
	if c.TrainRatio <= 0 || c.TrainRatio >= 1 {
		return fmt.Errorf("train_ratio must be in (0, 1), got %v", c.TrainRatio)
	}
	return nil
}

// Evaluation is the outcome of walk-forward validation
type Evaluation struct {
	TrainSize   int                   `json:"train_size"`
	TestSize    int                   `json:"test_size"`
	Predictions []model.ForecastPoint `json:"predictions"`
	Actual      []float64             `json:"actual"`
	RMSE        float64               `json:"rmse"`
}

// Result is a complete forecast for one symbol
type Result struct {
	Symbol      string                `json:"symbol"`
	RMSE        float64               `json:"rmse"`
	Selection   stats.OrderSelection  `json:"selection"`
	Model       arima.Order           `json:"model"`
	Evaluation  *Evaluation           `json:"evaluation"`
	Forecast    []model.ForecastPoint `json:"forecast"`
	History     []model.ForecastPoint `json:"history"` // rolling mean tail
	LastDate    time.Time             `json:"last_date"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// ProgressFunc is called after each walk-forward step
type ProgressFunc func(done, total int)

// Evaluate runs walk-forward validation of an ARIMA model on s. The first
// ⌊ratio·n⌋ points train the model; each remaining point is predicted one
// step ahead from everything before it and then appended to the history.
func Evaluate(ctx context.Context, s *timeseries.Series, order arima.Order, ratio float64, progress ProgressFunc) (*Evaluation, error) {
	n := s.Len()
	train := int(math.Floor(ratio * float64(n)))
	test := n - train
	if train < 1 || test < 1 {
		return nil, fmt.Errorf("%w: %d points cannot be split %.2f/%.2f", ErrInsufficientData, n, ratio, 1-ratio)
	}

	est, err := arima.NewEstimator(order, s.Values[:train])
	if err != nil {
		return nil, err
	}

	eval := &Evaluation{
		TrainSize:   train,
		TestSize:    test,
		Predictions: make([]model.ForecastPoint, 0, test),
		Actual:      make([]float64, 0, test),
	}
	predicted := make([]float64, 0, test)

	for i := train; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		m, err := est.Fit()
		if err != nil {
			return nil, fmt.Errorf("fitting at %s: %w", s.Dates[i].Format("2006-01-02"), wrapInsufficient(err))
		}
		next, err := m.Forecast(1)
		if err != nil {
			return nil, fmt.Errorf("forecasting at %s: %w", s.Dates[i].Format("2006-01-02"), err)
		}

		actual := s.Values[i]
		predicted = append(predicted, next[0])
		eval.Actual = append(eval.Actual, actual)
		eval.Predictions = append(eval.Predictions, model.ForecastPoint{Date: s.Dates[i], Close: next[0]})
		est.Append(actual)

		if progress != nil {
			progress(i-train+1, test)
		}
	}

	eval.RMSE, err = timeseries.RMSE(eval.Actual, predicted)
	if err != nil {
		return nil, err
	}
	return eval, nil
}

// Forecast fits the model on all of s and forecasts steps days after its
// last date.
func Forecast(s *timeseries.Series, order arima.Order, steps int) ([]model.ForecastPoint, error) {
	if s.Empty() {
		return nil, ErrInsufficientData
	}
	m, err := arima.Fit(order, s.Values)
	if err != nil {
		return nil, fmt.Errorf("fitting %s: %w", order, wrapInsufficient(err))
	}
	values, err := m.Forecast(steps)
	if err != nil {
		return nil, err
	}

	last, _, _ := s.Last()
	return toPoints(timeseries.Daily(s.Name+"_forecast", last.AddDate(0, 0, 1), values)), nil
}

// Predict runs the full pipeline on a close price series
func Predict(ctx context.Context, closes *timeseries.Series, cfg Config, progress ProgressFunc) (*Result, error) {
	if closes.Empty() {
		return nil, ErrNoData
	}

	rolling := closes.Rolling(cfg.Window)
	if rolling.Empty() {
		return nil, fmt.Errorf("%w: %d closes for a %d-day window", ErrInsufficientData, closes.Len(), cfg.Window)
	}

	sel := stats.DifferencingOrder(rolling.Values, cfg.Significance)
	order := arima.Order{P: cfg.ARLags, D: sel.Order}

	logger := logging.Component("forecast").With().Str("symbol", closes.Name).Logger()
	logger.Debug().
		Int("points", rolling.Len()).
		Int("d", sel.Order).
		Floats64("p_values", sel.PValues).
		Msg("differencing order selected")

	eval, err := Evaluate(ctx, rolling, order, cfg.TrainRatio, progress)
	if err != nil {
		return nil, fmt.Errorf("evaluating %s: %w", order, err)
	}

	points, err := Forecast(rolling, order, cfg.Horizon)
	if err != nil {
		return nil, err
	}

	lastDate, _, _ := rolling.Last()
	logger.Info().
		Str("model", order.String()).
		Float64("rmse", eval.RMSE).
		Int("train", eval.TrainSize).
		Int("test", eval.TestSize).
		Msg("forecast complete")

	return &Result{
		Symbol:      closes.Name,
		RMSE:        eval.RMSE,
		Selection:   sel,
		Model:       order,
		Evaluation:  eval,
		Forecast:    points,
		History:     toPoints(rolling.Tail(cfg.PlotPoints)),
		LastDate:    lastDate,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func wrapInsufficient(err error) error {
	if errors.Is(err, arima.ErrInsufficientData) {
		return fmt.Errorf("%w: %v", ErrInsufficientData, err)
	}
	return err
}

func toPoints(s *timeseries.Series) []model.ForecastPoint {
	out := make([]model.ForecastPoint, s.Len())
	for i := range s.Values {
		out[i] = model.ForecastPoint{Date: s.Dates[i], Close: s.Values[i]}
	}
	return out
}
