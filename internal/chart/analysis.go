package chart

import (
	"errors"

	"stockcast/internal/forecast"
	"stockcast/pkg/model"
)

// ErrNoHistory is returned when there is nothing to chart
var ErrNoHistory = errors.New("no price history")

// Options selects the chart view
type Options struct {
	Period    Period
	ChartType ChartType
	Indicator Indicator
}

// Analysis is the full descriptive dashboard payload for one symbol
type Analysis struct {
	Symbol         string         `json:"symbol"`
	Currency       string         `json:"currency"`
	Profile        *model.Profile `json:"profile,omitempty"`
	Metrics        [2][]MetricRow `json:"metrics"`
	LastClose      *LastClose     `json:"last_close,omitempty"`
	Recent         []OHLCVRow     `json:"recent"`
	Period         Period         `json:"period"`
	Periods        []Period       `json:"periods"`
	ChartType      ChartType      `json:"chart_type"`
	Indicator      Indicator      `json:"indicator"`
	Indicators     []Indicator    `json:"indicators"`
	Chart          *Figure        `json:"chart"`
	IndicatorChart *Figure        `json:"indicator_chart,omitempty"`
}

// BuildAnalysis assembles the analysis payload. Tables use the full history;
// charts and their indicators use only the selected period.
func BuildAnalysis(hist *model.History, profile *model.Profile, opts Options) (*Analysis, error) {
	if hist.Empty() {
		return nil, ErrNoHistory
	}
	if opts.Period == "" {
		opts.Period = DefaultPeriod
	}
	if opts.ChartType == "" {
		opts.ChartType = ChartLine
	}
	if opts.Indicator == "" {
		opts.Indicator = IndicatorsFor(opts.ChartType)[0]
	}

	currency := hist.Currency
	if currency == "" && profile != nil {
		currency = profile.Currency
	}

	a := &Analysis{
		Symbol:     hist.Symbol,
		Currency:   currency,
		Profile:    profile,
		Metrics:    MetricTables(profile),
		Recent:     RecentRows(hist.Candles, RecentDays),
		Period:     opts.Period,
		Periods:    Periods,
		ChartType:  opts.ChartType,
		Indicator:  opts.Indicator,
		Indicators: IndicatorsFor(opts.ChartType),
	}
	if lc, ok := LastCloseOf(hist.Candles, currency); ok {
		a.LastClose = lc
	}

	window := Slice(hist.Candles, opts.Period)
	a.Chart = PriceFigure(window, opts.ChartType, opts.Indicator)
	a.IndicatorChart = IndicatorFigure(window, opts.Indicator)
	return a, nil
}

// Prediction is the forecast dashboard payload
type Prediction struct {
	Symbol   string        `json:"symbol"`
	Order    int           `json:"differencing_order"`
	Model    string        `json:"model"`
	RMSE     float64       `json:"rmse"`
	RMSEText string        `json:"rmse_text"`
	Forecast []ForecastRow `json:"forecast"`
	Chart    *Figure       `json:"chart"`
}

// BuildPrediction formats a forecast result for display
func BuildPrediction(r *forecast.Result, currency string) *Prediction {
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Prediction{
		Symbol:   r.Symbol,
		Order:    r.Selection.Order,
		Model:    r.Model.String(),
		RMSE:     r.RMSE,
		RMSEText: FormatRMSE(r.RMSE, currency),
		Forecast: ForecastRows(r.Forecast),
		Chart:    ForecastFigure(r.History, r.Forecast, currency, ForecastPlotPoints),
	}
}
