package chart

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcast/internal/arima"
	"stockcast/internal/forecast"
	"stockcast/internal/stats"
	"stockcast/pkg/model"
)

var day0 = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func candlesFrom(start time.Time, n int) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		c := 100 + float64(i)
		out[i] = model.Candle{
			Time:   start.AddDate(0, 0, i),
			Open:   c - 0.5,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1234567 + int64(i),
		}
	}
	return out
}

func ptr(v float64) *float64 { return &v }

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, Period1Y, p)

	p, err = ParsePeriod(" 6MO ")
	require.NoError(t, err)
	assert.Equal(t, Period6M, p)

	_, err = ParsePeriod("2w")
	assert.Error(t, err)
}

func TestSliceRelativeToLastDate(t *testing.T) {
	candles := candlesFrom(day0, 800) // ends 2022-03-10
	last := candles[len(candles)-1].Time

	tests := []struct {
		period Period
		first  time.Time
	}{
		{Period5D, last.AddDate(0, 0, -5)},
		{Period1M, last.AddDate(0, -1, 0)},
		{Period1Y, last.AddDate(-1, 0, 0)},
		{PeriodYTD, time.Date(last.Year(), 1, 1, 0, 0, 0, 0, time.UTC)},
		{Period5Y, day0},
		{PeriodMax, day0},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			got := Slice(candles, tt.period)
			require.NotEmpty(t, got)
			assert.Equal(t, tt.first, got[0].Time)
			assert.Equal(t, last, got[len(got)-1].Time)
		})
	}

	assert.Len(t, Slice(candles, Period5D), 6)
	assert.Nil(t, Slice(nil, PeriodMax))
}

func TestIndicatorsFor(t *testing.T) {
	assert.Equal(t, []Indicator{IndicatorRSI, IndicatorMACD}, IndicatorsFor(ChartCandle))
	assert.Equal(t, []Indicator{IndicatorRSI, IndicatorMovingAverage, IndicatorMACD}, IndicatorsFor(ChartLine))

	ind, err := ParseIndicator(ChartLine, "moving_average")
	require.NoError(t, err)
	assert.Equal(t, IndicatorMovingAverage, ind)

	_, err = ParseIndicator(ChartCandle, "Moving Average")
	assert.Error(t, err)

	ind, err = ParseIndicator(ChartCandle, "")
	require.NoError(t, err)
	assert.Equal(t, IndicatorRSI, ind)

	ct, err := ParseChartType("Candle")
	require.NoError(t, err)
	assert.Equal(t, ChartCandle, ct)
	_, err = ParseChartType("bar")
	assert.Error(t, err)
}

func TestRSIFigureEncodesGaps(t *testing.T) {
	fig := RSIFigure(candlesFrom(day0, 30))

	require.Len(t, fig.Data, 1)
	assert.Nil(t, fig.Data[0].Y[0])
	assert.Nil(t, fig.Data[0].Y[12])
	require.NotNil(t, fig.Data[0].Y[13])
	assert.Equal(t, 100.0, *fig.Data[0].Y[13])
	require.Len(t, fig.Layout.Shapes, 2)
	assert.Equal(t, 70.0, fig.Layout.Shapes[0].Y0)
	assert.Equal(t, "red", fig.Layout.Shapes[0].Line.Color)
	assert.Equal(t, 30.0, fig.Layout.Shapes[1].Y0)

	raw, err := json.Marshal(fig)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"y":[null,`)
	assert.Contains(t, string(raw), `"template":"plotly_dark"`)
}

func TestPriceFigureSelection(t *testing.T) {
	candles := candlesFrom(day0, 60)

	candle := PriceFigure(candles, ChartCandle, IndicatorRSI)
	assert.Equal(t, "candlestick", candle.Data[0].Type)
	require.NotNil(t, candle.Layout.XAxis.RangeSlider)
	assert.False(t, candle.Layout.XAxis.RangeSlider.Visible)

	ma := PriceFigure(candles, ChartLine, IndicatorMovingAverage)
	require.Len(t, ma.Data, 3)
	assert.Equal(t, "50-Day SMA", ma.Data[1].Name)
	assert.Nil(t, ma.Data[1].Y[48])
	assert.NotNil(t, ma.Data[1].Y[49])
	for _, y := range ma.Data[2].Y {
		assert.Nil(t, y, "200-day SMA needs 200 points in the period")
	}
	assert.Nil(t, IndicatorFigure(candles, IndicatorMovingAverage))

	macd := IndicatorFigure(candles, IndicatorMACD)
	require.Len(t, macd.Data, 2)
	assert.Equal(t, "Signal Line", macd.Data[1].Name)

	line := PriceFigure(candles, ChartLine, IndicatorMACD)
	assert.Equal(t, "Close Price", line.Layout.Title.Text)
}

func TestMetricTables(t *testing.T) {
	tables := MetricTables(&model.Profile{
		ShortName: "Tata Consultancy Services",
		MarketCap: ptr(12345678901),
		Beta:      ptr(0.5123),
	})

	assert.Equal(t, "Market Cap", tables[0][0].Metric)
	assert.Equal(t, "12,345,678,901", tables[0][0].Value)
	assert.Equal(t, "0.5123", tables[0][1].Value)
	assert.Equal(t, NotAvailable, tables[0][2].Value)
	assert.Equal(t, "Debt to Equity", tables[1][3].Metric)

	empty := MetricTables(nil)
	for _, group := range empty {
		for _, row := range group {
			assert.Equal(t, NotAvailable, row.Value)
		}
	}
}

func TestLastCloseAndRecent(t *testing.T) {
	candles := candlesFrom(day0, 12)

	lc, ok := LastCloseOf(candles, "INR")
	require.True(t, ok)
	assert.Equal(t, "111.00 INR", lc.Value)
	assert.Equal(t, "1.00 (0.91%)", lc.Delta)

	_, ok = LastCloseOf(candles[:1], "INR")
	assert.False(t, ok)

	rows := RecentRows(candles, RecentDays)
	require.Len(t, rows, RecentDays)
	assert.Equal(t, "2020-01-12", rows[0].Date)
	assert.Equal(t, "2020-01-03", rows[9].Date)
	assert.Equal(t, "1,234,578", rows[0].Volume)
	assert.Equal(t, "110.50", rows[0].Open)

	assert.Len(t, RecentRows(candles[:3], RecentDays), 3)
}

func TestBuildAnalysis(t *testing.T) {
	hist := &model.History{Symbol: "TCS.NS", Currency: "INR", Candles: candlesFrom(day0, 400)}

	a, err := BuildAnalysis(hist, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, Period1Y, a.Period)
	assert.Equal(t, ChartLine, a.ChartType)
	assert.Equal(t, IndicatorRSI, a.Indicator)
	assert.NotNil(t, a.IndicatorChart)
	assert.Len(t, a.Recent, RecentDays)
	assert.Len(t, a.Chart.Data[0].X, 367)

	_, err = BuildAnalysis(&model.History{Symbol: "X"}, nil, Options{})
	assert.ErrorIs(t, err, ErrNoHistory)
}

func TestBuildPrediction(t *testing.T) {
	var history, points []model.ForecastPoint
	for i := 0; i < 200; i++ {
		history = append(history, model.ForecastPoint{Date: day0.AddDate(0, 0, i), Close: 10})
	}
	for i := 0; i < 30; i++ {
		points = append(points, model.ForecastPoint{Date: day0.AddDate(0, 0, 200+i), Close: 10.005})
	}
	r := &forecast.Result{
		Symbol:    "TCS.NS",
		RMSE:      1.234,
		Selection: stats.OrderSelection{Order: 1},
		Model:     arima.Order{P: 5, D: 1},
		Forecast:  points,
		History:   history,
	}

	p := BuildPrediction(r, "")
	assert.Equal(t, "1.23 INR", p.RMSEText)
	assert.Equal(t, "ARIMA(5,1,0)", p.Model)
	require.Len(t, p.Forecast, 30)
	assert.Equal(t, "10.01", p.Forecast[0].Close)

	x := p.Chart.Data[0].X
	require.Len(t, x, ForecastPlotPoints)
	assert.Equal(t, day0.AddDate(0, 0, 30).Format("2006-01-02"), x[0])
	assert.Equal(t, "Price (INR)", p.Chart.Layout.YAxis.Title.Text)
}
