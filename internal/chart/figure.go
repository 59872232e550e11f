// Package chart builds the dashboard payloads: Plotly figures and the
// formatted tables shown next to them.
package chart

import (
	"fmt"
	"math"
	"strings"
	"time"

	"stockcast/internal/indicators"
	"stockcast/pkg/model"
)

const (
	template   = "plotly_dark"
	dateLayout = "2006-01-02"
)

// ChartType selects how prices are drawn
type ChartType string

const (
	ChartLine   ChartType = "line"
	ChartCandle ChartType = "candle"
)

// Indicator names a technical overlay
type Indicator string

const (
	IndicatorRSI           Indicator = "RSI"
	IndicatorMACD          Indicator = "MACD"
	IndicatorMovingAverage Indicator = "Moving Average"
)

// ParseChartType validates a chart type. Empty selects a line chart.
func ParseChartType(s string) (ChartType, error) {
	switch ChartType(strings.ToLower(strings.TrimSpace(s))) {
	case "", ChartLine:
		return ChartLine, nil
	case ChartCandle, "candlestick":
		return ChartCandle, nil
	}
	return "", fmt.Errorf("unknown chart type %q", s)
}

// IndicatorsFor lists the indicators offered for a chart type. The first
// entry is the default.
func IndicatorsFor(t ChartType) []Indicator {
	if t == ChartCandle {
		return []Indicator{IndicatorRSI, IndicatorMACD}
	}
	return []Indicator{IndicatorRSI, IndicatorMovingAverage, IndicatorMACD}
}

// ParseIndicator matches s case-insensitively against the indicators offered
// for t. Empty selects the first one.
func ParseIndicator(t ChartType, s string) (Indicator, error) {
	options := IndicatorsFor(t)
	s = strings.TrimSpace(s)
	if s == "" {
		return options[0], nil
	}
	norm := strings.NewReplacer("_", " ", "-", " ").Replace(strings.ToLower(s))
	for _, ind := range options {
		if strings.ToLower(string(ind)) == norm || (ind == IndicatorMovingAverage && norm == "ma") {
			return ind, nil
		}
	}
	return "", fmt.Errorf("indicator %q not available for %s charts", s, t)
}

// Figure is a Plotly figure: traces plus layout
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// Trace is one Plotly trace. Scatter traces use Y; candlestick traces use
// the OHLC arrays. Missing values encode as null.
type Trace struct {
	Type  string     `json:"type"`
	Mode  string     `json:"mode,omitempty"`
	Name  string     `json:"name,omitempty"`
	X     []string   `json:"x"`
	Y     []*float64 `json:"y,omitempty"`
	Open  []float64  `json:"open,omitempty"`
	High  []float64  `json:"high,omitempty"`
	Low   []float64  `json:"low,omitempty"`
	Close []float64  `json:"close,omitempty"`
}

// Layout is the subset of Plotly layout attributes the dashboard sets
type Layout struct {
	Title    Title   `json:"title"`
	Template string  `json:"template"`
	XAxis    Axis    `json:"xaxis"`
	YAxis    Axis    `json:"yaxis"`
	Shapes   []Shape `json:"shapes,omitempty"`
}

type Title struct {
	Text string `json:"text"`
}

type Axis struct {
	Title       *Title       `json:"title,omitempty"`
	RangeSlider *RangeSlider `json:"rangeslider,omitempty"`
}

type RangeSlider struct {
	Visible bool `json:"visible"`
}

// Shape is a layout shape; the dashboard only draws horizontal lines
// spanning the plot width
type Shape struct {
	Type string    `json:"type"`
	XRef string    `json:"xref"`
	X0   float64   `json:"x0"`
	X1   float64   `json:"x1"`
	YRef string    `json:"yref"`
	Y0   float64   `json:"y0"`
	Y1   float64   `json:"y1"`
	Line ShapeLine `json:"line"`
}

type ShapeLine struct {
	Color string `json:"color"`
	Dash  string `json:"dash"`
}

func hline(y float64, color string) Shape {
	return Shape{
		Type: "line", XRef: "paper", X0: 0, X1: 1,
		YRef: "y", Y0: y, Y1: y,
		Line: ShapeLine{Color: color, Dash: "dash"},
	}
}

func newFigure(title string, traces ...Trace) *Figure {
	return &Figure{
		Data:   traces,
		Layout: Layout{Title: Title{Text: title}, Template: template},
	}
}

func line(name string, x []string, y []float64) Trace {
	return Trace{Type: "scatter", Mode: "lines", Name: name, X: x, Y: nullable(y)}
}

// CloseFigure draws the close price as a line
func CloseFigure(candles []model.Candle) *Figure {
	return newFigure("Close Price", line("Close Price", dates(candles), closes(candles)))
}

// CandlestickFigure draws OHLC candles without the range slider
func CandlestickFigure(candles []model.Candle) *Figure {
	t := Trace{
		Type:  "candlestick",
		X:     dates(candles),
		Open:  make([]float64, len(candles)),
		High:  make([]float64, len(candles)),
		Low:   make([]float64, len(candles)),
		Close: make([]float64, len(candles)),
	}
	for i, c := range candles {
		t.Open[i], t.High[i], t.Low[i], t.Close[i] = c.Open, c.High, c.Low, c.Close
	}
	fig := newFigure("Candlestick Chart", t)
	fig.Layout.XAxis.RangeSlider = &RangeSlider{Visible: false}
	return fig
}

// MovingAverageFigure draws the close with its 50- and 200-day SMAs
// computed over the given candles only
func MovingAverageFigure(candles []model.Candle) *Figure {
	x, c := dates(candles), closes(candles)
	return newFigure("Moving Averages",
		line("Close Price", x, c),
		line("50-Day SMA", x, indicators.SMA(c, indicators.SMAShort)),
		line("200-Day SMA", x, indicators.SMA(c, indicators.SMALong)),
	)
}

// RSIFigure draws RSI(14) with the overbought and oversold guides
func RSIFigure(candles []model.Candle) *Figure {
	rsi := indicators.RSI(closes(candles), indicators.RSIPeriod)
	fig := newFigure("Relative Strength Index (RSI)", line("RSI", dates(candles), rsi))
	fig.Layout.Shapes = []Shape{
		hline(indicators.RSIOverbought, "red"),
		hline(indicators.RSIOversold, "green"),
	}
	return fig
}

// MACDFigure draws MACD(12,26) and its 9-period signal line
func MACDFigure(candles []model.Candle) *Figure {
	m := indicators.MACD(closes(candles), indicators.MACDFast, indicators.MACDSlow, indicators.MACDSignal)
	x := dates(candles)
	return newFigure("MACD",
		line("MACD", x, m.MACD),
		line("Signal Line", x, m.Signal),
	)
}

// PriceFigure picks the main chart for a chart type and indicator
func PriceFigure(candles []model.Candle, t ChartType, ind Indicator) *Figure {
	switch {
	case t == ChartCandle:
		return CandlestickFigure(candles)
	case ind == IndicatorMovingAverage:
		return MovingAverageFigure(candles)
	}
	return CloseFigure(candles)
}

// IndicatorFigure returns the separate indicator chart, or nil when the
// indicator is drawn on the main chart
func IndicatorFigure(candles []model.Candle, ind Indicator) *Figure {
	switch ind {
	case IndicatorRSI:
		return RSIFigure(candles)
	case IndicatorMACD:
		return MACDFigure(candles)
	}
	return nil
}

// ForecastPlotPoints is the number of points shown on the forecast chart
const ForecastPlotPoints = 200

// ForecastFigure draws the smoothed history followed by the forecast as a
// single line, keeping the last points entries of the combination
func ForecastFigure(history, forecast []model.ForecastPoint, currency string, points int) *Figure {
	combined := make([]model.ForecastPoint, 0, len(history)+len(forecast))
	combined = append(combined, history...)
	combined = append(combined, forecast...)
	if points > 0 && len(combined) > points {
		combined = combined[len(combined)-points:]
	}

	x := make([]string, len(combined))
	y := make([]float64, len(combined))
	for i, p := range combined {
		x[i] = p.Date.Format(dateLayout)
		y[i] = p.Close
	}

	fig := newFigure("Price Forecast vs. Historical Data", line("Historical/Forecasted Price", x, y))
	fig.Layout.XAxis.Title = &Title{Text: "Date"}
	fig.Layout.YAxis.Title = &Title{Text: fmt.Sprintf("Price (%s)", currency)}
	return fig
}

func dates(candles []model.Candle) []string {
	out := make([]string, len(candles))
	for i, c := range candles {
		out[i] = c.Time.Format(dateLayout)
	}
	return out
}

func closes(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// nullable maps NaN to nil so the values survive JSON encoding
func nullable(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i := range values {
		if math.IsNaN(values[i]) || math.IsInf(values[i], 0) {
			continue
		}
		v := values[i]
		out[i] = &v
	}
	return out
}

// formatDate is shared by the tables
func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}
