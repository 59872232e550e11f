package chart

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"stockcast/pkg/model"
)

// NotAvailable fills cells the provider did not report
const NotAvailable = "N/A"

// DefaultCurrency is assumed when the provider reports none
const DefaultCurrency = "INR"

// RecentDays is the length of the recent OHLCV table
const RecentDays = 10

// MetricRow is one row of a key-metrics table
type MetricRow struct {
	Metric string `json:"metric"`
	Value  string `json:"value"`
}

// MetricTables returns the two key-metric groups of a profile
func MetricTables(p *model.Profile) [2][]MetricRow {
	if p == nil {
		p = &model.Profile{}
	}
	return [2][]MetricRow{
		{
			{"Market Cap", formatBig(p.MarketCap)},
			{"Beta", formatMetric(p.Beta)},
			{"Trailing EPS", formatMetric(p.TrailingEPS)},
			{"Trailing PE", formatMetric(p.TrailingPE)},
		},
		{
			{"Quick Ratio", formatMetric(p.QuickRatio)},
			{"Revenue/Share", formatMetric(p.RevenuePerShare)},
			{"Profit Margins", formatMetric(p.ProfitMargins)},
			{"Debt to Equity", formatMetric(p.DebtToEquity)},
		},
	}
}

func formatMetric(v *float64) string {
	if v == nil || math.IsNaN(*v) {
		return NotAvailable
	}
	return decimal.NewFromFloat(*v).Round(4).String()
}

func formatBig(v *float64) string {
	if v == nil || math.IsNaN(*v) {
		return NotAvailable
	}
	return humanize.Comma(int64(math.Round(*v)))
}

// Fixed2 renders v with exactly two decimals, rounding half away from zero
func Fixed2(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// LastClose is the latest close and its change from the previous session
type LastClose struct {
	Date      string  `json:"date"`
	Price     float64 `json:"price"`
	Change    float64 `json:"change"`
	ChangePct float64 `json:"change_pct"`
	Value     string  `json:"value"`
	Delta     string  `json:"delta"`
}

// LastCloseOf computes the last-close metric. It needs at least two candles.
func LastCloseOf(candles []model.Candle, currency string) (*LastClose, bool) {
	if len(candles) < 2 {
		return nil, false
	}
	last := candles[len(candles)-1]
	prev := candles[len(candles)-2].Close

	lc := &LastClose{
		Date:  formatDate(last.Time),
		Price: last.Close,
	}
	lc.Change = last.Close - prev
	if prev != 0 {
		lc.ChangePct = lc.Change / prev * 100
	}
	lc.Value = Fixed2(lc.Price)
	if currency != "" {
		lc.Value += " " + currency
	}
	lc.Delta = fmt.Sprintf("%s (%s%%)", Fixed2(lc.Change), Fixed2(lc.ChangePct))
	return lc, true
}

// OHLCVRow is one formatted row of the recent history table
type OHLCVRow struct {
	Date   string `json:"date"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
}

// RecentRows returns the last n candles, newest first
func RecentRows(candles []model.Candle, n int) []OHLCVRow {
	if n > len(candles) {
		n = len(candles)
	}
	rows := make([]OHLCVRow, 0, n)
	for i := len(candles) - 1; i >= len(candles)-n; i-- {
		c := candles[i]
		rows = append(rows, OHLCVRow{
			Date:   formatDate(c.Time),
			Open:   Fixed2(c.Open),
			High:   Fixed2(c.High),
			Low:    Fixed2(c.Low),
			Close:  Fixed2(c.Close),
			Volume: humanize.Comma(c.Volume),
		})
	}
	return rows
}

// ForecastRow is one formatted forecast table row
type ForecastRow struct {
	Date  string `json:"date"`
	Close string `json:"close"`
}

// ForecastRows formats forecast points with two decimals
func ForecastRows(points []model.ForecastPoint) []ForecastRow {
	rows := make([]ForecastRow, len(points))
	for i, p := range points {
		rows[i] = ForecastRow{Date: formatDate(p.Date), Close: Fixed2(p.Close)}
	}
	return rows
}

// FormatRMSE renders the evaluation error with its currency
func FormatRMSE(rmse float64, currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Fixed2(rmse) + " " + currency
}
