package model

import "time"

// Candle represents a single candlestick (OHLCV data)
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Stock represents an entry of the stock universe
type Stock struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"` // NSE
	Currency string `json:"currency"`
}

// History is the daily OHLCV history of one symbol, ascending by time
type History struct {
	Symbol   string   `json:"symbol"`
	Currency string   `json:"currency,omitempty"`
	Candles  []Candle `json:"candles"`
}

// Empty reports whether the history carries no candles
func (h *History) Empty() bool {
	return h == nil || len(h.Candles) == 0
}

// Closes returns the close prices in candle order
func (h *History) Closes() []float64 {
	if h == nil {
		return nil
	}
	closes := make([]float64, len(h.Candles))
	for i, c := range h.Candles {
		closes[i] = c.Close
	}
	return closes
}

// Times returns the candle timestamps in order
func (h *History) Times() []time.Time {
	if h == nil {
		return nil
	}
	times := make([]time.Time, len(h.Candles))
	for i, c := range h.Candles {
		times[i] = c.Time
	}
	return times
}

// Profile is the company metadata record. Metrics the provider does not
// report stay nil.
type Profile struct {
	Symbol          string   `json:"symbol"`
	ShortName       string   `json:"short_name"`
	BusinessSummary string   `json:"business_summary,omitempty"`
	Sector          string   `json:"sector,omitempty"`
	Website         string   `json:"website,omitempty"`
	Currency        string   `json:"currency,omitempty"`
	MarketCap       *float64 `json:"market_cap"`
	Beta            *float64 `json:"beta"`
	TrailingEPS     *float64 `json:"trailing_eps"`
	TrailingPE      *float64 `json:"trailing_pe"`
	QuickRatio      *float64 `json:"quick_ratio"`
	RevenuePerShare *float64 `json:"revenue_per_share"`
	ProfitMargins   *float64 `json:"profit_margins"`
	DebtToEquity    *float64 `json:"debt_to_equity"`
}

// Valid reports whether the profile identifies a listed company
func (p *Profile) Valid() bool {
	return p != nil && p.ShortName != ""
}

// ForecastPoint is one dated forecast value
type ForecastPoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}
