package symbols

import (
	"errors"
	"strings"

	"stockcast/pkg/model"
)

// Universe represents a predefined stock universe
type Universe string

const (
	UniverseNSE  Universe = "nse"
	UniverseTest Universe = "test" // Single symbol for testing
)

// GetUniverse returns the list of symbols for a given universe
func GetUniverse(u Universe) []string {
	switch u {
	case UniverseNSE:
		return NSESymbols
	case UniverseTest:
		return TestSymbols
	default:
		return nil
	}
}

// NSESymbols is the fixed dashboard universe, in display order
var NSESymbols = []string{"TCS.NS", "CIPLA.NS", "HDFCBANK.NS"}

// TestSymbols is a small set for quick testing
var TestSymbols = []string{"TCS.NS"}

var defaultStocks = map[string]model.Stock{
	"TCS.NS":      {Symbol: "TCS.NS", Name: "Tata Consultancy Services Limited", Exchange: "NSE", Currency: "INR"},
	"CIPLA.NS":    {Symbol: "CIPLA.NS", Name: "Cipla Limited", Exchange: "NSE", Currency: "INR"},
	"HDFCBANK.NS": {Symbol: "HDFCBANK.NS", Name: "HDFC Bank Limited", Exchange: "NSE", Currency: "INR"},
}

// Stocks returns the universe entries with their default names
func Stocks() []model.Stock {
	out := make([]model.Stock, len(NSESymbols))
	for i, sym := range NSESymbols {
		out[i] = defaultStocks[sym]
	}
	return out
}

// Lookup finds a universe entry by ticker, ignoring case and surrounding
// whitespace. A bare NSE code such as "tcs" resolves to "TCS.NS".
func Lookup(symbol string) (model.Stock, bool) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if s, ok := defaultStocks[sym]; ok {
		return s, true
	}
	if !strings.Contains(sym, ".") {
		s, ok := defaultStocks[sym+".NS"]
		return s, ok
	}
	return model.Stock{}, false
}

// ErrUnknownSymbol is returned for tickers outside the universe
var ErrUnknownSymbol = errors.New("unknown symbol")
