package chart

import (
	"fmt"
	"strings"
	"time"

	"stockcast/pkg/model"
)

// Period is a lookback window applied to a history before charting
type Period string

const (
	Period5D  Period = "5d"
	Period1M  Period = "1mo"
	Period6M  Period = "6mo"
	PeriodYTD Period = "ytd"
	Period1Y  Period = "1y"
	Period5Y  Period = "5y"
	PeriodMax Period = "max"
)

// DefaultPeriod is selected until the user picks another one
const DefaultPeriod = Period1Y

// Periods lists the selectable periods in display order
var Periods = []Period{Period5D, Period1M, Period6M, PeriodYTD, Period1Y, Period5Y, PeriodMax}

// ParsePeriod validates a period token. An empty token selects DefaultPeriod.
func ParsePeriod(s string) (Period, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultPeriod, nil
	}
	for _, p := range Periods {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Start returns the first date included by p when the newest point is at
// last. The zero time means no lower bound.
func (p Period) Start(last time.Time) time.Time {
	switch p {
	case Period5D:
		return last.AddDate(0, 0, -5)
	case Period1M:
		return last.AddDate(0, -1, 0)
	case Period6M:
		return last.AddDate(0, -6, 0)
	case PeriodYTD:
		return time.Date(last.Year(), 1, 1, 0, 0, 0, 0, last.Location())
	case Period1Y:
		return last.AddDate(-1, 0, 0)
	case Period5Y:
		return last.AddDate(-5, 0, 0)
	}
	return time.Time{}
}

// Slice returns the candles on or after p's start, relative to the newest
// candle rather than the wall clock
func Slice(candles []model.Candle, p Period) []model.Candle {
	if len(candles) == 0 {
		return nil
	}
	start := p.Start(candles[len(candles)-1].Time)
	if start.IsZero() {
		return candles
	}
	for i, c := range candles {
		if !c.Time.Before(start) {
			return candles[i:]
		}
	}
	return nil
}
