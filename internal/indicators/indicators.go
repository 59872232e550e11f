// Package indicators computes technical indicator series over close prices.
// Every function returns a slice aligned with its input; positions without
// enough history hold NaN.
package indicators

import "math"

// Standard parameters
const (
	RSIPeriod     = 14
	MACDFast      = 12
	MACDSlow      = 26
	MACDSignal    = 9
	SMAShort      = 50
	SMALong       = 200
	RSIOverbought = 70
	RSIOversold   = 30
)

// SMA calculates the simple moving average for the given period
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EWM calculates an exponentially weighted mean with smoothing alpha and
// no bias adjustment: m = (1-alpha)·m + alpha·x, seeded with the first
// non-NaN input. Outputs before minPeriods valid inputs are NaN.
func EWM(values []float64, alpha float64, minPeriods int) []float64 {
	out := nanSlice(len(values))
	var m float64
	seen := 0
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if seen == 0 {
			m = v
		} else {
			m = (1-alpha)*m + alpha*v
		}
		seen++
		if seen >= minPeriods {
			out[i] = m
		}
	}
	return out
}

// EMA is the span-parameterized EWM (alpha = 2/(span+1)) requiring span
// observations
func EMA(values []float64, span int) []float64 {
	return EWM(values, 2/float64(span+1), span)
}

// RSI calculates the Relative Strength Index with Wilder smoothing
// (alpha = 1/period). The first bar has no change and counts as a flat
// move, so the first value lands at index period-1. A window without
// losses reads 100.
func RSI(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < 2 {
		return out
	}

	gains := make([]float64, len(values))
	losses := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	alpha := 1 / float64(period)
	avgGain := EWM(gains, alpha, period)
	avgLoss := EWM(losses, alpha, period)

	for i := range values {
		if math.IsNaN(avgGain[i]) || math.IsNaN(avgLoss[i]) {
			continue
		}
		if avgLoss[i] == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain[i] / avgLoss[i]
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// MACDResult holds the MACD line, its signal line and their difference
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD calculates the moving average convergence divergence
func MACD(values []float64, fast, slow, signal int) MACDResult {
	fastEMA := EMA(values, fast)
	slowEMA := EMA(values, slow)

	line := nanSlice(len(values))
	for i := range values {
		if !math.IsNaN(fastEMA[i]) && !math.IsNaN(slowEMA[i]) {
			line[i] = fastEMA[i] - slowEMA[i]
		}
	}

	sig := EMA(line, signal)
	hist := nanSlice(len(values))
	for i := range values {
		if !math.IsNaN(line[i]) && !math.IsNaN(sig[i]) {
			hist[i] = line[i] - sig[i]
		}
	}

	return MACDResult{MACD: line, Signal: sig, Histogram: hist}
}

// Last returns the final non-NaN value of a series
func Last(values []float64) (float64, bool) {
	for i := len(values) - 1; i >= 0; i-- {
		if !math.IsNaN(values[i]) {
			return values[i], true
		}
	}
	return 0, false
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
