// Package timeseries holds the date-indexed price series used by the
// forecasting pipeline.
package timeseries

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// DefaultWindow is the trailing window of the smoothing step.
const DefaultWindow = 30

var (
	ErrLengthMismatch = errors.New("dates and values must have the same length")
	ErrUnordered      = errors.New("dates must be strictly increasing")
)

// Series is a date-indexed sequence of values, ascending by date with no
// duplicate dates.
type Series struct {
	Dates  []time.Time
	Values []float64
	Name   string
}

// New builds a series and checks the ordering invariant.
func New(name string, dates []time.Time, values []float64) (*Series, error) {
	if len(dates) != len(values) {
		return nil, ErrLengthMismatch
	}
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return nil, fmt.Errorf("%w: index %d (%s after %s)", ErrUnordered, i,
				dates[i].Format("2006-01-02"), dates[i-1].Format("2006-01-02"))
		}
	}
	return &Series{Dates: dates, Values: values, Name: name}, nil
}

// Daily builds a series of consecutive calendar days starting at start.
func Daily(name string, start time.Time, values []float64) *Series {
	dates := make([]time.Time, len(values))
	for i := range values {
		dates[i] = start.AddDate(0, 0, i)
	}
	return &Series{Dates: dates, Values: values, Name: name}
}

// Len returns the length of the series.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Values)
}

// Empty reports whether the series has no points.
func (s *Series) Empty() bool {
	return s.Len() == 0
}

// Last returns the date and value of the final point.
func (s *Series) Last() (time.Time, float64, bool) {
	if s.Empty() {
		return time.Time{}, 0, false
	}
	n := len(s.Values) - 1
	return s.Dates[n], s.Values[n], true
}

// Rolling returns the trailing simple moving average over window points.
// The first window-1 points have no full window and are dropped; each output
// point carries the date of the last point of its window. A series shorter
// than window yields an empty series.
func (s *Series) Rolling(window int) *Series {
	if window <= 0 || s.Len() < window {
		return &Series{Name: s.Name + "_rolling"}
	}

	n := s.Len() - window + 1
	values := make([]float64, n)
	dates := make([]time.Time, n)

	for i := 0; i < n; i++ {
		w := s.Values[i : i+window]
		if IsConstant(w) {
			// a flat window averages to its value exactly
			values[i] = w[0]
		} else {
			values[i] = mean(w)
		}
		dates[i] = s.Dates[i+window-1]
	}

	return &Series{Dates: dates, Values: values, Name: s.Name + "_rolling"}
}

// Slice returns a copy of points [start, end).
func (s *Series) Slice(start, end int) *Series {
	if start < 0 {
		start = 0
	}
	if end > s.Len() {
		end = s.Len()
	}
	if start >= end {
		return &Series{Name: s.Name}
	}

	values := make([]float64, end-start)
	copy(values, s.Values[start:end])
	dates := make([]time.Time, end-start)
	copy(dates, s.Dates[start:end])

	return &Series{Dates: dates, Values: values, Name: s.Name}
}

// Tail returns the last n points.
func (s *Series) Tail(n int) *Series {
	return s.Slice(s.Len()-n, s.Len())
}

// Diff returns the first difference of values.
func Diff(values []float64) []float64 {
	if len(values) < 2 {
		return []float64{}
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		out[i-1] = values[i] - values[i-1]
	}
	return out
}

// IsConstant reports whether all values are equal. Empty input is not
// constant.
func IsConstant(values []float64) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// RMSE is the root-mean-squared error between actual and predicted. The
// slices must have equal, non-zero length.
func RMSE(actual, predicted []float64) (float64, error) {
	if len(actual) != len(predicted) {
		return 0, ErrLengthMismatch
	}
	if len(actual) == 0 {
		return 0, errors.New("rmse of empty input")
	}
	sum := 0.0
	for i := range actual {
		d := actual[i] - predicted[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(actual))), nil
}
