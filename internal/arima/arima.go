// Package arima fits ARIMA(p, d, 0) models by conditional least squares
// and produces multi-step forecasts.
//
// The Estimator keeps the normal equations of the autoregression and grows
// them one observation at a time, so refitting after every new point costs
// O(p²) instead of a pass over the whole history while giving the same fit
// as estimating from scratch:
//
//	est, err := arima.NewEstimator(arima.Order{P: 5, D: 1}, train)
//	for _, obs := range test {
//	    m, _ := est.Fit()
//	    next, _ := m.Forecast(1)
//	    est.Append(obs)
//	}
package arima

import (
	"errors"
	"fmt"
	"math"

	"stockcast/internal/stats"
	"stockcast/internal/timeseries"
)

var (
	ErrInsufficientData = errors.New("insufficient data points for the specified order")
	ErrUnsupportedOrder = errors.New("unsupported arima order")
	ErrNotFitted        = errors.New("model must be fitted before forecasting")
)

// Order represents ARIMA model order (p, d, q).
type Order struct {
	P int `json:"p"` // AR order
	D int `json:"d"` // differencing order
	Q int `json:"q"` // MA order, only 0 is supported
}

func (o Order) String() string {
	return fmt.Sprintf("ARIMA(%d,%d,%d)", o.P, o.D, o.Q)
}

// Validate checks that the order can be estimated.
func (o Order) Validate() error {
	if o.P < 0 || o.D < 0 {
		return fmt.Errorf("%w: %s has negative terms", ErrUnsupportedOrder, o)
	}
	if o.Q != 0 {
		return fmt.Errorf("%w: %s has moving-average terms", ErrUnsupportedOrder, o)
	}
	return nil
}

// hasConstant follows the usual convention: a constant only without
// differencing.
func (o Order) hasConstant() bool {
	return o.D == 0
}

func (o Order) params() int {
	k := o.P
	if o.hasConstant() {
		k++
	}
	return k
}

// Model is a fitted ARIMA(p, d, 0) model.
type Model struct {
	Order     Order     `json:"order"`
	Intercept float64   `json:"intercept"`
	ARCoeffs  []float64 `json:"ar_coeffs"`
	Sigma2    float64   `json:"sigma2"`
	NObs      int       `json:"nobs"`
	// Degenerate is set when the differenced series was constant; the model
	// then reproduces that constant.
	Degenerate bool `json:"degenerate"`

	lastW      []float64 // last P values of the differenced series
	lastLevels []float64 // last value of the k-times differenced series, k < D
}

// Estimator accumulates observations for incremental refitting.
type Estimator struct {
	order   Order
	history []float64
	w       []float64 // D-times differenced history

	xtx [][]float64
	xty []float64
	yty float64

	constant bool
}

// NewEstimator creates an estimator seeded with history.
func NewEstimator(order Order, history []float64) (*Estimator, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	k := order.params()
	e := &Estimator{
		order:    order,
		history:  make([]float64, 0, len(history)),
		xtx:      stats.NewMatrix(k),
		xty:      make([]float64, k),
		constant: true,
	}
	for _, v := range history {
		e.Append(v)
	}
	return e, nil
}

// Append adds one observation at the end of the history.
func (e *Estimator) Append(v float64) {
	e.history = append(e.history, v)
	d := e.order.D
	if len(e.history) <= d {
		return
	}

	w := differenced(e.history, d)
	e.w = append(e.w, w)
	if len(e.w) > 1 && w != e.w[0] {
		e.constant = false
	}

	p := e.order.P
	t := len(e.w) - 1
	if t < p {
		return
	}
	row := e.row(t)
	stats.AccumulateRow(e.xtx, e.xty, row, w)
	e.yty += w * w
}

// row builds the regressors predicting w[t] from the p preceding values.
func (e *Estimator) row(t int) []float64 {
	row := make([]float64, 0, e.order.params())
	if e.order.hasConstant() {
		row = append(row, 1)
	}
	for i := 1; i <= e.order.P; i++ {
		row = append(row, e.w[t-i])
	}
	return row
}

// Fit estimates the model on everything appended so far.
func (e *Estimator) Fit() (*Model, error) {
	k := e.order.params()
	rows := len(e.w) - e.order.P
	if len(e.w) == 0 || rows <= k {
		return nil, fmt.Errorf("%w: %d observations for %s", ErrInsufficientData, len(e.history), e.order)
	}

	m := &Model{
		Order:      e.order,
		ARCoeffs:   make([]float64, e.order.P),
		NObs:       len(e.history),
		lastW:      tail(e.w, e.order.P),
		lastLevels: levelTails(e.history, e.order.D),
	}

	if e.constant {
		m.Degenerate = true
		m.Intercept = e.w[0]
		return m, nil
	}

	beta, err := stats.Solve(e.xtx, e.xty)
	if err != nil {
		beta, err = stats.Solve(ridge(e.xtx), e.xty)
		if err != nil {
			return nil, fmt.Errorf("fitting %s: %w", e.order, err)
		}
	}

	i := 0
	if e.order.hasConstant() {
		m.Intercept = beta[0]
		i = 1
	}
	copy(m.ARCoeffs, beta[i:])

	ssr := e.yty
	for j := range beta {
		ssr -= beta[j] * e.xty[j]
	}
	m.Sigma2 = math.Max(ssr, 0) / float64(rows)

	return m, nil
}

// Fit estimates an ARIMA model of the given order on values.
func Fit(order Order, values []float64) (*Model, error) {
	e, err := NewEstimator(order, values)
	if err != nil {
		return nil, err
	}
	return e.Fit()
}

// Forecast returns the next steps values on the original scale.
func (m *Model) Forecast(steps int) ([]float64, error) {
	if m == nil || m.NObs == 0 {
		return nil, ErrNotFitted
	}
	if steps < 1 {
		return nil, errors.New("steps must be at least 1")
	}

	p := m.Order.P
	ext := make([]float64, len(m.lastW), len(m.lastW)+steps)
	copy(ext, m.lastW)

	for h := 0; h < steps; h++ {
		t := len(ext)
		pred := m.Intercept
		for i := 0; i < p; i++ {
			pred += m.ARCoeffs[i] * ext[t-i-1]
		}
		ext = append(ext, pred)
	}

	return integrate(ext[len(m.lastW):], m.lastLevels), nil
}

// integrate undoes differencing, innermost level first.
func integrate(forecasts, lastLevels []float64) []float64 {
	out := make([]float64, len(forecasts))
	copy(out, forecasts)
	for k := len(lastLevels) - 1; k >= 0; k-- {
		prev := lastLevels[k]
		for j := range out {
			out[j] += prev
			prev = out[j]
		}
	}
	return out
}

// differenced returns the last value of the d-times differenced series,
// Σ (-1)^j C(d, j) x[t-j].
func differenced(x []float64, d int) float64 {
	t := len(x) - 1
	out := 0.0
	c := 1.0
	for j := 0; j <= d; j++ {
		if j > 0 {
			c = c * float64(d-j+1) / float64(j)
		}
		sign := 1.0
		if j%2 == 1 {
			sign = -1
		}
		out += sign * c * x[t-j]
	}
	return out
}

// levelTails returns, for k = 0..d-1, the last value of the k-times
// differenced history.
func levelTails(history []float64, d int) []float64 {
	if d == 0 {
		return nil
	}
	out := make([]float64, d)
	level := tail(history, d+1)
	for k := 0; k < d; k++ {
		out[k] = level[len(level)-1]
		level = timeseries.Diff(level)
	}
	return out
}

func tail(values []float64, n int) []float64 {
	if n > len(values) {
		n = len(values)
	}
	out := make([]float64, n)
	copy(out, values[len(values)-n:])
	return out
}

// ridge returns a copy of m with a small multiple of its largest diagonal
// entry added to the diagonal.
func ridge(m [][]float64) [][]float64 {
	scale := 0.0
	for i := range m {
		scale = math.Max(scale, math.Abs(m[i][i]))
	}
	lambda := scale * 1e-9
	if lambda == 0 {
		lambda = 1e-9
	}
	out := stats.NewMatrix(len(m))
	for i := range m {
		copy(out[i], m[i])
		out[i][i] += lambda
	}
	return out
}
