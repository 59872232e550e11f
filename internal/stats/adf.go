// Package stats implements the stationarity test and the differencing-order
// rule used before fitting ARIMA models.
package stats

import (
	"errors"
	"fmt"
	"math"

	"stockcast/internal/timeseries"
)

// ErrTooShort is returned when a series has too few points for the test.
var ErrTooShort = errors.New("sample size is too short for the adf test")

// ADFResult is the outcome of an augmented Dickey-Fuller test with a
// constant term.
type ADFResult struct {
	Statistic      float64
	PValue         float64
	UsedLag        int
	NObs           int
	CriticalValues map[string]float64
	// Constant is set for zero-variance input, which has no unit root and
	// is reported stationary with p-value 0.
	Constant bool
}

// Stationary reports whether the unit-root null is rejected at alpha.
func (r *ADFResult) Stationary(alpha float64) bool {
	return r.PValue <= alpha
}

// ADF runs the augmented Dickey-Fuller test (constant, no trend). The lag
// length is picked by AIC among 0..maxlag on a common sample, where
// maxlag = ceil(12·(n/100)^¼) capped at n/2-2, and the regression is then
// refit with the chosen lag on all usable observations.
func ADF(values []float64) (*ADFResult, error) {
	n := len(values)
	if n < 4 {
		return nil, fmt.Errorf("%w: %d points", ErrTooShort, n)
	}
	if timeseries.IsConstant(values) {
		return &ADFResult{
			Statistic: math.Inf(-1),
			PValue:    0,
			NObs:      n,
			Constant:  true,
		}, nil
	}

	maxLag := int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	if limit := n/2 - 2; limit < maxLag {
		maxLag = limit
	}
	if maxLag < 0 {
		return nil, fmt.Errorf("%w: %d points", ErrTooShort, n)
	}

	diff := timeseries.Diff(values)

	// AIC search over the common sample defined by maxLag
	bestLag := -1
	bestAIC := math.Inf(1)
	for lag := 0; lag <= maxLag; lag++ {
		x, y := adfDesign(values, diff, maxLag, lag)
		res, err := OLS(x, y)
		if err != nil {
			continue
		}
		if aic := res.AIC(); aic < bestAIC {
			bestAIC = aic
			bestLag = lag
		}
	}
	if bestLag < 0 {
		return nil, fmt.Errorf("adf lag search: %w", ErrSingular)
	}

	x, y := adfDesign(values, diff, bestLag, bestLag)
	res, err := OLS(x, y)
	if err != nil {
		return nil, fmt.Errorf("adf regression: %w", err)
	}

	stat := res.TValue(1)
	if math.IsNaN(stat) {
		return nil, fmt.Errorf("adf regression: %w", ErrSingular)
	}

	return &ADFResult{
		Statistic:      stat,
		PValue:         MacKinnonP(stat),
		UsedLag:        bestLag,
		NObs:           len(y),
		CriticalValues: MacKinnonCrit(len(y)),
	}, nil
}

// adfDesign builds the regression Δy_t = α + β·y_{t-1} + Σ γ_i·Δy_{t-i}.
// The sample starts after trim lags so that models with fewer lags can be
// compared on the same observations.
func adfDesign(values, diff []float64, trim, lags int) ([][]float64, []float64) {
	nObs := len(diff) - trim
	if nObs <= 0 {
		return nil, nil
	}
	x := make([][]float64, nObs)
	y := make([]float64, nObs)
	for i := 0; i < nObs; i++ {
		t := i + trim
		y[i] = diff[t]
		row := make([]float64, 2+lags)
		row[0] = 1
		row[1] = values[t]
		for j := 1; j <= lags; j++ {
			row[1+j] = diff[t-j]
		}
		x[i] = row
	}
	return x, y
}

// MacKinnon (1994) response-surface coefficients for one variable with a
// constant.
const (
	tauMax  = 2.74
	tauMin  = -18.83
	tauStar = -1.61
)

var (
	tauSmallP = []float64{2.1659, 1.4412, 0.038269}
	tauLargeP = []float64{1.7339, 0.93202, -0.12745, -0.010368}

	// MacKinnon (2010) finite-sample critical value surfaces
	tauCrit = map[string][]float64{
		"1%":  {-3.43035, -6.5393, -16.786, -79.433},
		"5%":  {-2.86154, -2.8903, -4.234, -40.040},
		"10%": {-2.56677, -1.5384, -2.809, 0},
	}
)

// MacKinnonP returns the approximate p-value of an ADF statistic.
func MacKinnonP(stat float64) float64 {
	switch {
	case stat > tauMax:
		return 1
	case stat < tauMin:
		return 0
	}
	coef := tauLargeP
	if stat <= tauStar {
		coef = tauSmallP
	}
	return normCDF(polyval(coef, stat))
}

// MacKinnonCrit returns the 1%, 5% and 10% critical values for nobs
// observations.
func MacKinnonCrit(nobs int) map[string]float64 {
	out := make(map[string]float64, len(tauCrit))
	inv := 1 / float64(nobs)
	for level, coef := range tauCrit {
		out[level] = polyval(coef, inv)
	}
	return out
}

// polyval evaluates c0 + c1·x + c2·x² + ...
func polyval(coef []float64, x float64) float64 {
	out := 0.0
	for i := len(coef) - 1; i >= 0; i-- {
		out = out*x + coef[i]
	}
	return out
}

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}
