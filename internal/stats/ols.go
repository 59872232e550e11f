package stats

import (
	"errors"
	"math"
)

// ErrSingular is returned when the regressors are linearly dependent.
var ErrSingular = errors.New("singular design matrix")

// OLSResult holds an ordinary least squares fit.
type OLSResult struct {
	Coeffs []float64
	StdErr []float64
	SSR    float64 // sum of squared residuals
	NObs   int
}

// AIC is the Gaussian Akaike information criterion of the fit.
func (r *OLSResult) AIC() float64 {
	n := float64(r.NObs)
	k := float64(len(r.Coeffs))
	llf := -n / 2 * (math.Log(2*math.Pi) + math.Log(r.SSR/n) + 1)
	return -2*llf + 2*k
}

// TValue returns the t statistic of coefficient i.
func (r *OLSResult) TValue(i int) float64 {
	return r.Coeffs[i] / r.StdErr[i]
}

// OLS regresses y on the rows of x.
func OLS(x [][]float64, y []float64) (*OLSResult, error) {
	n := len(y)
	if n == 0 || len(x) != n {
		return nil, errors.New("ols: empty or mismatched input")
	}
	k := len(x[0])
	if n <= k {
		return nil, errors.New("ols: not enough observations")
	}

	xtx := NewMatrix(k)
	xty := make([]float64, k)
	for i := 0; i < n; i++ {
		AccumulateRow(xtx, xty, x[i], y[i])
	}

	inv, err := Invert(xtx)
	if err != nil {
		return nil, err
	}

	coeffs := make([]float64, k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			coeffs[i] += inv[i][j] * xty[j]
		}
	}

	ssr := 0.0
	for i := 0; i < n; i++ {
		pred := 0.0
		for j := 0; j < k; j++ {
			pred += coeffs[j] * x[i][j]
		}
		r := y[i] - pred
		ssr += r * r
	}

	s2 := ssr / float64(n-k)
	stdErr := make([]float64, k)
	for i := 0; i < k; i++ {
		stdErr[i] = math.Sqrt(s2 * inv[i][i])
	}

	return &OLSResult{Coeffs: coeffs, StdErr: stdErr, SSR: ssr, NObs: n}, nil
}

// NewMatrix allocates a k×k zero matrix.
func NewMatrix(k int) [][]float64 {
	m := make([][]float64, k)
	for i := range m {
		m[i] = make([]float64, k)
	}
	return m
}

// AccumulateRow adds one observation to the normal equations X'X and X'y.
func AccumulateRow(xtx [][]float64, xty []float64, row []float64, y float64) {
	for j := range row {
		xty[j] += row[j] * y
		for l := range row {
			xtx[j][l] += row[j] * row[l]
		}
	}
}

// Invert inverts a square matrix by Gauss-Jordan elimination with partial
// pivoting. Pivots below a tolerance relative to the largest diagonal entry
// are treated as zero.
func Invert(m [][]float64) ([][]float64, error) {
	n := len(m)
	if n == 0 {
		return nil, ErrSingular
	}

	scale := 0.0
	for i := 0; i < n; i++ {
		scale = math.Max(scale, math.Abs(m[i][i]))
	}
	if scale == 0 {
		return nil, ErrSingular
	}
	tol := scale * 1e-13

	aug := make([][]float64, n)
	for i := 0; i < n; i++ {
		aug[i] = make([]float64, 2*n)
		copy(aug[i][:n], m[i])
		aug[i][n+i] = 1
	}

	for i := 0; i < n; i++ {
		maxRow := i
		for k := i + 1; k < n; k++ {
			if math.Abs(aug[k][i]) > math.Abs(aug[maxRow][i]) {
				maxRow = k
			}
		}
		aug[i], aug[maxRow] = aug[maxRow], aug[i]

		if math.Abs(aug[i][i]) < tol {
			return nil, ErrSingular
		}

		pivot := aug[i][i]
		for j := 0; j < 2*n; j++ {
			aug[i][j] /= pivot
		}

		for k := 0; k < n; k++ {
			if k == i {
				continue
			}
			factor := aug[k][i]
			if factor == 0 {
				continue
			}
			for j := 0; j < 2*n; j++ {
				aug[k][j] -= factor * aug[i][j]
			}
		}
	}

	result := make([][]float64, n)
	for i := 0; i < n; i++ {
		result[i] = make([]float64, n)
		copy(result[i], aug[i][n:])
	}
	return result, nil
}

// Solve returns b with m·b = v.
func Solve(m [][]float64, v []float64) ([]float64, error) {
	inv, err := Invert(m)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(v))
	for i := range inv {
		for j := range v {
			out[i] += inv[i][j] * v[j]
		}
	}
	return out, nil
}
