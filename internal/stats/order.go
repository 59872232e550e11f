package stats

import "stockcast/internal/timeseries"

// DefaultSignificance is the p-value threshold of the differencing rule.
const DefaultSignificance = 0.05

// MaxOrder caps the differencing order.
const MaxOrder = 2

// OrderSelection records how the differencing order was chosen.
type OrderSelection struct {
	Order int `json:"order"`
	// PValues holds the p-value of each test that ran: one for the level
	// series, a second for the first difference when the first test failed.
	PValues []float64 `json:"p_values"`
}

// DifferencingOrder picks d for an ARIMA model: 0 when the series passes
// the ADF test at alpha, 1 when its first difference passes, otherwise 2.
// The second difference is never tested. A test that cannot run counts as
// a failed test.
func DifferencingOrder(values []float64, alpha float64) OrderSelection {
	sel := OrderSelection{}

	if res, err := ADF(values); err == nil {
		sel.PValues = append(sel.PValues, res.PValue)
		if res.Stationary(alpha) {
			sel.Order = 0
			return sel
		}
	}

	if res, err := ADF(timeseries.Diff(values)); err == nil {
		sel.PValues = append(sel.PValues, res.PValue)
		if res.Stationary(alpha) {
			sel.Order = 1
			return sel
		}
	}

	sel.Order = MaxOrder
	return sel
}
