package stats

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ar1(n int, phi float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := 1; i < n; i++ {
		out[i] = phi*out[i-1] + rng.NormFloat64()
	}
	return out
}

func driftWalk(n int, drift float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	out[0] = 100
	for i := 1; i < n; i++ {
		out[i] = out[i-1] + drift + 0.5*rng.NormFloat64()
	}
	return out
}

func TestMacKinnonP(t *testing.T) {
	// the 5% and 1% asymptotic critical values map back to their levels
	assert.InDelta(t, 0.05, MacKinnonP(-2.8621), 0.005)
	assert.InDelta(t, 0.01, MacKinnonP(-3.4336), 0.003)

	assert.Equal(t, 1.0, MacKinnonP(3))
	assert.Equal(t, 0.0, MacKinnonP(-20))

	prev := 0.0
	for stat := -18.0; stat <= 2.7; stat += 0.1 {
		p := MacKinnonP(stat)
		assert.GreaterOrEqual(t, p, prev, "stat %.1f", stat)
		assert.True(t, p >= 0 && p <= 1)
		prev = p
	}
}

func TestMacKinnonCrit(t *testing.T) {
	crit := MacKinnonCrit(1000)
	require.Len(t, crit, 3)
	assert.InDelta(t, -3.437, crit["1%"], 0.01)
	assert.InDelta(t, -2.864, crit["5%"], 0.01)
	assert.InDelta(t, -2.568, crit["10%"], 0.01)
	assert.Less(t, crit["1%"], crit["5%"])
	assert.Less(t, crit["5%"], crit["10%"])
}

func TestADFStationarySeries(t *testing.T) {
	res, err := ADF(ar1(500, 0.5, 7))
	require.NoError(t, err)
	assert.Less(t, res.Statistic, -5.0)
	assert.Less(t, res.PValue, 0.01)
	assert.True(t, res.Stationary(DefaultSignificance))
	assert.GreaterOrEqual(t, res.UsedLag, 0)
	assert.Contains(t, res.CriticalValues, "5%")
}

func TestADFTrendingSeries(t *testing.T) {
	res, err := ADF(driftWalk(500, 1, 3))
	require.NoError(t, err)
	assert.Greater(t, res.PValue, DefaultSignificance)
	assert.False(t, res.Stationary(DefaultSignificance))
}

func TestADFConstantSeries(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = 42
	}
	res, err := ADF(values)
	require.NoError(t, err)
	assert.True(t, res.Constant)
	assert.Equal(t, 0.0, res.PValue)
	assert.True(t, math.IsInf(res.Statistic, -1))
}

func TestADFTooShort(t *testing.T) {
	_, err := ADF([]float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrTooShort)
}
