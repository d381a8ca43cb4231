package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearFit_PerfectLine(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4}
	y := []float64{1, 3, 5, 7, 9} // y = 2x + 1

	fit, err := LinearFit(x, y)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, fit.Slope, 1e-9)
	assert.InDelta(t, 1.0, fit.Intercept, 1e-9)
	assert.InDelta(t, 1.0, fit.RSquared, 1e-9)
	assert.InDelta(t, 0.0, fit.ResidualStdErr, 1e-9)
	assert.Equal(t, 5, fit.N)
	assert.InDelta(t, 2.0, fit.MeanX, 1e-9)
	assert.InDelta(t, 10.0, fit.SumSqX, 1e-9)
}

func TestLinearFit_NoisyLine(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	y := []float64{0, 1.1, 1.9, 3.2}

	fit, err := LinearFit(x, y)
	require.NoError(t, err)

	assert.True(t, fit.Slope > 0.9 && fit.Slope < 1.2)
	assert.True(t, fit.RSquared > 0.95)
	assert.True(t, fit.ResidualStdErr > 0)
}

func TestLinearFit_Errors(t *testing.T) {
	_, err := LinearFit([]float64{1, 2}, []float64{1})
	require.Error(t, err)

	_, err = LinearFit([]float64{1}, []float64{1})
	require.ErrorIs(t, err, ErrNotEnoughPoints)

	_, err = LinearFit([]float64{3, 3, 3}, []float64{1, 2, 3})
	require.Error(t, err)
}

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.InDelta(t, 2.0, Mean([]float64{1, 2, 3}), 1e-9)
}

func TestSampleStdDev(t *testing.T) {
	assert.Equal(t, 0.0, SampleStdDev([]float64{42}))
	// sample std dev of {2, 4, 4, 4, 5, 5, 7, 9} is ~2.138
	assert.InDelta(t, 2.138, SampleStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 0.001)
}

func TestMinMax(t *testing.T) {
	values := []float64{3, 1, 4, 1, 5}
	assert.Equal(t, 1.0, Min(values))
	assert.Equal(t, 5.0, Max(values))
}
