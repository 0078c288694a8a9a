package mmm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeometricAdstockImpulse(t *testing.T) {
	// A unit impulse decays geometrically.
	x := []float64{1, 0, 0, 0, 0}
	got, err := GeometricAdstock(x, 0.5, 5, false)
	require.NoError(t, err)

	want := []float64{1, 0.5, 0.25, 0.125, 0.0625}
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-12, "lag %d", i)
	}
}

func TestGeometricAdstockNormalized(t *testing.T) {
	// Normalized weights preserve the total effect of an impulse within the
	// window.
	x := []float64{3, 0, 0, 0, 0, 0}
	got, err := GeometricAdstock(x, 0.7, 6, true)
	require.NoError(t, err)

	var total float64
	for _, v := range got {
		total += v
	}
	assert.InDelta(t, 3.0, total, 1e-12)
}

func TestGeometricAdstockZeroAlpha(t *testing.T) {
	x := []float64{1, 2, 3}
	got, err := GeometricAdstock(x, 0, 3, false)
	require.NoError(t, err)
	assert.Equal(t, x, got)
}

func TestGeometricAdstockRejectsBadArgs(t *testing.T) {
	_, err := GeometricAdstock([]float64{1}, 1.0, 3, false)
	assert.Error(t, err)
	_, err = GeometricAdstock([]float64{1}, -0.1, 3, false)
	assert.Error(t, err)
	_, err = GeometricAdstock([]float64{1}, 0.5, 0, false)
	assert.Error(t, err)
}

func TestDelayedAdstockPeak(t *testing.T) {
	// With theta=2 an impulse peaks two steps after exposure.
	x := []float64{1, 0, 0, 0, 0, 0}
	got, err := DelayedAdstock(x, 0.4, 2, 6, false)
	require.NoError(t, err)

	peak := 0
	for i, v := range got {
		if v > got[peak] {
			peak = i
		}
	}
	assert.Equal(t, 2, peak)
	assert.InDelta(t, 1.0, got[2], 1e-12)
}

func TestDelayedAdstockThetaZeroMatchesSquaredGeometric(t *testing.T) {
	// theta=0 gives weights alpha^(i^2).
	x := []float64{1, 0, 0, 0}
	got, err := DelayedAdstock(x, 0.5, 0, 4, false)
	require.NoError(t, err)

	for i, v := range got {
		want := math.Pow(0.5, float64(i*i))
		assert.InDelta(t, want, v, 1e-12, "lag %d", i)
	}
}

func TestDelayedAdstockRejectsBadTheta(t *testing.T) {
	_, err := DelayedAdstock([]float64{1}, 0.5, -1, 4, false)
	assert.Error(t, err)
	_, err = DelayedAdstock([]float64{1}, 0.5, 4, 4, false)
	assert.Error(t, err)
}

func TestLogisticSaturation(t *testing.T) {
	got := LogisticSaturation([]float64{0, 1, 100}, 2)

	assert.Equal(t, 0.0, got[0])
	assert.InDelta(t, math.Tanh(1), got[1], 1e-12) // (1-e^-2x)/(1+e^-2x) = tanh(x)
	assert.InDelta(t, 1.0, got[2], 1e-9)

	// Monotone increasing in spend.
	xs := []float64{0, 0.5, 1, 2, 5}
	ys := LogisticSaturation(xs, 0.7)
	for i := 1; i < len(ys); i++ {
		assert.Greater(t, ys[i], ys[i-1])
	}
}

func TestTanhSaturation(t *testing.T) {
	// Saturates at b; near-linear for small spend.
	got := TanhSaturation([]float64{0, 0.001, 1e6}, 3, 2)
	assert.Equal(t, 0.0, got[0])
	assert.InDelta(t, 0.001/2, got[1], 1e-9)
	assert.InDelta(t, 3.0, got[2], 1e-9)
}
