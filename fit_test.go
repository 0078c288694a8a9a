package clv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wd60622/clv/special"
)

func fitTestRecords() []CustomerRecord {
	return []CustomerRecord{
		{CustomerID: "c01", Frequency: 0, Recency: 0, T: 12, Covariates: map[string]float64{"spend": -0.8}},
		{CustomerID: "c02", Frequency: 2, Recency: 5, T: 12, Covariates: map[string]float64{"spend": 0.1}},
		{CustomerID: "c03", Frequency: 7, Recency: 11, T: 12, Covariates: map[string]float64{"spend": 1.4}},
		{CustomerID: "c04", Frequency: 1, Recency: 2, T: 15, Covariates: map[string]float64{"spend": -0.3}},
		{CustomerID: "c05", Frequency: 4, Recency: 15, T: 15, Covariates: map[string]float64{"spend": 0.9}}, // recency at the edge
		{CustomerID: "c06", Frequency: 3, Recency: 6, T: 20, Covariates: map[string]float64{"spend": 0.0}},
		{CustomerID: "c07", Frequency: 0, Recency: 0, T: 8, Covariates: map[string]float64{"spend": -1.6}},
		{CustomerID: "c08", Frequency: 5, Recency: 7, T: 18, Covariates: map[string]float64{"spend": 0.5}},
	}
}

// TestNegLogPosteriorGradient validates the analytic gradient against central
// finite differences, with and without covariates in the model.
func TestNegLogPosteriorGradient(t *testing.T) {
	configs := map[string]ModelConfig{
		"population": DefaultModelConfig(),
	}
	withCov := DefaultModelConfig()
	withCov.PurchaseCovariateCols = []string{"spend"}
	withCov.DropoutCovariateCols = []string{"spend"}
	configs["covariates"] = withCov

	thetas := [][]float64{
		{math.Log(1.0), math.Log(5.0), math.Log(1.2), math.Log(8.0)},
		{math.Log(0.6), math.Log(12.0), math.Log(2.0), math.Log(3.0)},
		{math.Log(2.5), math.Log(4.0), math.Log(0.8), math.Log(4.0)}, // alpha == beta
	}

	for name, cfg := range configs {
		m, err := NewParetoNBDModel(fitTestRecords(), cfg)
		require.NoError(t, err)
		dim := 4 + len(cfg.PurchaseCovariateCols) + len(cfg.DropoutCovariateCols)
		steps := special.DefaultGradSteps()

		for _, base := range thetas {
			theta := make([]float64, dim)
			copy(theta, base)
			for j := 4; j < dim; j++ {
				theta[j] = 0.3 * float64(j-3)
			}

			_, grad := m.negLogPosterior(theta, steps, true)
			require.Len(t, grad, dim)

			const h = 1e-6
			for j := 0; j < dim; j++ {
				up := append([]float64(nil), theta...)
				dn := append([]float64(nil), theta...)
				up[j] += h
				dn[j] -= h
				fUp, _ := m.negLogPosterior(up, steps, false)
				fDn, _ := m.negLogPosterior(dn, steps, false)
				fd := (fUp - fDn) / (2 * h)

				assert.InDelta(t, fd, grad[j], 1e-4*(1+math.Abs(fd)),
					"%s: coordinate %d at theta %v", name, j, base)
			}
		}
	}
}

func TestNegLogPosteriorReducedGradSteps(t *testing.T) {
	// The reduced iteration bound must not change gradients in the
	// well-converged regime the test data lives in.
	m, err := NewParetoNBDModel(fitTestRecords(), DefaultModelConfig())
	require.NoError(t, err)

	theta := []float64{math.Log(1.0), math.Log(5.0), math.Log(1.2), math.Log(8.0)}
	full := special.DefaultGradSteps()
	reduced, changed := special.ReduceGradMaxIter(full)
	require.True(t, changed)

	fFull, gFull := m.negLogPosterior(theta, full, true)
	fRed, gRed := m.negLogPosterior(theta, reduced, true)

	assert.Equal(t, fFull, fRed)
	for j := range gFull {
		assert.InDelta(t, gFull[j], gRed[j], 1e-10*(1+math.Abs(gFull[j])), "coordinate %d", j)
	}
}

func TestFitMAP(t *testing.T) {
	m, err := NewParetoNBDModel(fitTestRecords(), DefaultModelConfig())
	require.NoError(t, err)

	fr, err := m.Fit(FitConfig{MaxIterations: 300})
	require.NoError(t, err)
	require.Same(t, fr, m.FitResult())

	for name, v := range map[string]float64{
		"r": fr.R[0], "alpha": fr.AlphaScale[0], "s": fr.S[0], "beta": fr.BetaScale[0],
	} {
		assert.True(t, v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v), "%s = %v", name, v)
	}

	// The optimum must improve on the prior-mean seed.
	steps := special.DefaultGradSteps()
	seed := []float64{
		math.Log(m.Config.RPrior.Mean()),
		math.Log(m.Config.AlphaPrior.Mean()),
		math.Log(m.Config.SPrior.Mean()),
		math.Log(m.Config.BetaPrior.Mean()),
	}
	atSeed, _ := m.negLogPosterior(seed, steps, false)
	atFit, _ := m.negLogPosterior([]float64{
		math.Log(fr.R[0]), math.Log(fr.AlphaScale[0]), math.Log(fr.S[0]), math.Log(fr.BetaScale[0]),
	}, steps, false)
	assert.Less(t, atFit, atSeed)

	// Fitted model serves predictions over the training data.
	pred, err := m.ExpectedPurchases(nil, []float64{4})
	require.NoError(t, err)
	assert.Equal(t, len(fitTestRecords()), pred.Customers)
	for _, v := range pred.Values {
		assert.False(t, math.IsNaN(v))
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestFitWithCovariates(t *testing.T) {
	cfg := DefaultModelConfig()
	cfg.PurchaseCovariateCols = []string{"spend"}
	m, err := NewParetoNBDModel(fitTestRecords(), cfg)
	require.NoError(t, err)

	fr, err := m.Fit(FitConfig{MaxIterations: 300, ReduceHyp2F1GradIters: true})
	require.NoError(t, err)
	require.Len(t, fr.PurchaseCoef, 1)
	require.Len(t, fr.PurchaseCoef[0], 1)
	assert.False(t, math.IsNaN(fr.PurchaseCoef[0][0]))
	assert.Nil(t, fr.DropoutCoef)

	// Per-customer alpha flows into predictions.
	alive, err := m.ExpectedProbabilityAlive(nil, nil)
	require.NoError(t, err)
	for _, v := range alive.Values {
		assert.True(t, v >= 0 && v <= 1, "alive = %v", v)
	}
}

func TestFitRejectsNonFiniteObjective(t *testing.T) {
	// Recency beyond the observation window violates the likelihood's
	// preconditions and poisons the log posterior at every point.
	records := []CustomerRecord{
		{CustomerID: "a", Frequency: 1, Recency: 5, T: 3},
		{CustomerID: "b", Frequency: 0, Recency: 0, T: 8},
	}
	m, err := NewParetoNBDModel(records, DefaultModelConfig())
	require.NoError(t, err)

	_, err = m.Fit(FitConfig{})
	assert.True(t, IsNumericalError(err), "got %v", err)
}

func TestPriorConfigDerivatives(t *testing.T) {
	priors := []PriorConfig{
		{Dist: "Weibull", Alpha: 2, Beta: 10},
		{Dist: "Weibull", Alpha: 1.5, Beta: 1},
		{Dist: "Normal", Mu: 0.5, Sigma: 2},
	}
	const h = 1e-7
	for _, p := range priors {
		for _, x := range []float64{0.3, 1.0, 4.2} {
			fd := (p.LogProb(x+h) - p.LogProb(x-h)) / (2 * h)
			assert.InDelta(t, fd, p.DLogProb(x), 1e-5*(1+math.Abs(fd)), "%+v at %v", p, x)
		}
	}
}

func TestFitResultSummary(t *testing.T) {
	fr := &FitResult{
		Chains: 1, Draws: 2,
		R: []float64{1, 2}, S: []float64{3, 5},
		AlphaScale: []float64{4, 6}, BetaScale: []float64{8, 10},
		PurchaseCoef: [][]float64{{0.5}, {1.5}},
	}
	out := fr.Summary()
	assert.Contains(t, out, "r ")
	assert.Contains(t, out, "1.500000") // mean of r draws
	assert.Contains(t, out, "4.000000") // mean of s draws
	assert.Contains(t, out, "purchase_coef[0]")
	assert.Contains(t, out, "1.000000") // mean coefficient
}
