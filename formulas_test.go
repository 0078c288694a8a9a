package clv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecords() []CustomerRecord {
	return []CustomerRecord{
		{CustomerID: "fresh", Frequency: 0, Recency: 0, T: 10},
		{CustomerID: "steady", Frequency: 6, Recency: 9, T: 10},
		{CustomerID: "lapsed", Frequency: 3, Recency: 2, T: 20},
		{CustomerID: "edge", Frequency: 4, Recency: 12, T: 12},
	}
}

func TestExpectedProbabilityAliveBounds(t *testing.T) {
	records := testRecords()
	for _, ps := range []struct{ r, alpha, s, beta float64 }{
		{0.5, 1, 0.7, 2},
		{2, 4, 2.5, 6},
		{1, 10, 3, 1},
	} {
		p, err := MAPDraws(ps.r, ps.alpha, ps.s, ps.beta)
		require.NoError(t, err)

		alive, err := ExpectedProbabilityAlive(p, records, nil)
		require.NoError(t, err)
		for cu, v := range alive.Values {
			assert.GreaterOrEqual(t, v, 0.0, "customer %s", records[cu].CustomerID)
			assert.LessOrEqual(t, v, 1.0, "customer %s", records[cu].CustomerID)
		}
	}
}

func TestExpectedProbabilityAliveDecreasesWithHorizon(t *testing.T) {
	records := testRecords()
	p, err := MAPDraws(2, 4, 2.5, 6)
	require.NoError(t, err)

	prev, err := ExpectedProbabilityAlive(p, records, []float64{0})
	require.NoError(t, err)
	for _, fut := range []float64{1, 5, 20, 100} {
		next, err := ExpectedProbabilityAlive(p, records, []float64{fut})
		require.NoError(t, err)
		for cu := range records {
			assert.LessOrEqual(t, next.Values[cu], prev.Values[cu],
				"customer %s at future_t=%v", records[cu].CustomerID, fut)
		}
		prev = next
	}
}

func TestExpectedPurchasesMonotoneInHorizon(t *testing.T) {
	records := testRecords()
	p, err := MAPDraws(2, 4, 2.5, 6)
	require.NoError(t, err)

	prev, err := ExpectedPurchases(p, records, []float64{0.1})
	require.NoError(t, err)
	for _, fut := range []float64{0.5, 1, 3, 10, 50} {
		next, err := ExpectedPurchases(p, records, []float64{fut})
		require.NoError(t, err)
		for cu := range records {
			assert.GreaterOrEqual(t, next.Values[cu], prev.Values[cu],
				"customer %s at future_t=%v", records[cu].CustomerID, fut)
		}
		prev = next
	}
}

// TestPurchaseProbabilityDistribution checks the conditional purchase-count
// PMF three ways: every mass is a probability, the masses sum to one over the
// support, and the PMF mean reproduces the expected-purchases formula.
func TestPurchaseProbabilityDistribution(t *testing.T) {
	records := testRecords()
	p, err := MAPDraws(2, 4, 2.5, 6)
	require.NoError(t, err)
	futT := []float64{5}

	const maxN = 40
	totals := make([]float64, len(records))
	means := make([]float64, len(records))
	var pmfZero []float64
	for n := 0; n <= maxN; n++ {
		pmf, err := ExpectedPurchaseProbability(p, records, []int{n}, futT)
		require.NoError(t, err)
		if n == 0 {
			pmfZero = append([]float64(nil), pmf.Values...)
		}
		for cu, v := range pmf.Values {
			assert.GreaterOrEqual(t, v, -1e-12, "customer %s n=%d", records[cu].CustomerID, n)
			assert.LessOrEqual(t, v, 1.0+1e-12, "customer %s n=%d", records[cu].CustomerID, n)
			totals[cu] += v
			means[cu] += float64(n) * v
		}
	}

	expected, err := ExpectedPurchases(p, records, futT)
	require.NoError(t, err)
	for cu := range records {
		assert.True(t, NearEqual(1.0, totals[cu], QuadratureTolerance()),
			"customer %s PMF total %v", records[cu].CustomerID, totals[cu])
		assert.True(t, NearEqual(expected.Values[cu], means[cu], QuadratureTolerance()),
			"customer %s PMF mean %v want %v", records[cu].CustomerID, means[cu], expected.Values[cu])
		// P(0) and P(at least one) partition the probability.
		atLeastOne := totals[cu] - pmfZero[cu]
		assert.True(t, NearEqual(1-pmfZero[cu], atLeastOne, QuadratureTolerance()),
			"customer %s", records[cu].CustomerID)
	}
}

func TestPurchaseProbabilityNonPositiveHorizon(t *testing.T) {
	records := testRecords()
	p, err := MAPDraws(0.5, 1, 0.7, 2)
	require.NoError(t, err)

	for _, fut := range []float64{0, -1, -100} {
		for _, n := range []int{0, 1, 5} {
			pmf, err := ExpectedPurchaseProbability(p, records, []int{n}, []float64{fut})
			require.NoError(t, err)
			for cu, v := range pmf.Values {
				assert.Equal(t, 0.0, v, "customer %s n=%d future_t=%v", records[cu].CustomerID, n, fut)
			}
		}
	}
}

func TestPurchaseProbabilityHeterogeneousCounts(t *testing.T) {
	records := testRecords()
	p, err := MAPDraws(2, 4, 2.5, 6)
	require.NoError(t, err)

	_, err = ExpectedPurchaseProbability(p, records, []int{1, 2, 1, 1}, []float64{5})
	assert.True(t, IsNotImplementedError(err))

	_, err = ExpectedPurchaseProbability(p, records, []int{-1}, []float64{5})
	assert.True(t, IsInvalidArgError(err))
}

func TestExpectedPurchasesNewCustomerClosedForm(t *testing.T) {
	r, alpha, s, beta := 1.0, 1.0, 1.5, 1.0
	horizon := 10.0
	p, err := MAPDraws(r, alpha, s, beta)
	require.NoError(t, err)

	got, err := ExpectedPurchasesNewCustomer(p, []float64{horizon})
	require.NoError(t, err)

	want := r * beta / alpha / (s - 1) * (1 - math.Pow(beta/(beta+horizon), s-1))
	assert.InDelta(t, 0.0, (got.Values[0]-want)/want, 1e-6)
}

func TestExpectedPurchasesNewCustomerMatchesFreshCustomer(t *testing.T) {
	// A customer with an empty history at T=0 carries no information, so the
	// conditional expectation must reduce to the new-customer formula.
	p, err := MAPDraws(2, 4, 2.5, 6)
	require.NoError(t, err)

	fresh := []CustomerRecord{{CustomerID: "a", Frequency: 0, Recency: 0, T: 0}}
	cond, err := ExpectedPurchases(p, fresh, []float64{7})
	require.NoError(t, err)
	unconditional, err := ExpectedPurchasesNewCustomer(p, []float64{7})
	require.NoError(t, err)

	assert.True(t, NearEqual(unconditional.Values[0], cond.Values[0], DefaultTolerance()),
		"conditional %v unconditional %v", cond.Values[0], unconditional.Values[0])
}

func TestBroadcastCustomer(t *testing.T) {
	out, err := broadcastCustomer([]float64{3}, 4, "op")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 3, 3, 3}, out)

	out, err = broadcastCustomer([]float64{1, 2}, 2, "op")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, out)

	_, err = broadcastCustomer(nil, 2, "op")
	assert.True(t, IsInvalidArgError(err))
	_, err = broadcastCustomer([]float64{1, 2, 3}, 2, "op")
	assert.True(t, IsInvalidArgError(err))
}
