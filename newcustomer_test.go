package clv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistributionNewCustomerDeterministic(t *testing.T) {
	p, err := MAPDraws(1.2, 3, 1.8, 7)
	require.NoError(t, err)
	T := make([]float64, 50)
	for i := range T {
		T[i] = 10
	}

	a, err := DistributionNewCustomer(p, T, 42)
	require.NoError(t, err)
	b, err := DistributionNewCustomer(p, T, 42)
	require.NoError(t, err)

	assert.Equal(t, a.Dropout.Values, b.Dropout.Values)
	assert.Equal(t, a.PurchaseRate.Values, b.PurchaseRate.Values)
	assert.Equal(t, a.Recency.Values, b.Recency.Values)
	assert.Equal(t, a.Frequency.Values, b.Frequency.Values)

	c, err := DistributionNewCustomer(p, T, 43)
	require.NoError(t, err)
	assert.NotEqual(t, a.Dropout.Values, c.Dropout.Values, "different seeds must differ")
}

func TestDistributionNewCustomerSubset(t *testing.T) {
	p, err := MAPDraws(1.2, 3, 1.8, 7)
	require.NoError(t, err)

	out, err := DistributionNewCustomer(p, []float64{10}, 1, VarDropout)
	require.NoError(t, err)
	assert.NotNil(t, out.Dropout)
	assert.Nil(t, out.PurchaseRate)
	assert.Nil(t, out.Recency)
	assert.Nil(t, out.Frequency)

	// No stream may depend on which other outputs are requested.
	rateOnly, err := DistributionNewCustomer(p, []float64{10}, 1, VarPurchaseRate)
	require.NoError(t, err)
	all, err := DistributionNewCustomer(p, []float64{10}, 1)
	require.NoError(t, err)
	assert.Equal(t, out.Dropout.Values, all.Dropout.Values)
	assert.Equal(t, rateOnly.PurchaseRate.Values, all.PurchaseRate.Values)

	_, err = DistributionNewCustomer(p, []float64{10}, 1, "lifetime")
	assert.True(t, IsInvalidArgError(err))
}

func TestDistributionNewCustomerInvariants(t *testing.T) {
	p, err := MAPDraws(1.2, 3, 1.8, 7)
	require.NoError(t, err)
	const horizon = 12.0
	T := make([]float64, 500)
	for i := range T {
		T[i] = horizon
	}

	out, err := DistributionNewCustomer(p, T, 7)
	require.NoError(t, err)

	for i := range T {
		mu := out.Dropout.Values[i]
		lam := out.PurchaseRate.Values[i]
		rec := out.Recency.Values[i]
		freq := out.Frequency.Values[i]

		assert.Greater(t, mu, 0.0)
		assert.Greater(t, lam, 0.0)
		assert.True(t, rec >= 0 && rec <= horizon, "recency %v", rec)
		assert.True(t, freq >= 0 && freq == math.Trunc(freq), "frequency %v", freq)
		if freq == 0 {
			assert.Equal(t, 0.0, rec, "no repeat purchases implies zero recency")
		} else {
			assert.Greater(t, rec, 0.0)
		}
	}
}

func TestDistributionNewCustomerRateMoments(t *testing.T) {
	r, alpha, s, beta := 2.0, 4.0, 3.0, 9.0
	p, err := MAPDraws(r, alpha, s, beta)
	require.NoError(t, err)
	T := make([]float64, 4000)
	for i := range T {
		T[i] = 5
	}

	out, err := DistributionNewCustomer(p, T, 99, VarDropout, VarPurchaseRate)
	require.NoError(t, err)

	var sumMu, sumLam float64
	for i := range T {
		sumMu += out.Dropout.Values[i]
		sumLam += out.PurchaseRate.Values[i]
	}
	n := float64(len(T))
	assert.InDelta(t, s/beta, sumMu/n, 0.1*s/beta, "dropout rate mean")
	assert.InDelta(t, r/alpha, sumLam/n, 0.1*r/alpha, "purchase rate mean")
}
