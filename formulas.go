package clv

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mathext"

	"github.com/wd60622/clv/special"
)

// Stateless predictive formulas. Each one broadcasts parameter draws against
// customer records, computes the log-likelihood cube once, and composes the
// closed-form terms in log-space, exponentiating only at the end.

// ExpectedPurchases predicts the expected number of future purchases for each
// customer over futureT periods, conditional on its recency/frequency history.
// futureT holds one shared horizon or one per customer.
//
// Undefined at s exactly 1 (a removable singularity the closed form does not
// special-case).
func ExpectedPurchases(p *ParamDraws, records []CustomerRecord, futureT []float64) (*Cube, error) {
	const op = "ExpectedPurchases"
	if err := checkCustomerAxis(p, len(records), op); err != nil {
		return nil, err
	}
	fut, err := broadcastCustomer(futureT, len(records), op)
	if err != nil {
		return nil, err
	}
	loglike, err := LogLikelihood(p, records)
	if err != nil {
		return nil, err
	}

	n := len(records)
	out := NewCube(p.Chains, p.Draws, n)
	parallelFor(out.Len(), func(start, end int) {
		for i := start; i < end; i++ {
			cd, cu := i/n, i%n
			r, alpha, s, beta := p.at(cd, cu)
			rec := records[cu]
			x, T := rec.Frequency, rec.T

			first := lgamma(r+x) - lgamma(r) +
				r*math.Log(alpha) + s*math.Log(beta) -
				(r+x)*math.Log(alpha+T) - s*math.Log(beta+T)
			second := math.Log(r+x) + math.Log(beta+T) - math.Log(alpha+T)
			third := math.Log((1 - math.Pow((beta+T)/(beta+T+fut[cu]), s-1)) / (s - 1))

			out.Values[i] = math.Exp(first + second + third - loglike.Values[i])
		}
	})
	return out, nil
}

// ExpectedProbabilityAlive computes the probability that each customer is
// still active futureT periods after the end of its observation window.
// A nil futureT means now (futureT = 0).
func ExpectedProbabilityAlive(p *ParamDraws, records []CustomerRecord, futureT []float64) (*Cube, error) {
	const op = "ExpectedProbabilityAlive"
	if err := checkCustomerAxis(p, len(records), op); err != nil {
		return nil, err
	}
	if futureT == nil {
		futureT = []float64{0}
	}
	fut, err := broadcastCustomer(futureT, len(records), op)
	if err != nil {
		return nil, err
	}
	loglike, err := LogLikelihood(p, records)
	if err != nil {
		return nil, err
	}

	n := len(records)
	out := NewCube(p.Chains, p.Draws, n)
	parallelFor(out.Len(), func(start, end int) {
		for i := start; i < end; i++ {
			cd, cu := i/n, i%n
			r, alpha, s, beta := p.at(cd, cu)
			rec := records[cu]
			x, T := rec.Frequency, rec.T

			term1 := lgamma(r+x) - lgamma(r)
			term2 := r * math.Log(alpha/(alpha+T))
			term3 := -x * math.Log(alpha+T)
			term4 := s * math.Log(beta/(beta+T+fut[cu]))

			out.Values[i] = math.Exp(term1 + term2 + term3 + term4 - loglike.Values[i])
		}
	})
	return out, nil
}

// ExpectedPurchaseProbability estimates the probability of exactly n
// purchases in (T, T+futureT] for each customer. nPurchases holds one shared
// count or one per customer, but heterogeneous counts are not implemented and
// are rejected before any computation.
//
// A non-positive horizon is policy-normalized to probability exactly 0 for
// every draw, never surfaced as NaN.
func ExpectedPurchaseProbability(p *ParamDraws, records []CustomerRecord, nPurchases []int, futureT []float64) (*Cube, error) {
	const op = "ExpectedPurchaseProbability"
	if err := checkCustomerAxis(p, len(records), op); err != nil {
		return nil, err
	}
	if len(nPurchases) == 0 {
		return nil, NewInvalidArgError(op, "nPurchases must not be empty")
	}
	nShared := nPurchases[0]
	for _, v := range nPurchases[1:] {
		if v != nShared {
			return nil, NewNotImplementedError(op,
				"distinct numbers of nPurchases across customers not implemented")
		}
	}
	if nShared < 0 {
		return nil, NewInvalidArgError(op, "nPurchases must be non-negative")
	}
	fut, err := broadcastCustomer(futureT, len(records), op)
	if err != nil {
		return nil, err
	}
	loglike, err := LogLikelihood(p, records)
	if err != nil {
		return nil, err
	}

	n := len(records)
	out := NewCube(p.Chains, p.Draws, n)
	parallelFor(out.Len(), func(start, end int) {
		series := make([]float64, nShared+1)
		for i := start; i < end; i++ {
			cd, cu := i/n, i%n
			r, alpha, s, beta := p.at(cd, cu)
			rec := records[cu]
			if fut[cu] <= 0 {
				// Non-positive horizon => zero probability, by policy.
				out.Values[i] = 0
				continue
			}
			out.Values[i] = purchaseProbability(r, alpha, s, beta,
				rec.Frequency, rec.T, fut[cu], nShared, loglike.Values[i], series)
		}
	})
	return out, nil
}

// purchaseProbability is the conditional PMF kernel for one draw and one
// customer. series is scratch space of length n+1 for the finite
// hypergeometric series.
func purchaseProbability(r, alpha, s, beta, x, T, futT float64, n int, loglike float64, series []float64) float64 {
	fn := float64(n)
	rx := r + x
	rsx := r + s + x

	// The roles of the scale parameters swap so the hypergeometric argument
	// stays inside [0, 1).
	larger, hypB := alpha, s+1
	if alpha < beta {
		larger, hypB = beta, rx+fn
	}
	diff := math.Abs(alpha - beta)

	logPZero := lgamma(rx) + r*math.Log(alpha) + s*math.Log(beta) -
		(lgamma(r) + rx*math.Log(alpha+T) + s*math.Log(beta+T) + loglike)
	var zeroth float64
	if n == 0 {
		zeroth = 1 - math.Exp(logPZero)
	}

	logBOne := lgamma(rx+fn) + r*math.Log(alpha) + s*math.Log(beta) -
		(lgamma(r) + (rx+fn)*math.Log(alpha+T+futT) + s*math.Log(beta+T+futT))

	logBTwo := r*math.Log(alpha) + s*math.Log(beta) +
		lgamma(rsx) + mathext.Lbeta(rx+fn, s+1) +
		math.Log(special.Hyp2F1(rsx, hypB, rsx+fn+1, diff/(larger+T))) -
		(lgamma(r) + lgamma(s) + rsx*math.Log(larger+T))

	logBThree := func(i float64) float64 {
		return r*math.Log(alpha) + s*math.Log(beta) +
			lgamma(rsx+i) + mathext.Lbeta(rx+fn, s+1) +
			math.Log(special.Hyp2F1(rsx+i, hypB, rsx+fn+1, diff/(larger+T+futT))) -
			(lgamma(r) + lgamma(s) + (rsx+i)*math.Log(larger+T+futT))
	}

	first := fn*math.Log(futT) - lgamma(fn+1) + logBOne - loglike
	second := logBTwo - loglike
	for i := 0; i <= n; i++ {
		fi := float64(i)
		series[i] = fi*math.Log(futT) - lgamma(fi+1) + logBThree(fi) - loglike
	}
	third := LogSumExp(series)

	logAbs, sign := LogSumExpSigned(
		[]float64{first, second, third},
		[]float64{1, 1, -1},
	)
	return zeroth + sign*math.Exp(logAbs)
}

// ExpectedPurchasesNewCustomer is the expected purchase count over t periods
// for a hypothetical customer with no transaction history:
//
//	r*beta/alpha/(s-1) * (1 - (beta/(beta+t))^(s-1))
//
// t holds one shared horizon or one per customer (the latter only meaningful
// with per-customer covariate-adjusted parameters). Undefined at s exactly 1.
func ExpectedPurchasesNewCustomer(p *ParamDraws, t []float64) (*Cube, error) {
	const op = "ExpectedPurchasesNewCustomer"
	n := p.customers()
	if n == 0 {
		n = len(t)
	}
	if n == 0 {
		return nil, NewInvalidArgError(op, "t must not be empty")
	}
	horizon, err := broadcastCustomer(t, n, op)
	if err != nil {
		return nil, err
	}

	out := NewCube(p.Chains, p.Draws, n)
	parallelFor(out.Len(), func(start, end int) {
		for i := start; i < end; i++ {
			cd, cu := i/n, i%n
			r, alpha, s, beta := p.at(cd, cu)
			first := r * beta / alpha / (s - 1)
			second := 1 - math.Pow(beta/(beta+horizon[cu]), s-1)
			out.Values[i] = first * second
		}
	})
	return out, nil
}

// broadcastCustomer expands a length-1 slice across n customers, or verifies
// a full-length slice.
func broadcastCustomer(vals []float64, n int, op string) ([]float64, error) {
	switch len(vals) {
	case n:
		return vals, nil
	case 1:
		out := make([]float64, n)
		for i := range out {
			out[i] = vals[0]
		}
		return out, nil
	case 0:
		return nil, NewInvalidArgError(op, "missing horizon values")
	default:
		return nil, NewInvalidArgError(op,
			fmt.Sprintf("got %d horizon values for %d customers", len(vals), n))
	}
}
