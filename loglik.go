package clv

import (
	"fmt"
	"math"

	"github.com/wd60622/clv/special"
)

// logA0 computes log A_0 from the Pareto/NBD likelihood: the integral of the
// dropout time against the Gamma-Gamma structure, expressed as a difference
// of two Gaussian hypergeometric terms evaluated at recency and at the
// horizon. The roles of the two scale parameters swap depending on which is
// larger, so that the hypergeometric argument stays inside [0, 1).
func logA0(r, alpha, s, beta, x, tx, T float64) float64 {
	larger, b := alpha, s+1
	if alpha < beta {
		larger, b = beta, r+x
	}
	diff := math.Abs(alpha - beta)

	rsx := r + s + x
	q1 := larger + tx
	q2 := larger + T

	p1 := math.Log(special.Hyp2F1(rsx, b, rsx+1, diff/q1)) - rsx*math.Log(q1)
	p2 := math.Log(special.Hyp2F1(rsx, b, rsx+1, diff/q2)) - rsx*math.Log(q2)

	// q1 <= q2, so p1 >= p2 and the difference is non-negative.
	return LogDiffExp(p1, p2)
}

// logpParetoNBD is the closed-form Pareto/NBD log density for one customer
// and one parameter draw. It mixes the "still active at T" branch with the
// "churned inside the window" branch in log-space:
//
//	logp = A1 + logaddexp(-(r+x)log(alpha+T) - s*log(beta+T),
//	                      log(s) - log(r+s+x) + log A_0)
//	A1   = loggamma(r+x) - loggamma(r) + r*log(alpha) + s*log(beta)
//
// Preconditions T >= tx >= 0 and positive parameters are the caller's
// responsibility and are not re-validated here.
func logpParetoNBD(r, alpha, s, beta, x, tx, T float64) float64 {
	rx := r + x
	a1 := lgamma(rx) - lgamma(r) + r*math.Log(alpha) + s*math.Log(beta)
	active := -rx*math.Log(alpha+T) - s*math.Log(beta+T)
	churned := math.Log(s) - math.Log(r+s+x) + logA0(r, alpha, s, beta, x, tx, T)
	return a1 + LogAddExp(active, churned)
}

// LogLikelihood evaluates the Pareto/NBD log-likelihood for every customer
// under every parameter draw, broadcasting population-level parameters
// against the customer axis. The result has the draws' (chain, draw) axes
// and one entry per record.
//
// Predictive methods call this once per invocation and reuse the cube across
// all derived terms of that call; it is never cached between calls because
// the draws may differ.
func LogLikelihood(p *ParamDraws, records []CustomerRecord) (*Cube, error) {
	if err := checkCustomerAxis(p, len(records), "LogLikelihood"); err != nil {
		return nil, err
	}

	n := len(records)
	out := NewCube(p.Chains, p.Draws, n)
	parallelFor(out.Len(), func(start, end int) {
		for i := start; i < end; i++ {
			cd, cu := i/n, i%n
			r, alpha, s, beta := p.at(cd, cu)
			rec := records[cu]
			out.Values[i] = logpParetoNBD(r, alpha, s, beta, rec.Frequency, rec.Recency, rec.T)
		}
	})
	return out, nil
}

// checkCustomerAxis rejects draws whose per-customer fields disagree with the
// record count.
func checkCustomerAxis(p *ParamDraws, n int, op string) error {
	if n == 0 {
		return NewDataError(op, "no customer records")
	}
	if c := p.customers(); c != 0 && c != n {
		return NewInvalidArgError(op,
			fmt.Sprintf("per-customer parameters cover %d customers but %d records were given", c, n))
	}
	return nil
}
