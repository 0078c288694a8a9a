package clv

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Selectable outputs for DistributionNewCustomer.
const (
	VarDropout          = "dropout"
	VarPurchaseRate     = "purchase_rate"
	VarRecencyFrequency = "recency_frequency"
)

// NewCustomerSamples holds predictive samples for a hypothetical brand-new
// customer, one draw per (chain, draw, customer) cell. Only the requested
// outputs are non-nil.
type NewCustomerSamples struct {
	Dropout      *Cube // dropout rate draws
	PurchaseRate *Cube // purchase rate draws
	Recency      *Cube // simulated last-repeat-purchase time
	Frequency    *Cube // simulated repeat purchase count
}

// DistributionNewCustomer samples the generative model for new customers:
// a purchase rate from Gamma(r, alpha), a dropout rate from Gamma(s, beta),
// and, when requested, a (recency, frequency) observation from the point
// process conditioned on those rates and the horizon T.
//
// T holds one shared horizon or one per customer and is only consulted for
// the recency/frequency output. varNames selects any subset of VarDropout,
// VarPurchaseRate, and VarRecencyFrequency; unselected outputs are not
// allocated. Sampling is deterministic in seed, regardless of parallel
// scheduling and of which subset is requested: both rates are drawn for every
// element so the streams never shift.
func DistributionNewCustomer(p *ParamDraws, T []float64, seed uint64, varNames ...string) (*NewCustomerSamples, error) {
	const op = "DistributionNewCustomer"
	if len(varNames) == 0 {
		varNames = []string{VarDropout, VarPurchaseRate, VarRecencyFrequency}
	}
	var wantDropout, wantRate, wantRF bool
	for _, name := range varNames {
		switch name {
		case VarDropout:
			wantDropout = true
		case VarPurchaseRate:
			wantRate = true
		case VarRecencyFrequency:
			wantRF = true
		default:
			return nil, NewInvalidArgError(op, fmt.Sprintf("unknown variable %q", name))
		}
	}

	n := p.customers()
	if n == 0 {
		n = len(T)
	}
	if n == 0 {
		n = 1
	}
	var horizon []float64
	if wantRF {
		var err error
		horizon, err = broadcastCustomer(T, n, op)
		if err != nil {
			return nil, err
		}
	}

	out := &NewCustomerSamples{}
	if wantDropout {
		out.Dropout = NewCube(p.Chains, p.Draws, n)
	}
	if wantRate {
		out.PurchaseRate = NewCube(p.Chains, p.Draws, n)
	}
	if wantRF {
		out.Recency = NewCube(p.Chains, p.Draws, n)
		out.Frequency = NewCube(p.Chains, p.Draws, n)
	}

	total := p.Chains * p.Draws * n
	parallelFor(total, func(start, end int) {
		for i := start; i < end; i++ {
			cd, cu := i/n, i%n
			r, alpha, s, beta := p.at(cd, cu)
			src := rand.NewSource(elementSeed(seed, uint64(i)))

			// Both rates are always drawn so each output's stream stays
			// identical no matter which subset was requested.
			mu := distuv.Gamma{Alpha: s, Beta: beta, Src: src}.Rand()
			lam := distuv.Gamma{Alpha: r, Beta: alpha, Src: src}.Rand()

			if wantDropout {
				out.Dropout.Values[i] = mu
			}
			if wantRate {
				out.PurchaseRate.Values[i] = lam
			}
			if wantRF {
				recency, frequency := simulateRecencyFrequency(lam, mu, horizon[cu], src)
				out.Recency.Values[i] = recency
				out.Frequency.Values[i] = frequency
			}
		}
	})
	return out, nil
}

// simulateRecencyFrequency runs the individual-level point process: the
// customer stays active for an Exponential(mu) lifetime (truncated at T) and
// makes repeat purchases at Poisson rate lam while active. The first
// purchase anchors t=0 and is not counted.
func simulateRecencyFrequency(lam, mu, T float64, src rand.Source) (recency, frequency float64) {
	alive := distuv.Exponential{Rate: mu, Src: src}.Rand()
	if alive > T {
		alive = T
	}
	wait := distuv.Exponential{Rate: lam, Src: src}
	t := wait.Rand()
	for t <= alive {
		frequency++
		recency = t
		t += wait.Rand()
	}
	return recency, frequency
}

// elementSeed decorrelates per-element RNG streams from a single seed
// (splitmix64 finalizer).
func elementSeed(seed, i uint64) uint64 {
	z := seed + (i+1)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}
