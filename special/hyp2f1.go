package special

import (
	"math"
)

const (
	// seriesTol is the relative term size below which the Gauss series is
	// considered converged.
	seriesTol = 1e-15

	// seriesMaxIter caps the plain (non-gradient) series evaluation.
	// Convergence is geometric in z, so this is only approached as z -> 1.
	seriesMaxIter = 1_000_000
)

// Hyp2F1 computes the Gaussian hypergeometric function 2F1(a, b; c; z)
// for |z| < 1 by direct summation of the Gauss series.
//
// The Pareto/NBD formulas only ever evaluate it at
// z = (max(alpha,beta) - min(alpha,beta)) / (max(alpha,beta) + t), which lies
// in [0, 1), so no argument transformations are applied. Outside |z| < 1 the
// result is NaN. Convergence slows as z approaches 1; evaluation stops after
// seriesMaxIter terms regardless.
func Hyp2F1(a, b, c, z float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) || math.IsNaN(c) || math.IsNaN(z) {
		return math.NaN()
	}
	if math.Abs(z) >= 1 {
		return math.NaN()
	}
	if z == 0 {
		return 1
	}

	term := 1.0
	sum := 1.0
	for k := 0; k < seriesMaxIter; k++ {
		fk := float64(k)
		term *= (a + fk) * (b + fk) / ((c + fk) * (fk + 1)) * z
		sum += term
		if math.Abs(term) <= seriesTol*math.Abs(sum) {
			break
		}
	}
	return sum
}
