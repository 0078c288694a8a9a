package clv

import (
	"math"
)

// Log-space composition primitives. The predictive formulas express every
// multiplicative term as a sum of logs and only exponentiate at the end;
// these helpers combine such terms without leaving log-space.

// LogAddExp returns log(exp(a) + exp(b)) without overflow.
func LogAddExp(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	max := a
	if b > max {
		max = b
	}
	return max + math.Log(math.Exp(a-max)+math.Exp(b-max))
}

// LogDiffExp returns log(exp(a) - exp(b)) for a >= b. When a == b the
// difference is zero and the result is -Inf; when a < b the result is NaN,
// matching log of a negative number.
func LogDiffExp(a, b float64) float64 {
	if math.IsInf(b, -1) {
		return a
	}
	if a == b {
		return math.Inf(-1)
	}
	// log1p keeps precision when exp(b-a) is close to 1.
	return a + math.Log1p(-math.Exp(b-a))
}

// LogSumExpSigned combines terms exp(logs[i]) carrying explicit signs and
// returns the log-magnitude and sign of the signed sum. Signs must be +1 or
// -1. Magnitudes are accumulated relative to the largest term, so no
// intermediate exponential can overflow.
//
// NaN inputs propagate: if any log is NaN the result is NaN with sign 0.
func LogSumExpSigned(logs []float64, signs []float64) (logAbs float64, sign float64) {
	max := math.Inf(-1)
	for _, l := range logs {
		if math.IsNaN(l) {
			return math.NaN(), 0
		}
		if l > max {
			max = l
		}
	}
	if math.IsInf(max, -1) {
		return math.Inf(-1), 0
	}

	var sum float64
	for i, l := range logs {
		sum += signs[i] * math.Exp(l-max)
	}
	switch {
	case sum > 0:
		return max + math.Log(sum), 1
	case sum < 0:
		return max + math.Log(-sum), -1
	default:
		return math.Inf(-1), 0
	}
}

// LogSumExp returns log(sum(exp(logs))) over all-positive terms.
func LogSumExp(logs []float64) float64 {
	logAbs, _ := LogSumExpSigned(logs, onesLike(logs))
	return logAbs
}

func onesLike(x []float64) []float64 {
	ones := make([]float64, len(x))
	for i := range ones {
		ones[i] = 1
	}
	return ones
}

// lgamma is math.Lgamma restricted to the positive arguments the Pareto/NBD
// formulas produce; the reflection sign is discarded.
func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}
