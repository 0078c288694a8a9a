package mmm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// GeometricAdstock applies geometric carryover to a spend series: the effect
// at step t is the weighted sum of the last lMax observations with weights
// alpha^i. With normalize set, weights are scaled to sum to one so the
// transform preserves total effect rather than amplifying it.
func GeometricAdstock(x []float64, alpha float64, lMax int, normalize bool) ([]float64, error) {
	if alpha < 0 || alpha >= 1 {
		return nil, fmt.Errorf("mmm: adstock alpha must be in [0, 1), got %v", alpha)
	}
	if lMax <= 0 {
		return nil, fmt.Errorf("mmm: adstock lMax must be positive, got %d", lMax)
	}

	weights := make([]float64, lMax)
	w := 1.0
	for i := range weights {
		weights[i] = w
		w *= alpha
	}
	return convolveWeights(x, weights, normalize), nil
}

// DelayedAdstock is the delayed geometric carryover with peak effect theta
// steps after exposure: weights alpha^((i-theta)^2) over the last lMax
// observations.
func DelayedAdstock(x []float64, alpha, theta float64, lMax int, normalize bool) ([]float64, error) {
	if alpha < 0 || alpha >= 1 {
		return nil, fmt.Errorf("mmm: adstock alpha must be in [0, 1), got %v", alpha)
	}
	if lMax <= 0 {
		return nil, fmt.Errorf("mmm: adstock lMax must be positive, got %d", lMax)
	}
	if theta < 0 || theta > float64(lMax-1) {
		return nil, fmt.Errorf("mmm: adstock theta must be in [0, lMax-1], got %v", theta)
	}

	weights := make([]float64, lMax)
	for i := range weights {
		d := float64(i) - theta
		weights[i] = math.Pow(alpha, d*d)
	}
	return convolveWeights(x, weights, normalize), nil
}

// convolveWeights applies a causal weighted sum over the trailing window.
func convolveWeights(x, weights []float64, normalize bool) []float64 {
	if normalize {
		total := floats.Sum(weights)
		for i := range weights {
			weights[i] /= total
		}
	}
	out := make([]float64, len(x))
	for t := range x {
		var acc float64
		for i, w := range weights {
			if t-i < 0 {
				break
			}
			acc += w * x[t-i]
		}
		out[t] = acc
	}
	return out
}

// LogisticSaturation maps spend through the saturating curve
// (1 - exp(-lam*x)) / (1 + exp(-lam*x)).
func LogisticSaturation(x []float64, lam float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		e := math.Exp(-lam * v)
		out[i] = (1 - e) / (1 + e)
	}
	return out
}

// TanhSaturation is the two-parameter saturation b*tanh(x/(b*c)).
func TanhSaturation(x []float64, b, c float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = b * math.Tanh(v/(b*c))
	}
	return out
}
