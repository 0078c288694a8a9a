package special

import (
	"math"
)

// Iteration bounds for the 2F1 gradient loop.
//
// The default bound is conservative: it only matters when z is close to 1 and
// the series has not converged long before. Early in gradient-based fitting,
// parameter proposals land in exactly that regime, and running the loop to the
// default bound dominates wall-clock time. The reduced bound trades accuracy
// far below the fitting tolerance for a large constant-factor speedup there.
const (
	DefaultGradMaxIter = 1_000_000
	ReducedGradMaxIter = 100_000
)

// StepSwitch is the two-branch selection a compiled gradient loop makes for
// its iteration bound: the Skip branch when the series is skipped entirely,
// the Run branch otherwise.
type StepSwitch struct {
	Skip int
	Run  int
}

// DefaultGradSteps returns the step switch the gradient loop uses unless a
// caller opts in to the reduced bound.
func DefaultGradSteps() StepSwitch {
	return StepSwitch{Skip: 0, Run: DefaultGradMaxIter}
}

// Select resolves the switch for one evaluation.
func (sw StepSwitch) Select(skip bool) int {
	if skip {
		return sw.Skip
	}
	return sw.Run
}

// ReduceGradMaxIter rewrites a gradient-loop step switch to the reduced
// iteration bound. The rewrite only fires when the switch is exactly the
// default {0, DefaultGradMaxIter}; any other shape is returned unchanged with
// ok=false. It never fails and never partially rewrites.
func ReduceGradMaxIter(sw StepSwitch) (rewritten StepSwitch, ok bool) {
	if sw.Skip != 0 || sw.Run != DefaultGradMaxIter {
		return sw, false
	}
	return StepSwitch{Skip: 0, Run: ReducedGradMaxIter}, true
}

// Grad2F1 holds the value of 2F1(a, b; c; z) together with its partial
// derivatives with respect to the three parameters.
type Grad2F1 struct {
	F         float64
	DA        float64
	DB        float64
	DC        float64
	Converged bool
}

// Hyp2F1Grad evaluates 2F1(a, b; c; z) and its derivatives with respect to
// a, b, and c in a single pass over the Gauss series.
//
// The parameter derivatives use the digamma-difference identity
//
//	d/da 2F1 = sum_k T_k * (psi(a+k) - psi(a))
//
// with psi(a+k)-psi(a) accumulated by the recurrence g_{k+1} = g_k + 1/(a+k),
// so no digamma evaluations are needed inside the loop. The iteration bound is
// steps.Select(z == 0): at z == 0 the loop is skipped and the gradient is
// exactly zero.
func Hyp2F1Grad(a, b, c, z float64, steps StepSwitch) Grad2F1 {
	maxIter := steps.Select(z == 0)

	res := Grad2F1{F: 1}
	if maxIter <= 0 {
		res.Converged = z == 0
		return res
	}

	term := 1.0
	sum := 1.0
	var ga, gb, gc float64
	var da, db, dc float64
	for k := 0; k < maxIter; k++ {
		fk := float64(k)
		ga += 1 / (a + fk)
		gb += 1 / (b + fk)
		gc += 1 / (c + fk)
		term *= (a + fk) * (b + fk) / ((c + fk) * (fk + 1)) * z
		sum += term
		da += term * ga
		db += term * gb
		dc -= term * gc
		if math.Abs(term) <= seriesTol*math.Abs(sum) {
			res.Converged = true
			break
		}
	}
	res.F = sum
	res.DA = da
	res.DB = db
	res.DC = dc
	return res
}

// Hyp2F1GradZ computes the derivative of 2F1(a, b; c; z) with respect to z,
// using d/dz 2F1(a, b; c; z) = (a*b/c) * 2F1(a+1, b+1; c+1; z).
func Hyp2F1GradZ(a, b, c, z float64) float64 {
	return a * b / c * Hyp2F1(a+1, b+1, c+1, z)
}
