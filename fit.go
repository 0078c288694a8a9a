package clv

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/optimize"

	"github.com/wd60622/clv/special"
)

// FitConfig controls maximum-a-posteriori fitting.
type FitConfig struct {
	// MaxIterations caps the optimizer's major iterations; 0 uses the
	// optimizer default.
	MaxIterations int

	// ReduceHyp2F1GradIters opts in to the reduced iteration bound on the
	// hypergeometric gradient loop (special.ReduceGradMaxIter). Early in a
	// fit, proposals far from convergence push the series argument toward 1,
	// where the default bound is catastrophically slow; the reduced bound
	// trades accuracy well below the fit tolerance for tractable runtime.
	// Off by default so plain evaluations keep the conservative bound.
	ReduceHyp2F1GradIters bool
}

// Fit computes the MAP point estimate of the model parameters (and covariate
// coefficients, if configured) by minimizing the negative log posterior with
// L-BFGS over log-transformed parameters. The result is installed on the
// model as a 1x1 (chain, draw) FitResult.
func (m *ParetoNBDModel) Fit(cfg FitConfig) (*FitResult, error) {
	steps := special.DefaultGradSteps()
	if cfg.ReduceHyp2F1GradIters {
		steps, _ = special.ReduceGradMaxIter(steps)
	}

	nPur := len(m.Config.PurchaseCovariateCols)
	nDrop := len(m.Config.DropoutCovariateCols)
	dim := 4 + nPur + nDrop

	problem := optimize.Problem{
		Func: func(theta []float64) float64 {
			f, _ := m.negLogPosterior(theta, steps, false)
			return f
		},
		Grad: func(grad, theta []float64) {
			_, g := m.negLogPosterior(theta, steps, true)
			copy(grad, g)
		},
	}

	// Seed at the prior means; coefficients start at zero.
	x0 := make([]float64, dim)
	x0[0] = math.Log(m.Config.RPrior.Mean())
	x0[1] = math.Log(m.Config.AlphaPrior.Mean())
	x0[2] = math.Log(m.Config.SPrior.Mean())
	x0[3] = math.Log(m.Config.BetaPrior.Mean())

	// A non-finite objective at the seed means the data violates the
	// likelihood's preconditions (e.g. recency beyond the observation
	// window); the optimizer cannot recover from that.
	if f0, _ := m.negLogPosterior(x0, steps, false); math.IsNaN(f0) || math.IsInf(f0, 0) {
		return nil, NewNumericalError("Fit", "non-finite log posterior at the starting point")
	}

	settings := &optimize.Settings{}
	if cfg.MaxIterations > 0 {
		settings.MajorIterations = cfg.MaxIterations
	}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	if err != nil {
		return nil, NewFitError("Fit", "optimization failed", err)
	}
	if math.IsNaN(result.F) || math.IsInf(result.F, 0) {
		return nil, NewNumericalError("Fit", "optimization diverged to a non-finite objective")
	}

	fr := &FitResult{
		Chains:     1,
		Draws:      1,
		R:          []float64{math.Exp(result.X[0])},
		AlphaScale: []float64{math.Exp(result.X[1])},
		S:          []float64{math.Exp(result.X[2])},
		BetaScale:  []float64{math.Exp(result.X[3])},
	}
	if nPur > 0 {
		fr.PurchaseCoef = [][]float64{append([]float64(nil), result.X[4:4+nPur]...)}
	}
	if nDrop > 0 {
		fr.DropoutCoef = [][]float64{append([]float64(nil), result.X[4+nPur:]...)}
	}
	m.fit = fr
	return fr, nil
}

// negLogPosterior evaluates the negative log posterior, and its gradient in
// the optimizer's coordinates when wantGrad is set. theta holds
// [log r, log alpha_scale, log s, log beta_scale, purchase coefs..., dropout
// coefs...]; the log transform keeps the four distribution parameters
// strictly positive without box constraints.
func (m *ParetoNBDModel) negLogPosterior(theta []float64, steps special.StepSwitch, wantGrad bool) (float64, []float64) {
	cfg := m.Config
	nPur := len(cfg.PurchaseCovariateCols)
	nDrop := len(cfg.DropoutCovariateCols)

	r := math.Exp(theta[0])
	alphaScale := math.Exp(theta[1])
	s := math.Exp(theta[2])
	betaScale := math.Exp(theta[3])
	purCoef := theta[4 : 4+nPur]
	dropCoef := theta[4+nPur : 4+nPur+nDrop]

	logPost := cfg.RPrior.LogProb(r) + cfg.AlphaPrior.LogProb(alphaScale) +
		cfg.SPrior.LogProb(s) + cfg.BetaPrior.LogProb(betaScale)

	grad := make([]float64, len(theta))
	if wantGrad {
		grad[0] = cfg.RPrior.DLogProb(r)
		grad[1] = cfg.AlphaPrior.DLogProb(alphaScale)
		grad[2] = cfg.SPrior.DLogProb(s)
		grad[3] = cfg.BetaPrior.DLogProb(betaScale)
	}
	for j, w := range purCoef {
		logPost += cfg.PurchaseCoefficientPrior.LogProb(w)
		if wantGrad {
			grad[4+j] = cfg.PurchaseCoefficientPrior.DLogProb(w)
		}
	}
	for j, w := range dropCoef {
		logPost += cfg.DropoutCoefficientPrior.LogProb(w)
		if wantGrad {
			grad[4+nPur+j] = cfg.DropoutCoefficientPrior.DLogProb(w)
		}
	}

	for _, rec := range m.Data {
		alpha, beta := alphaScale, betaScale
		for j, col := range cfg.PurchaseCovariateCols {
			alpha *= math.Exp(-purCoef[j] * rec.Covariates[col])
		}
		for j, col := range cfg.DropoutCovariateCols {
			beta *= math.Exp(-dropCoef[j] * rec.Covariates[col])
		}

		if !wantGrad {
			logPost += logpParetoNBD(r, alpha, s, beta, rec.Frequency, rec.Recency, rec.T)
			continue
		}

		g := logpGradParetoNBD(r, alpha, s, beta, rec.Frequency, rec.Recency, rec.T, steps)
		logPost += g.logp
		grad[0] += g.dr
		grad[2] += g.ds
		// Chain through the log-linear covariate link: alpha depends on
		// alpha_scale multiplicatively and on each coefficient through
		// d alpha/d w_j = -x_j * alpha.
		grad[1] += g.dalpha * alpha / alphaScale
		grad[3] += g.dbeta * beta / betaScale
		for j, col := range cfg.PurchaseCovariateCols {
			grad[4+j] += g.dalpha * -rec.Covariates[col] * alpha
		}
		for j, col := range cfg.DropoutCovariateCols {
			grad[4+nPur+j] += g.dbeta * -rec.Covariates[col] * beta
		}
	}

	if !wantGrad {
		return -logPost, nil
	}

	// Negate and convert the four positive parameters to log coordinates:
	// d/d(log x) = x * d/dx. Coefficients are already unconstrained.
	grad[0] *= -r
	grad[1] *= -alphaScale
	grad[2] *= -s
	grad[3] *= -betaScale
	for j := 4; j < len(grad); j++ {
		grad[j] = -grad[j]
	}
	return -logPost, grad
}

// logpGradRes carries the Pareto/NBD log density and its partial derivatives
// with respect to the four distribution parameters.
type logpGradRes struct {
	logp   float64
	dr     float64
	dalpha float64
	ds     float64
	dbeta  float64
}

// logpGradParetoNBD evaluates logpParetoNBD together with its analytic
// gradient. The hypergeometric terms contribute through the iterative
// gradient loop, whose iteration bound is selected by steps.
func logpGradParetoNBD(r, alpha, s, beta, x, tx, T float64, steps special.StepSwitch) logpGradRes {
	rx := r + x
	rsx := r + s + x

	a1 := lgamma(rx) - lgamma(r) + r*math.Log(alpha) + s*math.Log(beta)
	da1 := [4]float64{
		mathext.Digamma(rx) - mathext.Digamma(r) + math.Log(alpha),
		r / alpha,
		math.Log(beta),
		s / beta,
	}

	active := -rx*math.Log(alpha+T) - s*math.Log(beta+T)
	dActive := [4]float64{
		-math.Log(alpha + T),
		-rx / (alpha + T),
		-math.Log(beta + T),
		-s / (beta + T),
	}

	a0, dA0 := logA0Grad(r, alpha, s, beta, x, tx, T, steps)
	churned := math.Log(s) - math.Log(rsx) + a0
	dChurned := [4]float64{
		-1/rsx + dA0[0],
		dA0[1],
		1/s - 1/rsx + dA0[2],
		dA0[3],
	}

	res := logpGradRes{logp: a1 + LogAddExp(active, churned)}

	// Softmax weights of the two mixture branches. A branch with zero
	// weight is skipped so a -Inf branch cannot inject NaNs.
	wActive := 1 / (1 + math.Exp(churned-active))
	wChurned := 1 - wActive

	var d [4]float64
	for k := 0; k < 4; k++ {
		d[k] = da1[k]
		if wActive > 0 {
			d[k] += wActive * dActive[k]
		}
		if wChurned > 0 {
			d[k] += wChurned * dChurned[k]
		}
	}
	res.dr, res.dalpha, res.ds, res.dbeta = d[0], d[1], d[2], d[3]
	return res
}

// logA0Grad computes log A_0 and its gradient with respect to
// (r, alpha, s, beta). Both hypergeometric evaluations run the gradient loop
// under the supplied step switch.
func logA0Grad(r, alpha, s, beta, x, tx, T float64, steps special.StepSwitch) (float64, [4]float64) {
	rx := r + x
	rsx := r + s + x

	// Branch bookkeeping: derivatives of the series parameters
	// (a, b, c) = (rsx, b, rsx+1), the larger scale M, and the scale gap.
	var (
		larger, b float64
		db        [4]float64 // derivative of the swapped second parameter
		dLarger   [4]float64
		dDiff     [4]float64
	)
	if alpha >= beta {
		larger, b = alpha, s+1
		db = [4]float64{0, 0, 1, 0}
		dLarger = [4]float64{0, 1, 0, 0}
		dDiff = [4]float64{0, 1, 0, -1}
	} else {
		larger, b = beta, rx
		db = [4]float64{1, 0, 0, 0}
		dLarger = [4]float64{0, 0, 0, 1}
		dDiff = [4]float64{0, -1, 0, 1}
	}
	diff := math.Abs(alpha - beta)
	da := [4]float64{1, 0, 1, 0} // d rsx; also d(rsx+1)

	q := [2]float64{larger + tx, larger + T}
	var p [2]float64
	var dp [2][4]float64
	for k := 0; k < 2; k++ {
		z := diff / q[k]
		g := special.Hyp2F1Grad(rsx, b, rsx+1, z, steps)
		fz := special.Hyp2F1GradZ(rsx, b, rsx+1, z)
		p[k] = math.Log(g.F) - rsx*math.Log(q[k])
		for j := 0; j < 4; j++ {
			dz := (dDiff[j]*q[k] - diff*dLarger[j]) / (q[k] * q[k])
			dF := g.DA*da[j] + g.DB*db[j] + g.DC*da[j] + fz*dz
			dp[k][j] = dF/g.F - da[j]*math.Log(q[k]) - rsx*dLarger[j]/q[k]
		}
	}

	a0 := LogDiffExp(p[0], p[1])
	var dA0 [4]float64
	if math.IsInf(a0, -1) {
		// tx == T collapses the difference; the churned branch carries zero
		// weight there and the gradient is never consumed.
		return a0, dA0
	}
	w := math.Exp(p[1] - p[0])
	for j := 0; j < 4; j++ {
		dA0[j] = (dp[0][j] - w*dp[1][j]) / (1 - w)
	}
	return a0, dA0
}

// Summary renders a short parameter table, averaging over chains and draws
// when the result holds more than a point estimate.
func (fr *FitResult) Summary() string {
	mean := func(vals []float64) float64 {
		var sum float64
		for _, v := range vals {
			sum += v
		}
		return sum / float64(len(vals))
	}
	out := fmt.Sprintf("r      %12.6f\nalpha  %12.6f\ns      %12.6f\nbeta   %12.6f\n",
		mean(fr.R), mean(fr.AlphaScale), mean(fr.S), mean(fr.BetaScale))
	for j := 0; j < coefWidth(fr.PurchaseCoef); j++ {
		out += fmt.Sprintf("purchase_coef[%d] %12.6f\n", j, mean(coefColumn(fr.PurchaseCoef, j)))
	}
	for j := 0; j < coefWidth(fr.DropoutCoef); j++ {
		out += fmt.Sprintf("dropout_coef[%d]  %12.6f\n", j, mean(coefColumn(fr.DropoutCoef, j)))
	}
	return out
}

func coefWidth(coef [][]float64) int {
	if len(coef) == 0 {
		return 0
	}
	return len(coef[0])
}

func coefColumn(coef [][]float64, j int) []float64 {
	col := make([]float64, len(coef))
	for i, row := range coef {
		col[i] = row[j]
	}
	return col
}
