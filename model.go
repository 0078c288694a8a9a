package clv

import (
	"fmt"
	"math"
)

// FitResult holds draws of the model's free variables with (chain, draw)
// axes. A MAP fit produces a single 1x1 draw; an external sampler can supply
// a full posterior through SetFitResult. Population-level slices are indexed
// by flattened chain*draws+draw; coefficient slices additionally by covariate
// position.
type FitResult struct {
	Chains int
	Draws  int

	R          []float64
	S          []float64
	AlphaScale []float64
	BetaScale  []float64

	// Covariate coefficients, nil when the model has none.
	PurchaseCoef [][]float64
	DropoutCoef  [][]float64
}

func (fr *FitResult) validate(cfg ModelConfig) error {
	nd := fr.Chains * fr.Draws
	if fr.Chains <= 0 || fr.Draws <= 0 {
		return NewInvalidArgError("FitResult", "chain and draw axes must be non-empty")
	}
	for name, vals := range map[string][]float64{
		"r": fr.R, "s": fr.S, "alpha": fr.AlphaScale, "beta": fr.BetaScale,
	} {
		if len(vals) != nd {
			return NewInvalidArgError("FitResult",
				fmt.Sprintf("%s must have %d draws, got %d", name, nd, len(vals)))
		}
	}
	if want := len(cfg.PurchaseCovariateCols); want > 0 {
		if len(fr.PurchaseCoef) != nd {
			return NewInvalidArgError("FitResult", "purchase coefficients missing draws")
		}
		for _, row := range fr.PurchaseCoef {
			if len(row) != want {
				return NewInvalidArgError("FitResult",
					fmt.Sprintf("purchase coefficient rows must have %d entries", want))
			}
		}
	}
	if want := len(cfg.DropoutCovariateCols); want > 0 {
		if len(fr.DropoutCoef) != nd {
			return NewInvalidArgError("FitResult", "dropout coefficients missing draws")
		}
		for _, row := range fr.DropoutCoef {
			if len(row) != want {
				return NewInvalidArgError("FitResult",
					fmt.Sprintf("dropout coefficient rows must have %d entries", want))
			}
		}
	}
	return nil
}

// ParetoNBDModel couples customer records with prior configuration and, after
// fitting, parameter draws. Predictive methods accept replacement records so
// a fitted model can score customers outside the training set.
type ParetoNBDModel struct {
	Data   []CustomerRecord
	Config ModelConfig

	fit *FitResult
}

// NewParetoNBDModel validates the records against the config and returns an
// unfitted model.
func NewParetoNBDModel(data []CustomerRecord, config ModelConfig) (*ParetoNBDModel, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateRecords(data, config.CovariateCols()); err != nil {
		return nil, err
	}
	return &ParetoNBDModel{Data: data, Config: config}, nil
}

// SetFitResult installs parameter draws produced by an external sampler (or a
// previous fit being restored).
func (m *ParetoNBDModel) SetFitResult(fr *FitResult) error {
	if err := fr.validate(m.Config); err != nil {
		return err
	}
	m.fit = fr
	return nil
}

// FitResult returns the current draws, or nil before fitting.
func (m *ParetoNBDModel) FitResult() *FitResult { return m.fit }

// records resolves the data argument predictive methods take: nil means the
// fit dataset, anything else is validated against the config first.
func (m *ParetoNBDModel) records(data []CustomerRecord) ([]CustomerRecord, error) {
	if data == nil {
		return m.Data, nil
	}
	if err := ValidateRecords(data, m.Config.CovariateCols()); err != nil {
		return nil, err
	}
	return data, nil
}

// extractParams assembles the ParamDraws the formula layer consumes. With
// covariates, the scale parameters become per-customer:
//
//	alpha = alpha_scale * exp(-X_purchase . w_purchase)
//	beta  = beta_scale  * exp(-X_dropout . w_dropout)
func (m *ParetoNBDModel) extractParams(records []CustomerRecord) (*ParamDraws, error) {
	if m.fit == nil {
		return nil, NewInvalidArgError("extractParams", "model has not been fit")
	}
	fr := m.fit
	nd := fr.Chains * fr.Draws

	alpha := PopulationField(fr.AlphaScale)
	if len(m.Config.PurchaseCovariateCols) > 0 {
		alpha = covariateField(fr.AlphaScale, fr.PurchaseCoef, records, m.Config.PurchaseCovariateCols, nd)
	}
	beta := PopulationField(fr.BetaScale)
	if len(m.Config.DropoutCovariateCols) > 0 {
		beta = covariateField(fr.BetaScale, fr.DropoutCoef, records, m.Config.DropoutCovariateCols, nd)
	}

	return NewParamDraws(fr.Chains, fr.Draws, fr.R, fr.S, alpha, beta)
}

// covariateField expands a population scale into per-customer values through
// the log-linear covariate link.
func covariateField(scale []float64, coef [][]float64, records []CustomerRecord, cols []string, nd int) ParamField {
	n := len(records)
	vals := make([]float64, nd*n)
	for cd := 0; cd < nd; cd++ {
		for cu, rec := range records {
			dot := 0.0
			for j, col := range cols {
				dot += coef[cd][j] * rec.Covariates[col]
			}
			vals[cd*n+cu] = scale[cd] * math.Exp(-dot)
		}
	}
	return CustomerField(vals, n)
}

// ExpectedPurchases predicts expected future purchases over futureT periods
// for each customer. A nil data uses the fit dataset.
func (m *ParetoNBDModel) ExpectedPurchases(data []CustomerRecord, futureT []float64) (*Cube, error) {
	records, err := m.records(data)
	if err != nil {
		return nil, err
	}
	p, err := m.extractParams(records)
	if err != nil {
		return nil, err
	}
	return ExpectedPurchases(p, records, futureT)
}

// ExpectedProbabilityAlive estimates the probability each customer is still
// active futureT periods past its observation end (now, when futureT is nil).
func (m *ParetoNBDModel) ExpectedProbabilityAlive(data []CustomerRecord, futureT []float64) (*Cube, error) {
	records, err := m.records(data)
	if err != nil {
		return nil, err
	}
	p, err := m.extractParams(records)
	if err != nil {
		return nil, err
	}
	return ExpectedProbabilityAlive(p, records, futureT)
}

// ExpectedPurchaseProbability estimates the probability of exactly nPurchases
// purchases over futureT periods for each customer.
func (m *ParetoNBDModel) ExpectedPurchaseProbability(data []CustomerRecord, nPurchases []int, futureT []float64) (*Cube, error) {
	records, err := m.records(data)
	if err != nil {
		return nil, err
	}
	p, err := m.extractParams(records)
	if err != nil {
		return nil, err
	}
	return ExpectedPurchaseProbability(p, records, nPurchases, futureT)
}

// ExpectedPurchasesNewCustomer predicts purchases over t periods for a
// hypothetical customer with no history. With covariates, one prediction is
// made per record's covariate profile; this is not conditional on the
// observed customers.
func (m *ParetoNBDModel) ExpectedPurchasesNewCustomer(data []CustomerRecord, t []float64) (*Cube, error) {
	records, err := m.records(data)
	if err != nil {
		return nil, err
	}
	p, err := m.extractParams(records)
	if err != nil {
		return nil, err
	}
	return ExpectedPurchasesNewCustomer(p, t)
}

// LogLikelihood evaluates the data log-likelihood under the fitted draws.
func (m *ParetoNBDModel) LogLikelihood(data []CustomerRecord) (*Cube, error) {
	records, err := m.records(data)
	if err != nil {
		return nil, err
	}
	p, err := m.extractParams(records)
	if err != nil {
		return nil, err
	}
	return LogLikelihood(p, records)
}
