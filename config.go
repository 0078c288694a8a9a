package clv

import (
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/stat/distuv"
	"gopkg.in/yaml.v3"
)

// PriorConfig specifies one parameter prior. Dist selects the family:
// "Weibull" (Alpha shape, Beta scale) for the positive Pareto/NBD parameters,
// "Normal" (Mu, Sigma) for covariate coefficients.
type PriorConfig struct {
	Dist  string  `yaml:"dist"`
	Alpha float64 `yaml:"alpha,omitempty"`
	Beta  float64 `yaml:"beta,omitempty"`
	Mu    float64 `yaml:"mu"`
	Sigma float64 `yaml:"sigma,omitempty"`
}

// LogProb returns the prior log density at x.
func (p PriorConfig) LogProb(x float64) float64 {
	switch p.Dist {
	case "Weibull":
		return distuv.Weibull{K: p.Alpha, Lambda: p.Beta}.LogProb(x)
	case "Normal":
		return distuv.Normal{Mu: p.Mu, Sigma: p.Sigma}.LogProb(x)
	default:
		return math.NaN()
	}
}

// DLogProb returns the derivative of the prior log density at x.
func (p PriorConfig) DLogProb(x float64) float64 {
	switch p.Dist {
	case "Weibull":
		// d/dx [(k-1)ln x - (x/lambda)^k] = (k-1)/x - (k/lambda)(x/lambda)^(k-1)
		return (p.Alpha-1)/x - p.Alpha/p.Beta*math.Pow(x/p.Beta, p.Alpha-1)
	case "Normal":
		return -(x - p.Mu) / (p.Sigma * p.Sigma)
	default:
		return math.NaN()
	}
}

// Mean returns the prior mean, used to seed optimization.
func (p PriorConfig) Mean() float64 {
	switch p.Dist {
	case "Weibull":
		return distuv.Weibull{K: p.Alpha, Lambda: p.Beta}.Mean()
	case "Normal":
		return p.Mu
	default:
		return math.NaN()
	}
}

func (p PriorConfig) validate(name string) error {
	switch p.Dist {
	case "Weibull":
		if p.Alpha <= 0 || p.Beta <= 0 {
			return NewInvalidArgError("ModelConfig",
				fmt.Sprintf("%s: Weibull prior requires positive alpha and beta", name))
		}
	case "Normal":
		if p.Sigma <= 0 {
			return NewInvalidArgError("ModelConfig",
				fmt.Sprintf("%s: Normal prior requires positive sigma", name))
		}
	default:
		return NewInvalidArgError("ModelConfig",
			fmt.Sprintf("%s: unsupported prior distribution %q", name, p.Dist))
	}
	return nil
}

// ModelConfig carries the prior specification and covariate column names for
// a ParetoNBDModel.
type ModelConfig struct {
	RPrior     PriorConfig `yaml:"r_prior"`
	AlphaPrior PriorConfig `yaml:"alpha_prior"`
	SPrior     PriorConfig `yaml:"s_prior"`
	BetaPrior  PriorConfig `yaml:"beta_prior"`

	PurchaseCoefficientPrior PriorConfig `yaml:"purchase_coefficient_prior"`
	DropoutCoefficientPrior  PriorConfig `yaml:"dropout_coefficient_prior"`

	PurchaseCovariateCols []string `yaml:"purchase_covariate_cols"`
	DropoutCovariateCols  []string `yaml:"dropout_covariate_cols"`
}

// DefaultModelConfig mirrors the reference priors: Weibull(2, 1) on the two
// shape parameters, Weibull(2, 10) on the two scales, and standard-normal
// covariate coefficients.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		RPrior:                   PriorConfig{Dist: "Weibull", Alpha: 2, Beta: 1},
		AlphaPrior:               PriorConfig{Dist: "Weibull", Alpha: 2, Beta: 10},
		SPrior:                   PriorConfig{Dist: "Weibull", Alpha: 2, Beta: 1},
		BetaPrior:                PriorConfig{Dist: "Weibull", Alpha: 2, Beta: 10},
		PurchaseCoefficientPrior: PriorConfig{Dist: "Normal", Mu: 0, Sigma: 1},
		DropoutCoefficientPrior:  PriorConfig{Dist: "Normal", Mu: 0, Sigma: 1},
	}
}

// Validate checks that every prior is well-formed.
func (c ModelConfig) Validate() error {
	checks := []struct {
		name  string
		prior PriorConfig
	}{
		{"r_prior", c.RPrior},
		{"alpha_prior", c.AlphaPrior},
		{"s_prior", c.SPrior},
		{"beta_prior", c.BetaPrior},
	}
	for _, chk := range checks {
		if err := chk.prior.validate(chk.name); err != nil {
			return err
		}
	}
	if len(c.PurchaseCovariateCols) > 0 {
		if err := c.PurchaseCoefficientPrior.validate("purchase_coefficient_prior"); err != nil {
			return err
		}
	}
	if len(c.DropoutCovariateCols) > 0 {
		if err := c.DropoutCoefficientPrior.validate("dropout_coefficient_prior"); err != nil {
			return err
		}
	}
	return nil
}

// CovariateCols returns all covariate column names the config requires.
func (c ModelConfig) CovariateCols() []string {
	cols := make([]string, 0, len(c.PurchaseCovariateCols)+len(c.DropoutCovariateCols))
	cols = append(cols, c.PurchaseCovariateCols...)
	cols = append(cols, c.DropoutCovariateCols...)
	return cols
}

// LoadModelConfig reads a YAML model configuration. Fields omitted from the
// file keep their defaults.
func LoadModelConfig(path string) (ModelConfig, error) {
	cfg := DefaultModelConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, NewDataError("LoadModelConfig", fmt.Sprintf("parsing %s: %v", path, err))
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
