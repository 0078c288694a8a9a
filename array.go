package clv

import (
	"fmt"
)

// Cube is a dense array labeled by (chain, draw, customer), the output shape
// of every predictive quantity. Values are stored chain-major, then draw,
// then customer.
type Cube struct {
	Chains    int
	Draws     int
	Customers int
	Values    []float64
}

// NewCube allocates a zeroed cube with the given axis sizes.
func NewCube(chains, draws, customers int) *Cube {
	return &Cube{
		Chains:    chains,
		Draws:     draws,
		Customers: customers,
		Values:    make([]float64, chains*draws*customers),
	}
}

// Len returns the total number of elements.
func (c *Cube) Len() int { return len(c.Values) }

// At returns the value at (chain, draw, customer).
func (c *Cube) At(chain, draw, customer int) float64 {
	return c.Values[(chain*c.Draws+draw)*c.Customers+customer]
}

// Set stores a value at (chain, draw, customer).
func (c *Cube) Set(chain, draw, customer int, v float64) {
	c.Values[(chain*c.Draws+draw)*c.Customers+customer] = v
}

// CustomerSlice returns the values for one customer across all chains and
// draws, in (chain, draw) order.
func (c *Cube) CustomerSlice(customer int) []float64 {
	out := make([]float64, 0, c.Chains*c.Draws)
	for cd := 0; cd < c.Chains*c.Draws; cd++ {
		out = append(out, c.Values[cd*c.Customers+customer])
	}
	return out
}

// Mean returns the posterior mean over chains and draws for each customer.
func (c *Cube) Mean() []float64 {
	out := make([]float64, c.Customers)
	nd := float64(c.Chains * c.Draws)
	for cd := 0; cd < c.Chains*c.Draws; cd++ {
		row := c.Values[cd*c.Customers : (cd+1)*c.Customers]
		for cu, v := range row {
			out[cu] += v
		}
	}
	for cu := range out {
		out[cu] /= nd
	}
	return out
}

// ParamField is one Pareto/NBD scale parameter across draws. It is
// population-level (one value per chain/draw pair) unless covariates make it
// vary per customer.
type ParamField struct {
	Values      []float64
	PerCustomer bool
	Customers   int
}

// PopulationField wraps population-level values, one per (chain, draw).
func PopulationField(values []float64) ParamField {
	return ParamField{Values: values}
}

// CustomerField wraps per-customer values laid out (chain, draw, customer).
func CustomerField(values []float64, customers int) ParamField {
	return ParamField{Values: values, PerCustomer: true, Customers: customers}
}

// at returns the value for flattened chain/draw index cd and customer cu.
func (f ParamField) at(cd, cu int) float64 {
	if f.PerCustomer {
		return f.Values[cd*f.Customers+cu]
	}
	return f.Values[cd]
}

// ParamDraws holds posterior (or prior) draws of the four Pareto/NBD
// parameters with (chain, draw) axes. R and S are always population-level;
// Alpha and Beta may vary per customer when covariates are modeled. The
// formula layer treats a ParamDraws as read-only.
type ParamDraws struct {
	Chains int
	Draws  int
	R      []float64 // purchase-rate shape, length Chains*Draws
	S      []float64 // dropout-rate shape, length Chains*Draws
	Alpha  ParamField
	Beta   ParamField
}

// NewParamDraws validates axis sizes and strict positivity of all four
// parameters. Per-customer fields must be laid out (chain, draw, customer).
func NewParamDraws(chains, draws int, r, s []float64, alpha, beta ParamField) (*ParamDraws, error) {
	nd := chains * draws
	if chains <= 0 || draws <= 0 {
		return nil, NewInvalidArgError("NewParamDraws", "chain and draw axes must be non-empty")
	}
	if len(r) != nd || len(s) != nd {
		return nil, NewInvalidArgError("NewParamDraws",
			fmt.Sprintf("r and s must have %d values, got %d and %d", nd, len(r), len(s)))
	}
	for _, f := range []struct {
		name  string
		field ParamField
	}{{"alpha", alpha}, {"beta", beta}} {
		want := nd
		if f.field.PerCustomer {
			want = nd * f.field.Customers
		}
		if len(f.field.Values) != want {
			return nil, NewInvalidArgError("NewParamDraws",
				fmt.Sprintf("%s must have %d values, got %d", f.name, want, len(f.field.Values)))
		}
	}
	for _, vals := range [][]float64{r, s, alpha.Values, beta.Values} {
		for _, v := range vals {
			if !(v > 0) {
				return nil, NewInvalidArgError("NewParamDraws", "all parameters must be strictly positive")
			}
		}
	}
	return &ParamDraws{Chains: chains, Draws: draws, R: r, S: s, Alpha: alpha, Beta: beta}, nil
}

// MAPDraws wraps a single point estimate as a 1x1 (chain, draw) ParamDraws.
func MAPDraws(r, alpha, s, beta float64) (*ParamDraws, error) {
	return NewParamDraws(1, 1,
		[]float64{r}, []float64{s},
		PopulationField([]float64{alpha}), PopulationField([]float64{beta}))
}

// at gathers the four parameter values for flattened chain/draw index cd and
// customer cu.
func (p *ParamDraws) at(cd, cu int) (r, alpha, s, beta float64) {
	return p.R[cd], p.Alpha.at(cd, cu), p.S[cd], p.Beta.at(cd, cu)
}

// customers returns the customer-axis size carried by per-customer fields,
// or 0 when both fields are population-level.
func (p *ParamDraws) customers() int {
	if p.Alpha.PerCustomer {
		return p.Alpha.Customers
	}
	if p.Beta.PerCustomer {
		return p.Beta.Customers
	}
	return 0
}
