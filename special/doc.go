// Package special provides the Gaussian hypergeometric function 2F1 and its
// parameter gradients, the special-function primitives behind the Pareto/NBD
// likelihood and its conditional probability formulas.
//
// The gradient evaluator is an iterative series whose iteration bound is
// selected by a StepSwitch value. Gradient-based fitting can opt in to a
// lowered bound via ReduceGradMaxIter; see the package-level constants.
package special
