// Package clv tolerance-based verification for floating-point comparisons
package clv

import (
	"fmt"
	"math"
)

// ToleranceConfig defines tolerance parameters for floating-point comparison
type ToleranceConfig struct {
	// AbsTol is the absolute tolerance for values near zero
	AbsTol float64

	// RelTol is the relative tolerance as a fraction of the larger value
	RelTol float64

	// CheckNaN determines if NaN values should be considered equal
	CheckNaN bool

	// CheckInf determines if Inf values should be considered equal
	CheckInf bool
}

// DefaultTolerance returns default tolerance configuration
func DefaultTolerance() ToleranceConfig {
	return ToleranceConfig{
		AbsTol:   1e-12,
		RelTol:   1e-9,
		CheckNaN: true,
		CheckInf: true,
	}
}

// StrictTolerance returns strict tolerance configuration for high precision
func StrictTolerance() ToleranceConfig {
	return ToleranceConfig{
		AbsTol:   1e-14,
		RelTol:   1e-12,
		CheckNaN: true,
		CheckInf: true,
	}
}

// QuadratureTolerance returns relaxed tolerance for integrated or series
// quantities that accumulate truncation error.
func QuadratureTolerance() ToleranceConfig {
	return ToleranceConfig{
		AbsTol:   1e-6,
		RelTol:   1e-4,
		CheckNaN: true,
		CheckInf: true,
	}
}

// NearEqual checks if two float64 values are equal within tolerance
func NearEqual(a, b float64, tol ToleranceConfig) bool {
	// Handle special cases
	if tol.CheckNaN && math.IsNaN(a) && math.IsNaN(b) {
		return true
	}

	if tol.CheckInf {
		if math.IsInf(a, 1) && math.IsInf(b, 1) {
			return true // Both +Inf
		}
		if math.IsInf(a, -1) && math.IsInf(b, -1) {
			return true // Both -Inf
		}
	}

	// Check if exactly equal (handles ±0)
	if a == b {
		return true
	}

	diff := math.Abs(a - b)

	// Check absolute tolerance
	if diff <= tol.AbsTol {
		return true
	}

	// Check relative tolerance
	larger := math.Max(math.Abs(a), math.Abs(b))
	return diff <= larger*tol.RelTol
}

// VerificationResult summarizes an array comparison
type VerificationResult struct {
	MaxAbsError float64
	MaxRelError float64
	NumErrors   int
	TotalItems  int
	FirstError  int // Index of first error, -1 if none
}

// VerifyFloat64Array compares two float64 arrays and returns detailed results
func VerifyFloat64Array(expected, actual []float64, tol ToleranceConfig) VerificationResult {
	result := VerificationResult{
		TotalItems: len(expected),
		FirstError: -1,
	}

	if len(expected) != len(actual) {
		result.NumErrors = len(expected)
		return result
	}

	for i := range expected {
		if !NearEqual(expected[i], actual[i], tol) {
			result.NumErrors++
			if result.FirstError == -1 {
				result.FirstError = i
			}

			absDiff := math.Abs(expected[i] - actual[i])
			if absDiff > result.MaxAbsError {
				result.MaxAbsError = absDiff
			}

			// Relative error (avoid division by zero)
			if expected[i] != 0 {
				relDiff := absDiff / math.Abs(expected[i])
				if relDiff > result.MaxRelError {
					result.MaxRelError = relDiff
				}
			}
		}
	}

	return result
}

// IsAcceptable returns true if the verification result is within tolerance
func (r VerificationResult) IsAcceptable() bool {
	return r.NumErrors == 0
}

// String formats the verification result for display
func (r VerificationResult) String() string {
	if r.NumErrors == 0 {
		return "PASS: All values match within tolerance"
	}

	errorRate := float64(r.NumErrors) / float64(r.TotalItems) * 100
	return fmt.Sprintf("FAIL: %d/%d values differ (%.2f%%)\n"+
		"  Max absolute error: %e\n"+
		"  Max relative error: %e\n"+
		"  First error at index: %d",
		r.NumErrors, r.TotalItems, errorRate,
		r.MaxAbsError, r.MaxRelError,
		r.FirstError)
}
