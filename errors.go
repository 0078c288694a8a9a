// Package clv structured error types for better error handling
package clv

import (
	"fmt"
)

// ErrorType represents categories of errors
type ErrorType int

const (
	// Invalid argument errors
	ErrTypeInvalidArg ErrorType = iota
	// Malformed or inconsistent input data
	ErrTypeData
	// Numerical errors (non-convergence, invalid domain)
	ErrTypeNumerical
	// Not implemented errors
	ErrTypeNotImplemented
	// Fitting errors
	ErrTypeFit
)

// CLVError represents a structured error with context
type CLVError struct {
	Type    ErrorType
	Op      string // Operation that failed
	Message string // Human-readable message
	Err     error  // Underlying error if any
}

// Error implements the error interface
func (e *CLVError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("clv %s error in %s: %s (caused by: %v)",
			e.Type.String(), e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("clv %s error in %s: %s",
		e.Type.String(), e.Op, e.Message)
}

// Unwrap allows error chain inspection
func (e *CLVError) Unwrap() error {
	return e.Err
}

// String returns the error type as a string
func (t ErrorType) String() string {
	switch t {
	case ErrTypeInvalidArg:
		return "InvalidArgument"
	case ErrTypeData:
		return "Data"
	case ErrTypeNumerical:
		return "Numerical"
	case ErrTypeNotImplemented:
		return "NotImplemented"
	case ErrTypeFit:
		return "Fit"
	default:
		return "Unknown"
	}
}

// Common error constructors

// NewInvalidArgError creates an invalid argument error
func NewInvalidArgError(op string, message string) error {
	return &CLVError{
		Type:    ErrTypeInvalidArg,
		Op:      op,
		Message: message,
	}
}

// NewDataError creates a malformed-input error
func NewDataError(op string, message string) error {
	return &CLVError{
		Type:    ErrTypeData,
		Op:      op,
		Message: message,
	}
}

// NewNumericalError creates a numerical error
func NewNumericalError(op string, message string) error {
	return &CLVError{
		Type:    ErrTypeNumerical,
		Op:      op,
		Message: message,
	}
}

// NewNotImplementedError creates a not-implemented error
func NewNotImplementedError(op string, message string) error {
	return &CLVError{
		Type:    ErrTypeNotImplemented,
		Op:      op,
		Message: message,
	}
}

// NewFitError creates a fitting error
func NewFitError(op string, message string, err error) error {
	return &CLVError{
		Type:    ErrTypeFit,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// IsNotImplementedError checks if an error is a not-implemented error
func IsNotImplementedError(err error) bool {
	if e, ok := err.(*CLVError); ok {
		return e.Type == ErrTypeNotImplemented
	}
	return false
}

// IsNumericalError checks if an error is a numerical error
func IsNumericalError(err error) bool {
	if e, ok := err.(*CLVError); ok {
		return e.Type == ErrTypeNumerical
	}
	return false
}

// IsDataError checks if an error is a malformed-input error
func IsDataError(err error) bool {
	if e, ok := err.(*CLVError); ok {
		return e.Type == ErrTypeData
	}
	return false
}

// IsInvalidArgError checks if an error is an invalid argument error
func IsInvalidArgError(err error) bool {
	if e, ok := err.(*CLVError); ok {
		return e.Type == ErrTypeInvalidArg
	}
	return false
}
