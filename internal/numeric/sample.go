// Package numeric wraps function evaluation and numerical differentiation.
package numeric

import (
	"errors"
	"fmt"
	"math"
)

// ErrNonFinite matches every failed sample: NaN, ±Inf or an evaluator error.
var ErrNonFinite = errors.New("non-finite sample")

// Function is the evaluation capability the engine depends on.
type Function interface {
	Evaluate(x float64) (float64, error)
}

// Func adapts a plain function to Function.
type Func func(float64) float64

// Evaluate implements Function.
func (f Func) Evaluate(x float64) (float64, error) {
	return f(x), nil
}

// EvalError describes a sample that did not produce a finite value.
type EvalError struct {
	X     float64
	Value float64
	Cause error
}

func (e *EvalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cannot evaluate function at x=%g: %v", e.X, e.Cause)
	}
	return fmt.Sprintf("function is not finite at x=%g (got %g)", e.X, e.Value)
}

// Is makes every EvalError match ErrNonFinite.
func (e *EvalError) Is(target error) bool {
	return target == ErrNonFinite
}

func (e *EvalError) Unwrap() error {
	return e.Cause
}

// Sample evaluates fn at x and returns the value only when it is finite.
// Panics raised by fn are converted into an EvalError.
func Sample(fn Function, x float64) (y float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			y = math.NaN()
			err = &EvalError{X: x, Value: math.NaN(), Cause: fmt.Errorf("panic: %v", r)}
		}
	}()
	v, evalErr := fn.Evaluate(x)
	if evalErr != nil {
		return math.NaN(), &EvalError{X: x, Value: v, Cause: evalErr}
	}
	if !IsFinite(v) {
		return math.NaN(), &EvalError{X: x, Value: v}
	}
	return v, nil
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
