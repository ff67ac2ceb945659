// Package expr compiles single-variable expressions into evaluable functions.
package expr

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Knetic/govaluate"
)

// Variable is the only free variable an expression may reference.
const Variable = "x"

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

// ErrEmpty is returned for blank expression text.
var ErrEmpty = errors.New("expression is empty")

// CompileError reports malformed expression text.
type CompileError struct {
	Source string
	Err    error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("invalid expression %q: %v", e.Source, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// Compiled is an immutable compiled expression of x.
type Compiled struct {
	source string
	expr   *govaluate.EvaluableExpression
	params map[string]interface{}
}

// Compile parses source. "^" and "**" are right-associative exponentiation
// binding tighter than a leading minus, so -x^2 is -(x^2). Scientific
// literals such as 1e-3 are accepted.
func Compile(source string) (*Compiled, error) {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return nil, &CompileError{Source: source, Err: ErrEmpty}
	}
	normalized, err := normalize(trimmed)
	if err != nil {
		return nil, &CompileError{Source: trimmed, Err: err}
	}
	parsed, err := govaluate.NewEvaluableExpressionWithFunctions(normalized, functions)
	if err != nil {
		return nil, &CompileError{Source: trimmed, Err: err}
	}
	for _, name := range parsed.Vars() {
		if name == Variable {
			continue
		}
		if _, ok := constants[name]; ok {
			continue
		}
		return nil, &CompileError{Source: trimmed, Err: fmt.Errorf("unknown variable %q (only %s is allowed)", name, Variable)}
	}
	params := make(map[string]interface{}, len(constants)+1)
	for name, v := range constants {
		params[name] = v
	}
	params[Variable] = 0.0
	return &Compiled{source: trimmed, expr: parsed, params: params}, nil
}

// Source returns the expression text as submitted (trimmed).
func (c *Compiled) Source() string {
	return c.source
}

// Evaluate computes f(x). Evaluator failures, including panics, are returned as errors.
func (c *Compiled) Evaluate(x float64) (y float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			y = math.NaN()
			err = fmt.Errorf("evaluation panicked: %v", r)
		}
	}()
	c.params[Variable] = x
	v, err := c.expr.Evaluate(c.params)
	if err != nil {
		return math.NaN(), err
	}
	return toFloat(v)
}

// Functions lists the function names available in expressions.
func Functions() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var functions = map[string]govaluate.ExpressionFunction{
	"sin":   unary(math.Sin),
	"cos":   unary(math.Cos),
	"tan":   unary(math.Tan),
	"asin":  unary(math.Asin),
	"acos":  unary(math.Acos),
	"atan":  unary(math.Atan),
	"sinh":  unary(math.Sinh),
	"cosh":  unary(math.Cosh),
	"tanh":  unary(math.Tanh),
	"exp":   unary(math.Exp),
	"log":   unary(math.Log),
	"ln":    unary(math.Log),
	"log10": unary(math.Log10),
	"log2":  unary(math.Log2),
	"sqrt":  unary(math.Sqrt),
	"abs":   unary(math.Abs),
	"floor": unary(math.Floor),
	"ceil":  unary(math.Ceil),
	"sign":  unary(sign),
	"pow":   binary(math.Pow),
	"min":   binary(math.Min),
	"max":   binary(math.Max),
}

func unary(fn func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		a, err := toFloat(args[0])
		if err != nil {
			return nil, err
		}
		return fn(a), nil
	}
}

func binary(fn func(float64, float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("expected 2 arguments, got %d", len(args))
		}
		a, err := toFloat(args[0])
		if err != nil {
			return nil, err
		}
		b, err := toFloat(args[1])
		if err != nil {
			return nil, err
		}
		return fn(a, b), nil
	}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return v
	}
}

func toFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	default:
		return math.NaN(), fmt.Errorf("expression did not return a number: %T", v)
	}
}
