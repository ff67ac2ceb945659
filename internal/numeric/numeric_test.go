package numeric

import (
	"errors"
	"math"
	"testing"
)

type failingFunc struct{}

func (failingFunc) Evaluate(float64) (float64, error) {
	return 0, errors.New("boom")
}

type panickingFunc struct{}

func (panickingFunc) Evaluate(float64) (float64, error) {
	panic("bad input")
}

func TestSampleFinite(t *testing.T) {
	y, err := Sample(Func(func(x float64) float64 { return x * 3 }), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if y != 6 {
		t.Fatalf("expected 6, got %f", y)
	}
}

func TestSampleNonFinite(t *testing.T) {
	fns := map[string]Function{
		"nan":   Func(func(float64) float64 { return math.NaN() }),
		"inf":   Func(func(x float64) float64 { return 1 / x }),
		"error": failingFunc{},
		"panic": panickingFunc{},
	}
	for name, fn := range fns {
		_, err := Sample(fn, 0)
		if !errors.Is(err, ErrNonFinite) {
			t.Fatalf("%s: expected ErrNonFinite, got %v", name, err)
		}
		var evalErr *EvalError
		if !errors.As(err, &evalErr) {
			t.Fatalf("%s: expected EvalError, got %T", name, err)
		}
		if evalErr.X != 0 {
			t.Fatalf("%s: expected x=0 in error, got %f", name, evalErr.X)
		}
	}
}

func TestDerivativeOfSquare(t *testing.T) {
	square := Func(func(x float64) float64 { return x * x })
	for x := -5.0; x <= 5.0; x += 0.25 {
		got := Derivative(square, x, DefaultStep)
		if math.Abs(got-2*x) > 1e-3 {
			t.Fatalf("derivative at %f: expected %f, got %f", x, 2*x, got)
		}
	}
}

func TestDerivativeMatchesCentralDifference(t *testing.T) {
	cube := Func(func(x float64) float64 { return x * x * x })
	h := 1e-2
	x := 1.5
	want := (cube(x+h) - cube(x-h)) / (2 * h)
	if got := Derivative(cube, x, h); math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %f, got %f", want, got)
	}
}

func TestDerivativeFallsBackToZero(t *testing.T) {
	if got := Derivative(failingFunc{}, 1, DefaultStep); got != 0 {
		t.Fatalf("expected 0 for failing function, got %f", got)
	}
	sqrt := Func(math.Sqrt)
	if got := Derivative(sqrt, 0, DefaultStep); got != 0 {
		t.Fatalf("expected 0 when one side is NaN, got %f", got)
	}
}

func TestDerivativeInvalidStepUsesDefault(t *testing.T) {
	square := Func(func(x float64) float64 { return x * x })
	if got := Derivative(square, 3, 0); math.Abs(got-6) > 1e-6 {
		t.Fatalf("expected 6, got %f", got)
	}
}
