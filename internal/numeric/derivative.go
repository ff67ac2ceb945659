package numeric

import "gonum.org/v1/gonum/diff/fd"

// DefaultStep is the central difference half-width.
const DefaultStep = 1e-4

// Derivative estimates f'(x) with a central difference (f(x+h) - f(x-h)) / 2h.
// A failed sample or a non-finite estimate yields 0, meaning "no local force".
func Derivative(fn Function, x, h float64) float64 {
	if !IsFinite(h) || h <= 0 {
		h = DefaultStep
	}
	failed := false
	f := func(at float64) float64 {
		if failed {
			return 0
		}
		y, err := Sample(fn, at)
		if err != nil {
			failed = true
			return 0
		}
		return y
	}
	d := fd.Derivative(f, x, &fd.Settings{
		Formula: fd.Central,
		Step:    h,
	})
	if failed || !IsFinite(d) {
		return 0
	}
	return d
}
