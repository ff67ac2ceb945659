package plot

import (
	"fmt"
	"math"

	"github.com/charmbracelet/lipgloss"
)

// Fixed colors of the rendered scene.
const (
	GridColor      = lipgloss.Color("#303030")
	AxisColor      = lipgloss.Color("#8C8C8C")
	CurveColor     = lipgloss.Color("#F0F0F0")
	CrosshairColor = lipgloss.Color("#C89A3A")
)

// RGB is an 8-bit color.
type RGB struct {
	R, G, B uint8
}

// Hex returns the color as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Lipgloss returns the color for styling.
func (c RGB) Lipgloss() lipgloss.Color {
	return lipgloss.Color(c.Hex())
}

// StartColor and EndColor mark the seed and the current point of a path.
var (
	StartColor = RGB{G: 255}
	EndColor   = RGB{R: 255}
)

// Gradient endpoints, keyed by i/(n-1).
var (
	pathFrom = RGB{R: 255, G: 0, B: 76}
	pathTo   = RGB{R: 0, G: 255, B: 249}
)

// PathColor returns the color of point i of an n-point path. The first point
// is StartColor and the last point of a multi-point path is EndColor; the rest
// follow GradientColor.
func PathColor(i, n int) RGB {
	if i == 0 {
		return StartColor
	}
	if n > 1 && i == n-1 {
		return EndColor
	}
	return GradientColor(i, n)
}

// GradientColor is the unforced path gradient at index i of n. Segments use it
// directly.
func GradientColor(i, n int) RGB {
	ratio := 0.0
	if n > 1 {
		ratio = float64(i) / float64(n-1)
	}
	return lerp(pathFrom, pathTo, ratio)
}

// lerp truncates channels toward zero.
func lerp(a, b RGB, t float64) RGB {
	t = math.Max(0, math.Min(1, t))
	mix := func(x, y uint8) uint8 {
		return uint8(math.Floor(float64(x)*(1-t) + float64(y)*t))
	}
	return RGB{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B)}
}
