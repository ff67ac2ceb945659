package plot

import (
	"math"

	"github.com/verte-zerg/tuigrad/internal/model"
	"github.com/verte-zerg/tuigrad/internal/numeric"
	"github.com/verte-zerg/tuigrad/internal/viewport"
)

const (
	// Minimum spacing in dots between integer grid lines.
	minGridSpacing = 6
	// Off-screen cutoff for curve samples, in pixels beyond the canvas edge.
	curveMargin = 1000
)

// Scene is everything drawn on the function canvas.
type Scene struct {
	Mapper    *viewport.Mapper
	Curve     [][]viewport.Pixel
	Path      []model.PathPoint
	Crosshair *viewport.Pixel
}

// Draw paints the scene onto a canvas sized to the mapper: grid, axes,
// curve, path segments and path points, in that order.
func Draw(s Scene) *Canvas {
	w, h := s.Mapper.Size()
	c := NewCanvas((w+1)/2, (h+3)/4)
	drawGrid(c, s.Mapper)
	drawAxes(c, s.Mapper)
	for _, seg := range s.Curve {
		if len(seg) == 1 {
			c.SetF(seg[0].X, seg[0].Y, CurveColor)
			continue
		}
		for i := 1; i < len(seg); i++ {
			c.LineF(seg[i-1].X, seg[i-1].Y, seg[i].X, seg[i].Y, CurveColor)
		}
	}
	drawPath(c, s.Mapper, s.Path)
	if s.Crosshair != nil {
		drawCrosshair(c, *s.Crosshair)
	}
	return c
}

// Render draws the scene and returns it as text.
func Render(s Scene, color bool) string {
	return Draw(s).String(color)
}

// SampleCurve samples fn once per pixel column of m and returns the visible
// polyline pieces in pixel coordinates. Non-finite samples and samples far
// off screen split the curve.
func SampleCurve(fn numeric.Function, m *viewport.Mapper) [][]viewport.Pixel {
	w, h := m.Size()
	var segments [][]viewport.Pixel
	var current []viewport.Pixel
	flush := func() {
		if len(current) > 0 {
			segments = append(segments, current)
			current = nil
		}
	}
	for px := 0; px < w; px++ {
		y, err := numeric.Sample(fn, m.ToMathX(float64(px)))
		if err != nil {
			flush()
			continue
		}
		py := m.ToPixelY(y)
		if py < -curveMargin || py > float64(h)+curveMargin {
			flush()
			continue
		}
		current = append(current, viewport.Pixel{X: float64(px), Y: py})
	}
	flush()
	return segments
}

func drawGrid(c *Canvas, m *viewport.Mapper) {
	w, h := m.Size()
	b := m.Bounds()
	if float64(w)/(b.XMax-b.XMin) >= minGridSpacing {
		for x := math.Ceil(b.XMin); x <= b.XMax; x++ {
			if x == 0 {
				continue
			}
			px := int(math.Floor(m.ToPixelX(x)))
			c.Dotted(px, 0, px, h-1, 3, GridColor)
		}
	}
	if float64(h)/(b.YMax-b.YMin) >= minGridSpacing {
		for y := math.Ceil(b.YMin); y <= b.YMax; y++ {
			if y == 0 {
				continue
			}
			py := int(math.Floor(m.ToPixelY(y)))
			c.Dotted(0, py, w-1, py, 3, GridColor)
		}
	}
}

func drawAxes(c *Canvas, m *viewport.Mapper) {
	w, h := m.Size()
	b := m.Bounds()
	if b.YMin <= 0 && b.YMax >= 0 {
		py := int(math.Floor(m.ToPixelY(0)))
		c.Line(0, py, w-1, py, AxisColor)
	}
	if b.XMin <= 0 && b.XMax >= 0 {
		px := int(math.Floor(m.ToPixelX(0)))
		c.Line(px, 0, px, h-1, AxisColor)
	}
}

func drawPath(c *Canvas, m *viewport.Mapper, path []model.PathPoint) {
	n := len(path)
	if n == 0 {
		return
	}
	pixels := make([]viewport.Pixel, n)
	for i, p := range path {
		pixels[i] = m.ToPixel(p)
	}
	for i := 1; i < n; i++ {
		c.LineF(pixels[i-1].X, pixels[i-1].Y, pixels[i].X, pixels[i].Y, GradientColor(i-1, n).Lipgloss())
	}
	for i, p := range pixels {
		color := PathColor(i, n).Lipgloss()
		// A 2x2 dot block keeps points visible on top of segments.
		for dx := 0.0; dx < 2; dx++ {
			for dy := 0.0; dy < 2; dy++ {
				c.SetF(p.X-0.5+dx, p.Y-0.5+dy, color)
			}
		}
	}
}

func drawCrosshair(c *Canvas, p viewport.Pixel) {
	w, h := c.DotSize()
	px, py, ok := clampPixel(p.X, p.Y)
	if !ok {
		return
	}
	c.Dotted(px, 0, px, h-1, 2, CrosshairColor)
	c.Dotted(0, py, w-1, py, 2, CrosshairColor)
}
