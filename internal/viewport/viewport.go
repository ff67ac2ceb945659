// Package viewport maps between canvas pixels and mathematical coordinates.
package viewport

import (
	"errors"
	"fmt"
	"math"

	"github.com/verte-zerg/tuigrad/internal/model"
)

// Discrete zoom factors used by zoom-in/zoom-out actions and the mouse wheel.
const (
	ZoomInFactor       = 0.8
	ZoomOutFactor      = 1.25
	WheelInFactor      = 0.9
	WheelOutFactor     = 1.1
	minRange           = 1e-9
	maxRange           = 1e12
	defaultCanvasWidth = 160
	defaultCanvasHgt   = 96
)

// ErrInvalidZoom is returned for unusable zoom factors or resulting windows.
var ErrInvalidZoom = errors.New("viewport: invalid zoom")

// ErrInvalidBounds is returned when min >= max on either axis.
var ErrInvalidBounds = errors.New("viewport: invalid bounds")

// Bounds is the visible mathematical rectangle.
type Bounds struct {
	XMin float64
	XMax float64
	YMin float64
	YMax float64
}

// DefaultBounds returns the [-10,10]x[-10,10] window.
func DefaultBounds() Bounds {
	return Bounds{XMin: -10, XMax: 10, YMin: -10, YMax: 10}
}

// Validate checks the min < max invariant on both axes.
func (b Bounds) Validate() error {
	for _, v := range []float64{b.XMin, b.XMax, b.YMin, b.YMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", ErrInvalidBounds)
		}
	}
	if b.XMin >= b.XMax {
		return fmt.Errorf("%w: x-min %g must be < x-max %g", ErrInvalidBounds, b.XMin, b.XMax)
	}
	if b.YMin >= b.YMax {
		return fmt.Errorf("%w: y-min %g must be < y-max %g", ErrInvalidBounds, b.YMin, b.YMax)
	}
	return nil
}

// Pixel is a canvas position. Pixels are fractional so conversions round-trip.
type Pixel struct {
	X float64
	Y float64
}

// Mapper owns the current window and the fixed canvas size.
type Mapper struct {
	bounds   Bounds
	defaults Bounds
	width    float64
	height   float64
}

// New returns a mapper showing defaults on a width x height pixel canvas.
func New(defaults Bounds, width, height int) (*Mapper, error) {
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	m := &Mapper{bounds: defaults, defaults: defaults}
	m.Resize(width, height)
	return m, nil
}

// Bounds returns the current window.
func (m *Mapper) Bounds() Bounds {
	return m.bounds
}

// Size returns the canvas size in pixels.
func (m *Mapper) Size() (width, height int) {
	return int(m.width), int(m.height)
}

// Resize changes the canvas size. Non-positive sizes fall back to defaults.
func (m *Mapper) Resize(width, height int) {
	if width <= 0 {
		width = defaultCanvasWidth
	}
	if height <= 0 {
		height = defaultCanvasHgt
	}
	m.width = float64(width)
	m.height = float64(height)
}

// ToPixelX converts a math x to a pixel column.
func (m *Mapper) ToPixelX(x float64) float64 {
	b := m.bounds
	return (x - b.XMin) / (b.XMax - b.XMin) * m.width
}

// ToPixelY converts a math y to a pixel row; the y axis grows downward on screen.
func (m *Mapper) ToPixelY(y float64) float64 {
	b := m.bounds
	return m.height - (y-b.YMin)/(b.YMax-b.YMin)*m.height
}

// ToMathX converts a pixel column to a math x.
func (m *Mapper) ToMathX(px float64) float64 {
	b := m.bounds
	return b.XMin + px/m.width*(b.XMax-b.XMin)
}

// ToMathY converts a pixel row to a math y.
func (m *Mapper) ToMathY(py float64) float64 {
	b := m.bounds
	return b.YMax - py/m.height*(b.YMax-b.YMin)
}

// ToPixel converts a math point to a pixel.
func (m *Mapper) ToPixel(p model.Point) Pixel {
	return Pixel{X: m.ToPixelX(p.X), Y: m.ToPixelY(p.Y)}
}

// ToMath converts a pixel to a math point.
func (m *Mapper) ToMath(p Pixel) model.Point {
	return model.Point{X: m.ToMathX(p.X), Y: m.ToMathY(p.Y)}
}

// Zoom rescales the window by factor around (cx, cy). Factors below 1 zoom in.
func (m *Mapper) Zoom(factor, cx, cy float64) error {
	if err := checkFactor(factor); err != nil {
		return err
	}
	rangeX := (m.bounds.XMax - m.bounds.XMin) * factor
	rangeY := (m.bounds.YMax - m.bounds.YMin) * factor
	next := Bounds{
		XMin: cx - rangeX/2,
		XMax: cx + rangeX/2,
		YMin: cy - rangeY/2,
		YMax: cy + rangeY/2,
	}
	return m.apply(next)
}

// ZoomAt rescales the window so the math point under pixel stays under it.
func (m *Mapper) ZoomAt(factor float64, pixel Pixel) error {
	if err := checkFactor(factor); err != nil {
		return err
	}
	mouse := m.ToMath(pixel)
	rangeX := m.bounds.XMax - m.bounds.XMin
	rangeY := m.bounds.YMax - m.bounds.YMin
	ratioX := (mouse.X - m.bounds.XMin) / rangeX
	ratioY := (mouse.Y - m.bounds.YMin) / rangeY
	newRangeX := rangeX * factor
	newRangeY := rangeY * factor
	next := Bounds{
		XMin: mouse.X - newRangeX*ratioX,
		XMax: mouse.X + newRangeX*(1-ratioX),
		YMin: mouse.Y - newRangeY*ratioY,
		YMax: mouse.Y + newRangeY*(1-ratioY),
	}
	return m.apply(next)
}

// Pan shifts the window by a pixel delta. Positive dx moves the view right,
// positive dy moves it down.
func (m *Mapper) Pan(dx, dy float64) {
	shiftX := dx / m.width * (m.bounds.XMax - m.bounds.XMin)
	shiftY := dy / m.height * (m.bounds.YMax - m.bounds.YMin)
	m.bounds.XMin += shiftX
	m.bounds.XMax += shiftX
	m.bounds.YMin -= shiftY
	m.bounds.YMax -= shiftY
}

// Reset restores the default window exactly.
func (m *Mapper) Reset() {
	m.bounds = m.defaults
}

func (m *Mapper) apply(next Bounds) error {
	if err := next.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidZoom, err)
	}
	rx := next.XMax - next.XMin
	ry := next.YMax - next.YMin
	if rx < minRange || ry < minRange || rx > maxRange || ry > maxRange {
		return fmt.Errorf("%w: window range out of limits", ErrInvalidZoom)
	}
	m.bounds = next
	return nil
}

func checkFactor(factor float64) error {
	if math.IsNaN(factor) || math.IsInf(factor, 0) || factor <= 0 {
		return fmt.Errorf("%w: factor %g", ErrInvalidZoom, factor)
	}
	return nil
}
