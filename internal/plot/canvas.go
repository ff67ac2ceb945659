// Package plot renders functions, descent paths and series as braille text.
package plot

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Canvas is a braille dot grid. Each cell holds 2x4 dots and one color; the
// last color written to a cell wins.
type Canvas struct {
	cols   int
	rows   int
	masks  [][]uint8
	colors [][]lipgloss.Color
}

// NewCanvas returns a blank canvas of cols x rows terminal cells.
func NewCanvas(cols, rows int) *Canvas {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	c := &Canvas{cols: cols, rows: rows}
	c.masks = make([][]uint8, rows)
	c.colors = make([][]lipgloss.Color, rows)
	for y := 0; y < rows; y++ {
		c.masks[y] = make([]uint8, cols)
		c.colors[y] = make([]lipgloss.Color, cols)
	}
	return c
}

// DotSize returns the canvas size in dots.
func (c *Canvas) DotSize() (width, height int) {
	return c.cols * 2, c.rows * 4
}

// Set lights the dot at (x, y). Out-of-range dots are ignored.
func (c *Canvas) Set(x, y int, color lipgloss.Color) {
	if x < 0 || y < 0 {
		return
	}
	cellX, cellY := x/2, y/4
	if cellY >= c.rows || cellX >= c.cols {
		return
	}
	c.masks[cellY][cellX] |= brailleDotMask(x%2, y%4)
	if color != "" {
		c.colors[cellY][cellX] = color
	}
}

// SetF lights the dot nearest to a fractional pixel position.
func (c *Canvas) SetF(x, y float64, color lipgloss.Color) {
	px, py, ok := clampPixel(x, y)
	if !ok {
		return
	}
	c.Set(px, py, color)
}

// Line draws a straight segment between two dots.
func (c *Canvas) Line(x0, y0, x1, y1 int, color lipgloss.Color) {
	drawLine(x0, y0, x1, y1, func(x, y int) {
		c.Set(x, y, color)
	})
}

// LineF draws a segment between fractional pixel positions, clipped to the
// canvas. Segments with a non-finite end are skipped.
func (c *Canvas) LineF(x0, y0, x1, y1 float64, color lipgloss.Color) {
	for _, v := range []float64{x0, y0, x1, y1} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return
		}
	}
	w, h := c.DotSize()
	x0, y0, x1, y1, ok := clipSegment(x0, y0, x1, y1, float64(w), float64(h))
	if !ok {
		return
	}
	ax, ay, _ := clampPixel(x0, y0)
	bx, by, _ := clampPixel(x1, y1)
	c.Line(ax, ay, bx, by, color)
}

// clipSegment clips a segment to [0,w)x[0,h) (Liang-Barsky).
func clipSegment(x0, y0, x1, y1, w, h float64) (float64, float64, float64, float64, bool) {
	dx, dy := x1-x0, y1-y0
	t0, t1 := 0.0, 1.0
	edges := [4][2]float64{
		{-dx, x0},
		{dx, w - 1e-9 - x0},
		{-dy, y0},
		{dy, h - 1e-9 - y0},
	}
	for _, e := range edges {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return 0, 0, 0, 0, false
			}
			continue
		}
		r := q / p
		if p < 0 {
			if r > t1 {
				return 0, 0, 0, 0, false
			}
			if r > t0 {
				t0 = r
			}
		} else {
			if r < t0 {
				return 0, 0, 0, 0, false
			}
			if r < t1 {
				t1 = r
			}
		}
	}
	return x0 + t0*dx, y0 + t0*dy, x0 + t1*dx, y0 + t1*dy, true
}

// Dotted draws a segment lighting every step-th dot.
func (c *Canvas) Dotted(x0, y0, x1, y1, step int, color lipgloss.Color) {
	if step < 1 {
		step = 1
	}
	i := 0
	drawLine(x0, y0, x1, y1, func(x, y int) {
		if i%step == 0 {
			c.Set(x, y, color)
		}
		i++
	})
}

// Mask returns the dot mask of a cell, mainly for tests.
func (c *Canvas) Mask(col, row int) uint8 {
	if row < 0 || row >= c.rows || col < 0 || col >= c.cols {
		return 0
	}
	return c.masks[row][col]
}

// Color returns the color of a cell.
func (c *Canvas) Color(col, row int) lipgloss.Color {
	if row < 0 || row >= c.rows || col < 0 || col >= c.cols {
		return ""
	}
	return c.colors[row][col]
}

// String renders the canvas as rows of braille runes. Colors are applied
// through lipgloss when color is true.
func (c *Canvas) String(color bool) string {
	var out strings.Builder
	for y := 0; y < c.rows; y++ {
		if y > 0 {
			out.WriteByte('\n')
		}
		if !color {
			for x := 0; x < c.cols; x++ {
				out.WriteRune(brailleFromMask(c.masks[y][x]))
			}
			continue
		}
		// Group runs of equal color to keep escape sequences short.
		var run strings.Builder
		var runColor lipgloss.Color
		flush := func() {
			if run.Len() == 0 {
				return
			}
			if runColor == "" {
				out.WriteString(run.String())
			} else {
				out.WriteString(lipgloss.NewStyle().Foreground(runColor).Render(run.String()))
			}
			run.Reset()
		}
		for x := 0; x < c.cols; x++ {
			cellColor := c.colors[y][x]
			if c.masks[y][x] == 0 {
				cellColor = ""
			}
			if cellColor != runColor {
				flush()
				runColor = cellColor
			}
			run.WriteRune(brailleFromMask(c.masks[y][x]))
		}
		flush()
	}
	return out.String()
}

// Keeps far off-canvas coordinates from overflowing int conversion.
const pixelLimit = 1 << 20

func clampPixel(x, y float64) (int, int, bool) {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return 0, 0, false
	}
	x = math.Max(-pixelLimit, math.Min(pixelLimit, x))
	y = math.Max(-pixelLimit, math.Min(pixelLimit, y))
	return int(math.Floor(x)), int(math.Floor(y)), true
}

func drawLine(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := absInt(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -absInt(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			if x0 == x1 {
				break
			}
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			if y0 == y1 {
				break
			}
			err += dx
			y0 += sy
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func brailleDotMask(x, y int) uint8 {
	switch {
	case x == 0 && y == 0:
		return 0x01
	case x == 0 && y == 1:
		return 0x02
	case x == 0 && y == 2:
		return 0x04
	case x == 0 && y == 3:
		return 0x40
	case x == 1 && y == 0:
		return 0x08
	case x == 1 && y == 1:
		return 0x10
	case x == 1 && y == 2:
		return 0x20
	case x == 1 && y == 3:
		return 0x80
	default:
		return 0
	}
}

func brailleFromMask(mask uint8) rune {
	return rune(0x2800 + int(mask))
}
