package plot

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// Series is a named sequence of values, one per iteration.
type Series struct {
	Name   string
	Values []float64
}

type valueRange struct {
	min float64
	max float64
}

type lineStyle struct {
	name   string
	period int
	on     int
}

const (
	defaultSeriesHeight = 10
	minSeriesWidth      = 10
	axisLabelWidth      = 9
	axisSeparator       = " │ "
	colorReset          = "\x1b[0m"
	terminalWidthBackup = 80
)

var lineStyles = []lineStyle{
	{name: "solid", period: 1, on: 1},
	{name: "dashed", period: 6, on: 3},
	{name: "dotted", period: 4, on: 1},
}

var seriesColors = []string{
	"\x1b[36m",
	"\x1b[35m",
	"\x1b[33m",
	"\x1b[32m",
}

// PlotSeries writes a braille line chart of series. Each series is scaled to
// its own range; the axis shows the range of the first one.
func PlotSeries(w io.Writer, title string, series []Series, width, height int) error {
	return plotSeries(w, title, series, width, height, false)
}

// PlotSeriesWithColor is PlotSeries with color forced on.
func PlotSeriesWithColor(w io.Writer, title string, series []Series, width, height int, forceColor bool) error {
	return plotSeries(w, title, series, width, height, forceColor)
}

func plotSeries(w io.Writer, title string, series []Series, width, height int, forceColor bool) error {
	series = finiteSeries(series)
	if len(series) == 0 {
		return nil
	}
	if height <= 0 {
		height = defaultSeriesHeight
	}
	if width <= 0 {
		width = PlotWidthFor(TerminalWidth())
	}
	if width < minSeriesWidth {
		width = minSeriesWidth
	}

	ranges := make([]valueRange, len(series))
	canvases := make([]*Canvas, len(series))
	for si, s := range series {
		values := resampleSeries(s.Values, width*2)
		r := rangeOf(values)
		ranges[si] = r
		c := NewCanvas(width, height)
		style := lineStyles[si%len(lineStyles)]
		prevX, prevY := -1, -1
		for x, v := range values {
			y := valueToDot(v, r, height*4)
			if prevX >= 0 {
				drawLine(prevX, prevY, x, y, func(dx, dy int) {
					if style.shouldPlot(dx) {
						c.Set(dx, dy, "")
					}
				})
			} else {
				c.Set(x, y, "")
			}
			prevX, prevY = x, y
		}
		canvases[si] = c
	}

	useColor := shouldUseColor(w, forceColor)
	labels := axisLabels(ranges[0], height)

	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	for i, s := range series {
		if _, err := fmt.Fprintf(w, "%s: min=%.4g max=%.4g\n", s.Name, ranges[i].min, ranges[i].max); err != nil {
			return err
		}
	}
	for y := 0; y < height; y++ {
		var row strings.Builder
		fmt.Fprintf(&row, "%*s%s", axisLabelWidth, labels[y], axisSeparator)
		for x := 0; x < width; x++ {
			var mask uint8
			owner := -1
			for si, c := range canvases {
				m := c.Mask(x, y)
				if m == 0 {
					continue
				}
				if owner < 0 {
					owner = si
				}
				mask |= m
			}
			ch := brailleFromMask(mask)
			if useColor && owner >= 0 {
				row.WriteString(seriesColors[owner%len(seriesColors)])
				row.WriteRune(ch)
				row.WriteString(colorReset)
				continue
			}
			row.WriteRune(ch)
		}
		if _, err := fmt.Fprintln(w, row.String()); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, legend(series, useColor)); err != nil {
		return err
	}
	return nil
}

// finiteSeries drops empty series and non-finite values.
func finiteSeries(series []Series) []Series {
	out := make([]Series, 0, len(series))
	for _, s := range series {
		values := make([]float64, 0, len(s.Values))
		for _, v := range s.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			values = append(values, v)
		}
		if len(values) == 0 {
			continue
		}
		out = append(out, Series{Name: s.Name, Values: values})
	}
	return out
}

// PlotWidthFor returns the chart width in cells that fits totalWidth columns.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minSeriesWidth
	}
	width := totalWidth - axisLabelWidth - utf8.RuneCountInString(axisSeparator)
	if width < minSeriesWidth {
		width = minSeriesWidth
	}
	return width
}

// TerminalWidth returns the stdout width, or 80 when it is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

// ColorEnabled reports whether w should receive ANSI colors.
func ColorEnabled(w io.Writer) bool {
	return shouldUseColor(w, false)
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func axisLabels(r valueRange, height int) []string {
	labels := make([]string, height)
	labels[0] = formatTick(r.max)
	if height > 2 {
		labels[height/2] = formatTick((r.min + r.max) / 2)
	}
	if height > 1 {
		labels[height-1] = formatTick(r.min)
	}
	return labels
}

func formatTick(v float64) string {
	s := fmt.Sprintf("%.4g", v)
	if len(s) > axisLabelWidth {
		s = fmt.Sprintf("%.2e", v)
	}
	return s
}

func (ls lineStyle) shouldPlot(x int) bool {
	if ls.period <= 1 {
		return true
	}
	return absInt(x)%ls.period < ls.on
}

// resampleSeries stretches or averages values to exactly width samples.
func resampleSeries(values []float64, width int) []float64 {
	if len(values) == 0 || width <= 0 {
		return nil
	}
	out := make([]float64, width)
	switch {
	case len(values) == width:
		copy(out, values)
	case len(values) > width:
		for i := 0; i < width; i++ {
			start := i * len(values) / width
			end := (i + 1) * len(values) / width
			if end <= start {
				end = start + 1
			}
			var sum float64
			for _, v := range values[start:end] {
				sum += v
			}
			out[i] = sum / float64(end-start)
		}
	case len(values) == 1 || width == 1:
		for i := range out {
			out[i] = values[0]
		}
	default:
		for i := 0; i < width; i++ {
			pos := float64(i) * float64(len(values)-1) / float64(width-1)
			idx := int(pos)
			if idx >= len(values)-1 {
				out[i] = values[len(values)-1]
				continue
			}
			frac := pos - float64(idx)
			out[i] = values[idx]*(1-frac) + values[idx+1]*frac
		}
	}
	return out
}

func rangeOf(values []float64) valueRange {
	r := valueRange{min: math.Inf(1), max: math.Inf(-1)}
	for _, v := range values {
		r.min = math.Min(r.min, v)
		r.max = math.Max(r.max, v)
	}
	if math.IsInf(r.min, 0) || math.IsInf(r.max, 0) {
		return valueRange{min: -1, max: 1}
	}
	if r.max-r.min < 1e-12 {
		r.min--
		r.max++
	}
	return r
}

func valueToDot(v float64, r valueRange, dots int) int {
	if dots <= 1 {
		return 0
	}
	pos := (v - r.min) / (r.max - r.min)
	row := int(math.Round((1 - pos) * float64(dots-1)))
	if row < 0 {
		return 0
	}
	if row >= dots {
		return dots - 1
	}
	return row
}

func legend(series []Series, useColor bool) string {
	parts := make([]string, 0, len(series))
	marker := brailleFromMask(0x01)
	for i, s := range series {
		label := fmt.Sprintf("%c %s (%s)", marker, s.Name, lineStyles[i%len(lineStyles)].name)
		if useColor {
			label = seriesColors[i%len(seriesColors)] + label + colorReset
		}
		parts = append(parts, label)
	}
	return "Legend: " + strings.Join(parts, "  ")
}
