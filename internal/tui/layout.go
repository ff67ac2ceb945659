package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

// fitLines pads every line to width and crops or pads to exactly height lines.
func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

// truncateLine cuts plain text to width terminal cells.
func truncateLine(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}

// canvasLayout splits a terminal of width x height cells into the plot area
// and the side panel.
type canvasLayout struct {
	cols  int
	rows  int
	panel int
}

func layoutFor(width, height int) canvasLayout {
	panel := panelWidth
	if width-panel < minCanvasCols {
		panel = 0
	}
	cols := width - panel
	if cols < minCanvasCols {
		cols = minCanvasCols
	}
	rows := height - headerHeight - footerHeight
	if rows < minCanvasRows {
		rows = minCanvasRows
	}
	return canvasLayout{cols: cols, rows: rows, panel: panel}
}

// pixelSize is the canvas size in braille dots.
func (l canvasLayout) pixelSize() (int, int) {
	return l.cols * 2, l.rows * 4
}
