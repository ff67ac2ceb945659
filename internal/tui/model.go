// Package tui provides the Bubble Tea gradient descent interface.
package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/verte-zerg/tuigrad/internal/animation"
	"github.com/verte-zerg/tuigrad/internal/generator"
	"github.com/verte-zerg/tuigrad/internal/plot"
	"github.com/verte-zerg/tuigrad/internal/presets"
	"github.com/verte-zerg/tuigrad/internal/session"
	"github.com/verte-zerg/tuigrad/internal/viewport"
)

const (
	headerHeight  = 1
	footerHeight  = 2
	panelWidth    = 36
	minCanvasCols = 20
	minCanvasRows = 6
	chartHeight   = 6
	lrFactor      = 1.25
	intervalStep  = 10 * time.Millisecond
	minInterval   = 10 * time.Millisecond
	// Fraction of the canvas moved by one pan key press.
	panFraction = 0.1
)

type mode int

const (
	modeNormal mode = iota
	modeExpression
	modeSettings
)

const helpText = "e edit  p preset  space run/pause  r reset  click/enter seed  g random  +/-/0 zoom  hjkl pan  [/] lr  ,/. speed  o settings  q quit"

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	graphStyle  = lipgloss.NewStyle().Foreground(plot.CurveColor)
	panelStyle  = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#4A4A4A")).
			Padding(0, 1)
)

// Options configures the interactive model.
type Options struct {
	// Presets are cycled with the preset key. The first one is plotted when
	// Expression is empty.
	Presets    []string
	Expression string
	Generator  *generator.Generator
	Color      bool
}

// Model implements the Bubble Tea descent UI.
type Model struct {
	sess    *session.Session
	presets *presets.Cycle
	gen     *generator.Generator
	color   bool

	width  int
	height int
	layout canvasLayout

	mode           mode
	exprInput      textinput.Model
	settingsInputs []textinput.Model
	settingsIndex  int
	settingsError  string

	crosshair *viewport.Pixel
}

// NewModel constructs a UI model around sess and plots the initial function.
func NewModel(sess *session.Session, opts Options) *Model {
	gen := opts.Generator
	if gen == nil {
		gen = generator.New()
	}
	m := &Model{
		sess:    sess,
		presets: presets.NewCycle(opts.Presets),
		gen:     gen,
		color:   opts.Color,
	}
	m.exprInput = newInput("f(x) = ")
	m.exprInput.Placeholder = "x^2 - 4*x"
	m.exprInput.CharLimit = 256
	m.settingsInputs = []textinput.Model{
		newInput("Learning rate: "),
		newInput("Interval (ms): "),
	}
	expression := strings.TrimSpace(opts.Expression)
	if expression == "" {
		expression = m.presets.Next()
	}
	if expression != "" {
		// A bad initial expression leaves the notice set and no function plotted.
		_ = m.sess.Plot(expression)
	}
	return m
}

func newInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case animation.TickMsg:
		return m, m.sess.HandleTick(msg)
	case tea.MouseMsg:
		m.handleMouse(msg)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.mode {
		case modeExpression:
			return m.updateExpression(msg)
		case modeSettings:
			return m.updateSettings(msg)
		default:
			return m.updateNormal(msg)
		}
	default:
		return m, m.updateFocusedInput(msg)
	}
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.layout = layoutFor(width, height)
	m.sess.Resize(m.layout.pixelSize())
	if m.crosshair != nil {
		m.moveCrosshair(0, 0)
	}
}

func (m *Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeySpace {
		return m, m.toggle()
	}
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case " ", "s":
		return m, m.toggle()
	case "e":
		return m, m.startExpression()
	case "o":
		return m, m.startSettings()
	case "p":
		m.nextPreset()
	case "r":
		m.sess.Reset()
	case "+", "=":
		_ = m.sess.ZoomIn()
	case "-":
		_ = m.sess.ZoomOut()
	case "0":
		m.sess.ZoomReset()
	case "up":
		m.moveCrosshair(0, -4)
	case "down":
		m.moveCrosshair(0, 4)
	case "left":
		m.moveCrosshair(-2, 0)
	case "right":
		m.moveCrosshair(2, 0)
	case "enter":
		m.seedAtCrosshair()
	case "esc":
		m.crosshair = nil
	case "g":
		_ = m.sess.SeedRandom(m.gen)
	case "h":
		m.pan(-1, 0)
	case "l":
		m.pan(1, 0)
	case "k":
		m.pan(0, -1)
	case "j":
		m.pan(0, 1)
	case "[":
		_ = m.sess.SetLearningRate(m.sess.Config().LearningRate / lrFactor)
	case "]":
		_ = m.sess.SetLearningRate(m.sess.Config().LearningRate * lrFactor)
	case ",":
		m.shiftInterval(-intervalStep)
	case ".":
		m.shiftInterval(intervalStep)
	}
	return m, nil
}

func (m *Model) toggle() tea.Cmd {
	cmd, err := m.sess.Toggle()
	if err != nil {
		return nil
	}
	return cmd
}

func (m *Model) nextPreset() {
	if m.presets.Len() == 0 {
		return
	}
	_ = m.sess.Plot(m.presets.Next())
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	if m.mode != modeNormal || msg.Action != tea.MouseActionPress {
		return
	}
	p, ok := m.cellToPixel(msg.X, msg.Y)
	if !ok {
		return
	}
	switch msg.Button {
	case tea.MouseButtonLeft:
		_ = m.sess.Click(p)
	case tea.MouseButtonWheelUp:
		_ = m.sess.Wheel(p, true)
	case tea.MouseButtonWheelDown:
		_ = m.sess.Wheel(p, false)
	}
}

// cellToPixel maps a terminal cell to the braille dot at its center.
func (m *Model) cellToPixel(x, y int) (viewport.Pixel, bool) {
	row := y - headerHeight
	if m.layout.cols == 0 || x < 0 || x >= m.layout.cols || row < 0 || row >= m.layout.rows {
		return viewport.Pixel{}, false
	}
	return viewport.Pixel{X: float64(x)*2 + 1, Y: float64(row)*4 + 2}, true
}

func (m *Model) moveCrosshair(dx, dy float64) {
	w, h := m.sess.Mapper().Size()
	if m.crosshair == nil {
		m.crosshair = &viewport.Pixel{X: float64(w / 2), Y: float64(h / 2)}
	}
	m.crosshair.X = clamp(m.crosshair.X+dx, 0, float64(w-1))
	m.crosshair.Y = clamp(m.crosshair.Y+dy, 0, float64(h-1))
}

func (m *Model) seedAtCrosshair() {
	if m.crosshair == nil {
		m.moveCrosshair(0, 0)
	}
	_ = m.sess.Click(*m.crosshair)
}

func (m *Model) pan(dx, dy float64) {
	w, h := m.sess.Mapper().Size()
	m.sess.Pan(dx*panFraction*float64(w), dy*panFraction*float64(h))
}

func (m *Model) shiftInterval(delta time.Duration) {
	next := m.sess.Config().StepInterval + delta
	if next < minInterval {
		next = minInterval
	}
	_ = m.sess.SetStepInterval(next)
}

func (m *Model) startExpression() tea.Cmd {
	m.mode = modeExpression
	if fn := m.sess.Function(); fn != nil {
		m.exprInput.SetValue(fn.Source())
	} else {
		m.exprInput.SetValue("")
	}
	m.exprInput.CursorEnd()
	return m.exprInput.Focus()
}

func (m *Model) updateExpression(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeNormal
		m.exprInput.Blur()
		return m, nil
	case tea.KeyEnter:
		if err := m.sess.Plot(m.exprInput.Value()); err != nil {
			return m, nil
		}
		m.mode = modeNormal
		m.exprInput.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.exprInput, cmd = m.exprInput.Update(msg)
	return m, cmd
}

func (m *Model) startSettings() tea.Cmd {
	m.mode = modeSettings
	m.settingsError = ""
	cfg := m.sess.Config()
	m.settingsInputs[0].SetValue(strconv.FormatFloat(cfg.LearningRate, 'g', -1, 64))
	m.settingsInputs[1].SetValue(strconv.FormatInt(cfg.StepInterval.Milliseconds(), 10))
	return m.setSettingsIndex(0)
}

func (m *Model) updateSettings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closeSettings()
		return m, nil
	case tea.KeyEnter:
		if err := m.applySettings(); err != nil {
			m.settingsError = err.Error()
			return m, nil
		}
		m.closeSettings()
		return m, nil
	case tea.KeyTab:
		return m, m.setSettingsIndex(m.settingsIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setSettingsIndex(m.settingsIndex - 1)
	}
	var cmd tea.Cmd
	m.settingsInputs[m.settingsIndex], cmd = m.settingsInputs[m.settingsIndex].Update(msg)
	return m, cmd
}

func (m *Model) closeSettings() {
	m.mode = modeNormal
	m.settingsError = ""
	for i := range m.settingsInputs {
		m.settingsInputs[i].Blur()
	}
}

func (m *Model) setSettingsIndex(idx int) tea.Cmd {
	count := len(m.settingsInputs)
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	m.settingsIndex = idx
	var cmd tea.Cmd
	for i := range m.settingsInputs {
		if i == m.settingsIndex {
			cmd = m.settingsInputs[i].Focus()
		} else {
			m.settingsInputs[i].Blur()
		}
	}
	return cmd
}

// applySettings validates both fields before changing anything.
func (m *Model) applySettings() error {
	lr, err := strconv.ParseFloat(strings.TrimSpace(m.settingsInputs[0].Value()), 64)
	if err != nil {
		return fmt.Errorf("invalid learning rate (use a number >= 0)")
	}
	ms, err := strconv.Atoi(strings.TrimSpace(m.settingsInputs[1].Value()))
	if err != nil || ms < 1 {
		return fmt.Errorf("invalid interval (use integer milliseconds >= 1)")
	}
	prev := m.sess.Config().LearningRate
	if err := m.sess.SetLearningRate(lr); err != nil {
		return err
	}
	if err := m.sess.SetStepInterval(time.Duration(ms) * time.Millisecond); err != nil {
		_ = m.sess.SetLearningRate(prev)
		return err
	}
	return nil
}

func (m *Model) updateFocusedInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.mode {
	case modeExpression:
		m.exprInput, cmd = m.exprInput.Update(msg)
	case modeSettings:
		m.settingsInputs[m.settingsIndex], cmd = m.settingsInputs[m.settingsIndex].Update(msg)
	}
	return cmd
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	body := m.renderCanvas()
	if m.layout.panel > 0 {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, m.renderPanel())
	}
	return m.renderHeader() + "\n" + body + "\n" + m.renderFooter()
}

func (m *Model) renderHeader() string {
	if m.mode == modeExpression {
		return m.exprInput.View()
	}
	source := "no function (press e)"
	if fn := m.sess.Function(); fn != nil {
		source = fn.Source()
	}
	title := "tuigrad  "
	line := truncateLine("f(x) = "+source, m.width-len(title))
	return titleStyle.Render(title) + valueStyle.Render(line)
}

func (m *Model) renderCanvas() string {
	state := m.sess.State()
	return plot.Render(plot.Scene{
		Mapper:    m.sess.Mapper(),
		Curve:     m.sess.Curve(),
		Path:      state.Path,
		Crosshair: m.crosshair,
	}, m.color)
}

func (m *Model) renderPanel() string {
	inner := m.layout.panel - 3
	var content string
	if m.mode == modeSettings {
		content = m.renderSettingsForm()
	} else {
		content = m.renderStats(inner)
	}
	return panelStyle.Render(fitLines(content, inner, m.layout.rows))
}

func (m *Model) renderStats(width int) string {
	state := m.sess.State()
	cfg := m.sess.Config()
	bounds := m.sess.Bounds()
	var s strings.Builder
	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(truncateLine(value, width-14)) + "\n")
	}
	row("Phase", state.Phase.String())
	row("Iteration", fmt.Sprintf("%d / %d", state.Iteration, cfg.MaxIterations))
	if last, ok := state.Last(); ok {
		row("x", fmt.Sprintf("%.6g", last.X))
		row("f(x)", fmt.Sprintf("%.6g", last.Y))
		row("Gradient", fmt.Sprintf("%.6g", state.Gradient))
	} else {
		row("x", "-")
		row("f(x)", "-")
		row("Gradient", "-")
	}
	row("Learning rate", fmt.Sprintf("%g", cfg.LearningRate))
	row("Interval", cfg.StepInterval.String())
	row("Bounds", fmt.Sprintf("[%.4g, %.4g]", bounds.Min, bounds.Max))
	if len(state.Path) > 1 {
		ys := make([]float64, len(state.Path))
		for i, p := range state.Path {
			ys[i] = p.Y
		}
		chartWidth := width - 12
		if chartWidth < 8 {
			chartWidth = 8
		}
		chart := asciigraph.Plot(ys, asciigraph.Height(chartHeight), asciigraph.Width(chartWidth), asciigraph.Caption("f(x) per iteration"))
		s.WriteString("\n" + graphStyle.Render(chart))
	}
	return strings.TrimRight(s.String(), "\n")
}

func (m *Model) renderSettingsForm() string {
	lines := []string{"Settings", ""}
	for _, input := range m.settingsInputs {
		lines = append(lines, input.View())
	}
	lines = append(lines, "", headerStyle.Render("tab: next  enter: apply  esc: cancel"))
	if m.settingsError != "" {
		lines = append(lines, errorStyle.Render(m.settingsError))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderFooter() string {
	notice := m.sess.Notice()
	style := noticeStyle
	if notice.Error {
		style = errorStyle
	}
	noticeLine := style.Render(truncateLine(notice.Text, m.width))
	help := helpText
	switch m.mode {
	case modeExpression:
		help = "enter: plot  esc: cancel  functions: sin cos tan exp log sqrt abs ..."
	case modeSettings:
		help = "tab/shift+tab: next field  enter: apply  esc: cancel"
	}
	return noticeLine + "\n" + headerStyle.Render(truncateLine(help, m.width))
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
