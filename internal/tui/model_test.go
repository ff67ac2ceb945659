package tui

import (
	"math"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/tuigrad/internal/animation"
	"github.com/verte-zerg/tuigrad/internal/descent"
	"github.com/verte-zerg/tuigrad/internal/generator"
	"github.com/verte-zerg/tuigrad/internal/model"
	"github.com/verte-zerg/tuigrad/internal/numeric"
	"github.com/verte-zerg/tuigrad/internal/session"
	"github.com/verte-zerg/tuigrad/internal/viewport"
)

func newTestModel(t *testing.T, opts Options) *Model {
	t.Helper()
	sess, err := session.New(session.Options{
		Viewport: viewport.DefaultBounds(),
		Config: model.DescentConfig{
			LearningRate:   0.1,
			StepInterval:   50 * time.Millisecond,
			MaxIterations:  100,
			Epsilon:        0.001,
			DerivativeStep: numeric.DefaultStep,
		},
	})
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	sess.Controller().SetScheduler(func(_ time.Duration, msg animation.TickMsg) tea.Cmd {
		return func() tea.Msg { return msg }
	})
	if opts.Generator == nil {
		opts.Generator = generator.NewWithSeed(1)
	}
	m := NewModel(sess, opts)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func drain(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	for i := 0; cmd != nil; i++ {
		if i > 1000 {
			t.Fatalf("run did not finish")
		}
		_, cmd = m.Update(cmd())
	}
}

func TestResizeSetsCanvasPixels(t *testing.T) {
	m := newTestModel(t, Options{Expression: "x^2"})
	if m.layout.cols != 64 || m.layout.rows != 27 {
		t.Fatalf("unexpected layout %+v", m.layout)
	}
	if w, h := m.sess.Mapper().Size(); w != 128 || h != 108 {
		t.Fatalf("unexpected canvas pixels %dx%d", w, h)
	}
}

func TestClickSeedsAndSpaceRunsToConvergence(t *testing.T) {
	m := newTestModel(t, Options{Expression: "(x-2)^2"})
	m.Update(tea.MouseMsg{X: 48, Y: headerHeight + 5, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	seed, ok := m.sess.State().Seed()
	if !ok || math.Abs(seed.X-m.sess.Mapper().ToMathX(97)) > 1e-9 {
		t.Fatalf("unexpected seed %+v", seed)
	}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeySpace})
	if cmd == nil {
		t.Fatalf("expected a scheduled tick")
	}
	drain(t, m, cmd)
	if phase := m.sess.State().Phase; phase != descent.Converged {
		t.Fatalf("expected converged, got %s", phase)
	}
	if !strings.Contains(m.sess.Notice().Text, "Converged!") {
		t.Fatalf("unexpected notice %q", m.sess.Notice().Text)
	}
	if view := m.View(); !strings.Contains(view, "f(x) per iteration") || !strings.Contains(view, "converged") {
		t.Fatalf("view missing run details:\n%s", view)
	}
}

func TestPauseKeyDropsPendingTick(t *testing.T) {
	m := newTestModel(t, Options{Expression: "(x-2)^2"})
	m.Update(keyRunes("g"))
	_, cmd := m.Update(keyRunes("s"))
	if cmd == nil {
		t.Fatalf("expected a scheduled tick")
	}
	m.Update(keyRunes("s"))
	before := m.sess.State().Iteration
	m.Update(cmd())
	if got := m.sess.State(); got.Phase != descent.Paused || got.Iteration != before {
		t.Fatalf("stale tick advanced the run: %+v", got)
	}
}

func TestMouseOutsideCanvasIgnored(t *testing.T) {
	m := newTestModel(t, Options{Expression: "x^2"})
	m.Update(tea.MouseMsg{X: 90, Y: 5, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	m.Update(tea.MouseMsg{X: 10, Y: 0, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	if phase := m.sess.State().Phase; phase != descent.Idle {
		t.Fatalf("expected idle, got %s", phase)
	}
}

func TestWheelZoomsAtCursor(t *testing.T) {
	m := newTestModel(t, Options{Expression: "x^2"})
	m.Update(tea.MouseMsg{X: 20, Y: headerHeight + 10, Action: tea.MouseActionPress, Button: tea.MouseButtonWheelUp})
	b := m.sess.Mapper().Bounds()
	if got := b.XMax - b.XMin; math.Abs(got-18) > 1e-9 {
		t.Fatalf("expected x range 18 after wheel up, got %g", got)
	}
	m.Update(keyRunes("0"))
	if m.sess.Mapper().Bounds() != viewport.DefaultBounds() {
		t.Fatalf("expected default bounds after reset")
	}
}

func TestExpressionEditing(t *testing.T) {
	m := newTestModel(t, Options{Expression: "x^2"})
	m.Update(keyRunes("e"))
	if m.mode != modeExpression || m.exprInput.Value() != "x^2" {
		t.Fatalf("expected edit mode with current source, got mode %d value %q", m.mode, m.exprInput.Value())
	}
	m.exprInput.SetValue("sin(x")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.mode != modeExpression || !m.sess.Notice().Error {
		t.Fatalf("expected to stay in edit mode with an error notice")
	}
	if m.sess.Function().Source() != "x^2" {
		t.Fatalf("previous function should be kept")
	}
	m.exprInput.SetValue("x^4 - 3*x^2 + x")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.mode != modeNormal || m.sess.Function().Source() != "x^4 - 3*x^2 + x" {
		t.Fatalf("expected new function plotted")
	}

	m.Update(keyRunes("e"))
	m.exprInput.SetValue("cos(x)")
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.mode != modeNormal || m.sess.Function().Source() != "x^4 - 3*x^2 + x" {
		t.Fatalf("esc should cancel editing")
	}
}

func TestSettingsForm(t *testing.T) {
	m := newTestModel(t, Options{Expression: "x^2"})
	m.Update(keyRunes("o"))
	if m.mode != modeSettings || m.settingsInputs[0].Value() != "0.1" || m.settingsInputs[1].Value() != "50" {
		t.Fatalf("unexpected settings form state")
	}
	m.settingsInputs[1].SetValue("abc")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.mode != modeSettings || m.settingsError == "" {
		t.Fatalf("expected validation error")
	}
	m.settingsInputs[0].SetValue("0.5")
	m.settingsInputs[1].SetValue("120")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	cfg := m.sess.Config()
	if m.mode != modeNormal || cfg.LearningRate != 0.5 || cfg.StepInterval != 120*time.Millisecond {
		t.Fatalf("settings not applied: %+v", cfg)
	}

	m.Update(keyRunes("o"))
	m.settingsInputs[0].SetValue("-1")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.mode != modeSettings || m.sess.Config().LearningRate != 0.5 {
		t.Fatalf("negative learning rate must be rejected")
	}
}

func TestRateAndIntervalKeys(t *testing.T) {
	m := newTestModel(t, Options{Expression: "x^2"})
	m.Update(keyRunes("]"))
	if got := m.sess.Config().LearningRate; math.Abs(got-0.125) > 1e-12 {
		t.Fatalf("expected 0.125, got %g", got)
	}
	m.Update(keyRunes("["))
	if got := m.sess.Config().LearningRate; math.Abs(got-0.1) > 1e-12 {
		t.Fatalf("expected 0.1, got %g", got)
	}
	m.Update(keyRunes("."))
	if got := m.sess.Config().StepInterval; got != 60*time.Millisecond {
		t.Fatalf("expected 60ms, got %s", got)
	}
	for i := 0; i < 10; i++ {
		m.Update(keyRunes(","))
	}
	if got := m.sess.Config().StepInterval; got != minInterval {
		t.Fatalf("expected interval clamped to %s, got %s", minInterval, got)
	}
}

func TestPresetKeyCyclesFunctions(t *testing.T) {
	m := newTestModel(t, Options{Presets: []string{"x^2", "x^4"}})
	if m.sess.Function() == nil || m.sess.Function().Source() != "x^2" {
		t.Fatalf("expected first preset plotted")
	}
	m.Update(keyRunes("p"))
	if m.sess.Function().Source() != "x^4" {
		t.Fatalf("expected second preset, got %s", m.sess.Function().Source())
	}
	m.Update(keyRunes("p"))
	if m.sess.Function().Source() != "x^2" {
		t.Fatalf("expected presets to wrap")
	}
}

func TestCrosshairEnterSeeds(t *testing.T) {
	m := newTestModel(t, Options{Expression: "x^2"})
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if m.crosshair == nil || m.crosshair.X != 66 || m.crosshair.Y != 54 {
		t.Fatalf("unexpected crosshair %+v", m.crosshair)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	seed, ok := m.sess.State().Seed()
	if !ok || math.Abs(seed.X-m.sess.Mapper().ToMathX(66)) > 1e-9 {
		t.Fatalf("unexpected seed %+v", seed)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.crosshair != nil {
		t.Fatalf("esc should hide the crosshair")
	}
}

func TestPanKeysMoveWindow(t *testing.T) {
	m := newTestModel(t, Options{Expression: "x^2"})
	m.Update(keyRunes("l"))
	b := m.sess.Mapper().Bounds()
	if math.Abs(b.XMin+8) > 1e-9 || math.Abs(b.XMax-12) > 1e-9 {
		t.Fatalf("unexpected bounds after pan right %+v", b)
	}
	m.Update(keyRunes("k"))
	b = m.sess.Mapper().Bounds()
	if math.Abs(b.YMin+8) > 1e-9 || math.Abs(b.YMax-12) > 1e-9 {
		t.Fatalf("unexpected bounds after pan up %+v", b)
	}
}

func TestRandomSeedAndReset(t *testing.T) {
	m := newTestModel(t, Options{Expression: "sin(x) + 0.1*x^2"})
	m.Update(keyRunes("g"))
	if phase := m.sess.State().Phase; phase != descent.Seeded {
		t.Fatalf("expected seeded, got %s", phase)
	}
	m.Update(keyRunes("r"))
	if st := m.sess.State(); st.Phase != descent.Idle || len(st.Path) != 0 {
		t.Fatalf("expected reset state, got %+v", st)
	}
}

func TestViewWithoutFunction(t *testing.T) {
	m := newTestModel(t, Options{})
	if m.sess.Function() != nil {
		t.Fatalf("expected no function")
	}
	view := m.View()
	if !strings.Contains(view, "no function") || !strings.Contains(view, "Phase") {
		t.Fatalf("unexpected view:\n%s", view)
	}
	m.Update(keyRunes("s"))
	if !strings.Contains(m.sess.Notice().Text, "plot a function first") {
		t.Fatalf("unexpected notice %q", m.sess.Notice().Text)
	}
}
