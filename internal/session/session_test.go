package session

import (
	"context"
	"errors"
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
	"github.com/verte-zerg/tuigrad/internal/viewport"
)

type memoryRecorder struct {
	runs []model.RunRecord
	err  error
}

func (r *memoryRecorder) InsertRun(_ context.Context, run model.RunRecord) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.runs = append(r.runs, run)
	return int64(len(r.runs)), nil
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newSession(t *testing.T, rec Recorder, domain *model.Domain) (*Session, *[]time.Duration) {
	t.Helper()
	s, err := New(Options{
		Viewport: viewport.DefaultBounds(),
		Width:    200,
		Height:   100,
		Config: model.DescentConfig{
			LearningRate:   0.1,
			StepInterval:   50 * time.Millisecond,
			MaxIterations:  100,
			Epsilon:        0.001,
			DerivativeStep: numeric.DefaultStep,
		},
		Domain:   domain,
		Recorder: rec,
		Now:      func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	var delays []time.Duration
	s.Controller().SetScheduler(func(d time.Duration, msg animation.TickMsg) tea.Cmd {
		delays = append(delays, d)
		return func() tea.Msg { return msg }
	})
	return s, &delays
}

func drain(t *testing.T, s *Session, cmd tea.Cmd) {
	t.Helper()
	for i := 0; cmd != nil; i++ {
		if i > 1000 {
			t.Fatalf("run did not finish")
		}
		msg, ok := cmd().(animation.TickMsg)
		if !ok {
			t.Fatalf("expected tick message")
		}
		cmd = s.HandleTick(msg)
	}
}

func TestSeedRequiresFunction(t *testing.T) {
	s, _ := newSession(t, nil, nil)
	if err := s.Click(viewport.Pixel{X: 10, Y: 10}); !errors.Is(err, ErrNoFunction) {
		t.Fatalf("expected ErrNoFunction, got %v", err)
	}
	if n := s.Notice(); !n.Error || n.Text != "Please plot a function first" {
		t.Fatalf("unexpected notice %+v", n)
	}
	if _, err := s.Toggle(); !errors.Is(err, ErrNoFunction) {
		t.Fatalf("expected ErrNoFunction from toggle, got %v", err)
	}
}

func TestPlotErrorKeepsPreviousFunction(t *testing.T) {
	s, _ := newSession(t, nil, nil)
	if err := s.Plot("x^2"); err != nil {
		t.Fatalf("plot: %v", err)
	}
	if err := s.Plot("sin(x"); err == nil {
		t.Fatalf("expected compile error")
	}
	if s.Function() == nil || s.Function().Source() != "x^2" {
		t.Fatalf("previous function lost")
	}
	if !s.Notice().Error {
		t.Fatalf("expected error notice")
	}
}

func TestPlotClearsRun(t *testing.T) {
	s, _ := newSession(t, nil, nil)
	_ = s.Plot("x^2")
	_ = s.SeedAt(3)
	if _, err := s.Toggle(); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	_ = s.Plot("x^4")
	if st := s.State(); st.Phase != descent.Idle || len(st.Path) != 0 {
		t.Fatalf("expected idle session after replot, got %s", st.Phase)
	}
	if s.Running() {
		t.Fatalf("tick still live after replot")
	}
}

func TestClickSeedsAtMathX(t *testing.T) {
	s, _ := newSession(t, nil, nil)
	_ = s.Plot("x^2")
	if err := s.Click(viewport.Pixel{X: 150, Y: 3}); err != nil {
		t.Fatalf("click: %v", err)
	}
	seed, ok := s.State().Seed()
	if !ok || math.Abs(seed.X-5) > 1e-9 || math.Abs(seed.Y-25) > 1e-9 {
		t.Fatalf("unexpected seed %+v", seed)
	}
}

func TestConvergedRunIsRecorded(t *testing.T) {
	rec := &memoryRecorder{}
	s, delays := newSession(t, rec, nil)
	_ = s.Plot("(x-2)^2")
	_ = s.SeedAt(5)
	cmd, err := s.Toggle()
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	drain(t, s, cmd)
	if s.State().Phase != descent.Converged {
		t.Fatalf("expected converged, got %s", s.State().Phase)
	}
	if n := s.Notice(); !strings.HasPrefix(n.Text, "Converged! Minimum found at x ≈ ") || n.Error {
		t.Fatalf("unexpected notice %+v", n)
	}
	if len(rec.runs) != 1 {
		t.Fatalf("expected one recorded run, got %d", len(rec.runs))
	}
	run := rec.runs[0]
	if run.Outcome != model.OutcomeConverged || run.Expression != "(x-2)^2" || run.Seed.X != 5 {
		t.Fatalf("unexpected record %+v", run)
	}
	if run.Iterations != len(run.Path)-1 || !run.StartedAt.Equal(fixedNow) {
		t.Fatalf("inconsistent record: iterations=%d path=%d", run.Iterations, len(run.Path))
	}
	if len(*delays) != run.Iterations {
		t.Fatalf("expected one tick per step, got %d ticks for %d steps", len(*delays), run.Iterations)
	}
}

func TestBoundaryFollowsViewport(t *testing.T) {
	rec := &memoryRecorder{}
	s, _ := newSession(t, rec, nil)
	_ = s.Plot("x^3")
	_ = s.SeedAt(-7)
	_ = s.SetLearningRate(1)
	cmd, _ := s.Toggle()
	drain(t, s, cmd)
	if s.State().Phase != descent.OutOfBounds {
		t.Fatalf("expected out of bounds, got %s", s.State().Phase)
	}
	if s.Notice().Text != "Gradient descent reached the boundary" {
		t.Fatalf("unexpected notice %q", s.Notice().Text)
	}
	if len(rec.runs) != 1 || rec.runs[0].Outcome != model.OutcomeOutOfBounds {
		t.Fatalf("expected out-of-bounds record")
	}

	if err := s.ZoomIn(); err != nil {
		t.Fatalf("zoom: %v", err)
	}
	if b := s.Bounds(); math.Abs(b.Min+8) > 1e-9 || math.Abs(b.Max-8) > 1e-9 {
		t.Fatalf("bounds should follow viewport, got %+v", b)
	}
}

func TestFixedDomainOverridesViewport(t *testing.T) {
	s, _ := newSession(t, nil, &model.Domain{Min: -100, Max: 100})
	_ = s.ZoomIn()
	if b := s.Bounds(); b.Min != -100 || b.Max != 100 {
		t.Fatalf("expected fixed domain, got %+v", b)
	}
}

func TestToggleWithoutSeed(t *testing.T) {
	s, _ := newSession(t, nil, nil)
	_ = s.Plot("x^2")
	if _, err := s.Toggle(); !errors.Is(err, ErrNotSeeded) {
		t.Fatalf("expected ErrNotSeeded, got %v", err)
	}
}

func TestPauseStopsStepping(t *testing.T) {
	s, _ := newSession(t, nil, nil)
	_ = s.Plot("x^2")
	_ = s.SeedAt(4)
	cmd, _ := s.Toggle()
	pending := cmd().(animation.TickMsg)
	if _, err := s.Toggle(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if next := s.HandleTick(pending); next != nil || len(s.State().Path) != 1 {
		t.Fatalf("step fired after pause")
	}
}

func TestSettingsValidated(t *testing.T) {
	s, delays := newSession(t, nil, nil)
	if err := s.SetLearningRate(-1); err == nil {
		t.Fatalf("expected error for negative learning rate")
	}
	if s.Config().LearningRate != 0.1 {
		t.Fatalf("config changed by rejected update")
	}
	if err := s.SetLearningRate(0); err != nil {
		t.Fatalf("zero learning rate rejected: %v", err)
	}
	if err := s.SetStepInterval(0); err == nil {
		t.Fatalf("expected error for zero interval")
	}
	_ = s.SetLearningRate(0.1)
	_ = s.Plot("x^2")
	_ = s.SeedAt(4)
	cmd, _ := s.Toggle()
	if err := s.SetStepInterval(120 * time.Millisecond); err != nil {
		t.Fatalf("set interval: %v", err)
	}
	_ = s.HandleTick(cmd().(animation.TickMsg))
	if got := (*delays)[len(*delays)-1]; got != 120*time.Millisecond {
		t.Fatalf("expected new interval on next tick, got %s", got)
	}
}

func TestCurveSplitsAtPole(t *testing.T) {
	s, _ := newSession(t, nil, nil)
	_ = s.Plot("1/x")
	segments := s.Curve()
	if len(segments) != 2 {
		t.Fatalf("expected curve split at x=0, got %d segments", len(segments))
	}
	total := 0
	for _, seg := range segments {
		total += len(seg)
		for _, p := range seg {
			if p.X == 100 {
				t.Fatalf("pole column should be skipped")
			}
		}
	}
	if total != 199 {
		t.Fatalf("expected 199 samples, got %d", total)
	}
}

func TestWheelKeepsCursorPoint(t *testing.T) {
	s, _ := newSession(t, nil, nil)
	cursor := viewport.Pixel{X: 50, Y: 25}
	before := s.Mapper().ToMath(cursor)
	if err := s.Wheel(cursor, true); err != nil {
		t.Fatalf("wheel: %v", err)
	}
	after := s.Mapper().ToMath(cursor)
	if math.Abs(before.X-after.X) > 1e-9 || math.Abs(before.Y-after.Y) > 1e-9 {
		t.Fatalf("cursor point moved: %+v -> %+v", before, after)
	}
	s.ZoomReset()
	if s.Mapper().Bounds() != viewport.DefaultBounds() {
		t.Fatalf("zoom reset did not restore defaults")
	}
}

func TestRecorderFailureDoesNotBreakSession(t *testing.T) {
	rec := &memoryRecorder{err: errors.New("disk full")}
	s, _ := newSession(t, rec, nil)
	_ = s.Plot("x^2")
	_ = s.SeedAt(1)
	cmd, _ := s.Toggle()
	drain(t, s, cmd)
	if !s.State().Phase.Terminal() {
		t.Fatalf("expected terminal phase")
	}
	s.Reset()
	if s.State().Phase != descent.Idle {
		t.Fatalf("reset failed")
	}
}

func TestSeedRandomStaysInsideBounds(t *testing.T) {
	s, _ := newSession(t, nil, &model.Domain{Min: 1, Max: 3})
	g := generator.NewWithSeed(7)
	if err := s.SeedRandom(g); !errors.Is(err, ErrNoFunction) {
		t.Fatalf("expected ErrNoFunction, got %v", err)
	}
	if err := s.Plot("log(x)"); err != nil {
		t.Fatalf("plot: %v", err)
	}
	for i := 0; i < 20; i++ {
		if err := s.SeedRandom(g); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
		seed, ok := s.State().Seed()
		if !ok || seed.X < 1 || seed.X > 3 {
			t.Fatalf("seed %+v outside domain", seed)
		}
	}
}
