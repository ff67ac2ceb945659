// Package session owns the state shared by the interactive views: the
// viewport, the plotted function, the descent run and its settings.
//
// A Session is not safe for concurrent use. All calls come from the Bubble
// Tea Update loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/verte-zerg/tuigrad/internal/animation"
	"github.com/verte-zerg/tuigrad/internal/descent"
	"github.com/verte-zerg/tuigrad/internal/expr"
	"github.com/verte-zerg/tuigrad/internal/generator"
	"github.com/verte-zerg/tuigrad/internal/model"
	"github.com/verte-zerg/tuigrad/internal/plot"
	"github.com/verte-zerg/tuigrad/internal/viewport"
)

// Errors returned when an action needs a plotted function or a seed first.
var (
	ErrNoFunction = descent.ErrNoFunction
	ErrNotSeeded  = descent.ErrNotSeeded
)

// Recorder persists finished runs.
type Recorder interface {
	InsertRun(ctx context.Context, run model.RunRecord) (int64, error)
}

// Notice is the single status line shown to the user.
type Notice struct {
	Text  string
	Error bool
}

// Options configures a new Session.
type Options struct {
	Viewport viewport.Bounds
	Width    int
	Height   int
	Config   model.DescentConfig
	Domain   *model.Domain
	Logger   *zap.Logger
	Recorder Recorder
	Now      func() time.Time
}

// Session is the single writer of all interactive state.
type Session struct {
	mapper    *viewport.Mapper
	fn        *expr.Compiled
	it        *descent.Iterator
	ctrl      *animation.Controller
	cfg       model.DescentConfig
	domain    *model.Domain
	logger    *zap.Logger
	recorder  Recorder
	now       func() time.Time
	notice    Notice
	startedAt time.Time
}

// New validates opts and returns an idle session with no function.
func New(opts Options) (*Session, error) {
	if err := descent.ValidateConfig(opts.Config); err != nil {
		return nil, err
	}
	if opts.Domain != nil && !(opts.Domain.Min < opts.Domain.Max) {
		return nil, fmt.Errorf("invalid domain [%g, %g]: min must be < max", opts.Domain.Min, opts.Domain.Max)
	}
	mapper, err := viewport.New(opts.Viewport, opts.Width, opts.Height)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	it := descent.NewIterator(nil)
	return &Session{
		mapper:   mapper,
		it:       it,
		ctrl:     animation.New(it),
		cfg:      opts.Config,
		domain:   opts.Domain,
		logger:   logger,
		recorder: opts.Recorder,
		now:      now,
	}, nil
}

// Controller exposes the animation controller, mainly to swap its scheduler.
func (s *Session) Controller() *animation.Controller {
	return s.ctrl
}

// Mapper returns the viewport mapper. Callers must not mutate it directly.
func (s *Session) Mapper() *viewport.Mapper {
	return s.mapper
}

// Function returns the plotted function, or nil.
func (s *Session) Function() *expr.Compiled {
	return s.fn
}

// State returns a snapshot of the current run.
func (s *Session) State() descent.State {
	return s.it.State()
}

// Config returns the current descent settings.
func (s *Session) Config() model.DescentConfig {
	return s.cfg
}

// Notice returns the current status line.
func (s *Session) Notice() Notice {
	return s.notice
}

// Running reports whether a step is scheduled.
func (s *Session) Running() bool {
	return s.ctrl.Running()
}

// Bounds returns the interval descent steps must stay in: the fixed domain if
// configured, otherwise the visible x range.
func (s *Session) Bounds() descent.Bounds {
	if s.domain != nil {
		return descent.Bounds{Min: s.domain.Min, Max: s.domain.Max}
	}
	b := s.mapper.Bounds()
	return descent.Bounds{Min: b.XMin, Max: b.XMax}
}

// Plot compiles source and makes it the current function. Any run is
// discarded. On a compile error the previous function is kept.
func (s *Session) Plot(source string) error {
	fn, err := expr.Compile(source)
	if err != nil {
		s.fail(err.Error())
		s.logger.Debug("compile failed", zap.String("expression", source), zap.Error(err))
		return err
	}
	s.fn = fn
	s.ctrl.Reset()
	s.it.SetFunction(fn)
	s.notice = Notice{}
	s.logger.Info("function plotted", zap.String("expression", fn.Source()))
	return nil
}

// Click seeds a run at the math x under the pixel.
func (s *Session) Click(p viewport.Pixel) error {
	return s.SeedAt(s.mapper.ToMathX(p.X))
}

// SeedAt stops any run and starts a new path at x.
func (s *Session) SeedAt(x float64) error {
	if s.fn == nil {
		s.fail("Please plot a function first")
		return ErrNoFunction
	}
	if err := s.ctrl.Reseed(x); err != nil {
		s.fail("Cannot evaluate function at this point")
		s.logger.Debug("seed rejected", zap.Float64("x", x), zap.Error(err))
		return err
	}
	s.startedAt = time.Time{}
	s.notice = Notice{}
	s.logger.Debug("seeded", zap.Float64("x", x))
	return nil
}

// SeedRandom seeds at a random x inside the search bounds where the function
// is finite.
func (s *Session) SeedRandom(g *generator.Generator) error {
	if s.fn == nil {
		s.fail("Please plot a function first")
		return ErrNoFunction
	}
	x, err := g.Seed(s.fn, s.Bounds())
	if err != nil {
		s.fail("No finite starting point found")
		return err
	}
	return s.SeedAt(x)
}

// Toggle starts, pauses or resumes the run.
func (s *Session) Toggle() (tea.Cmd, error) {
	if s.fn == nil {
		s.fail("Please plot a function first")
		return nil, ErrNoFunction
	}
	phase := s.it.Phase()
	cmd, err := s.ctrl.Toggle(s.cfg)
	if err != nil {
		switch {
		case errors.Is(err, descent.ErrNotSeeded):
			s.fail("Click on the graph to set a starting point")
		case errors.Is(err, descent.ErrFinished):
			s.fail("Run finished; pick a new starting point or reset")
		default:
			s.fail(err.Error())
		}
		return nil, err
	}
	if phase == descent.Seeded {
		s.startedAt = s.now()
	}
	s.notice = Notice{}
	s.logger.Debug("toggled", zap.Stringer("from", phase), zap.Stringer("to", s.it.Phase()))
	return cmd, nil
}

// HandleTick performs the step a tick asks for and schedules the next one.
func (s *Session) HandleTick(msg animation.TickMsg) tea.Cmd {
	ev, cmd, ok := s.ctrl.HandleTick(msg, s.cfg, s.Bounds())
	if !ok {
		return nil
	}
	if ev.Phase.Terminal() {
		s.finish(ev)
	}
	return cmd
}

// Reset stops any run and clears the path. The function stays plotted.
func (s *Session) Reset() {
	s.ctrl.Reset()
	s.startedAt = time.Time{}
	s.notice = Notice{}
}

// ZoomIn zooms toward the origin.
func (s *Session) ZoomIn() error {
	return s.zoom(s.mapper.Zoom(viewport.ZoomInFactor, 0, 0))
}

// ZoomOut zooms away from the origin.
func (s *Session) ZoomOut() error {
	return s.zoom(s.mapper.Zoom(viewport.ZoomOutFactor, 0, 0))
}

// ZoomReset restores the default window.
func (s *Session) ZoomReset() {
	s.mapper.Reset()
}

// Wheel zooms around the cursor; up zooms in.
func (s *Session) Wheel(p viewport.Pixel, up bool) error {
	factor := viewport.WheelOutFactor
	if up {
		factor = viewport.WheelInFactor
	}
	return s.zoom(s.mapper.ZoomAt(factor, p))
}

// Pan moves the window by a pixel delta.
func (s *Session) Pan(dx, dy float64) {
	s.mapper.Pan(dx, dy)
}

// Resize follows the canvas size.
func (s *Session) Resize(width, height int) {
	s.mapper.Resize(width, height)
}

// SetLearningRate changes the rate used from the next step on.
func (s *Session) SetLearningRate(lr float64) error {
	next := s.cfg
	next.LearningRate = lr
	return s.setConfig(next)
}

// SetStepInterval changes the delay used for the next scheduled tick.
func (s *Session) SetStepInterval(d time.Duration) error {
	next := s.cfg
	next.StepInterval = d
	return s.setConfig(next)
}

// Curve samples the plotted function for the current window.
func (s *Session) Curve() [][]viewport.Pixel {
	if s.fn == nil {
		return nil
	}
	return plot.SampleCurve(s.fn, s.mapper)
}

// OutcomeMessage is the user-facing text for a terminal phase ending at x.
func OutcomeMessage(phase descent.Phase, x float64) string {
	switch phase {
	case descent.Converged:
		return fmt.Sprintf("Converged! Minimum found at x ≈ %.4f", x)
	case descent.MaxIterationsReached:
		return "Maximum iterations reached"
	case descent.OutOfBounds:
		return "Gradient descent reached the boundary"
	case descent.EvaluationFailed:
		return "Function evaluation error"
	default:
		return phase.String()
	}
}

func (s *Session) finish(ev descent.Event) {
	state := s.it.State()
	last, _ := state.Last()
	s.notice = Notice{Text: OutcomeMessage(ev.Phase, last.X), Error: ev.Phase == descent.EvaluationFailed}
	fields := []zap.Field{
		zap.String("expression", s.fn.Source()),
		zap.Stringer("phase", ev.Phase),
		zap.Int("iterations", state.Iteration),
		zap.Float64("x", last.X),
		zap.Float64("gradient", ev.Gradient),
	}
	if ev.Err != nil {
		fields = append(fields, zap.Error(ev.Err))
	}
	s.logger.Info("run finished", fields...)

	if s.recorder == nil {
		return
	}
	run, ok := s.record(state)
	if !ok {
		return
	}
	if _, err := s.recorder.InsertRun(context.Background(), run); err != nil {
		s.logger.Warn("failed to save run", zap.Error(err))
	}
}

func (s *Session) record(state descent.State) (model.RunRecord, bool) {
	outcome, ok := state.Phase.Outcome()
	if !ok {
		return model.RunRecord{}, false
	}
	seed, ok := state.Seed()
	if !ok {
		return model.RunRecord{}, false
	}
	last, _ := state.Last()
	ended := s.now()
	started := s.startedAt
	if started.IsZero() {
		started = ended
	}
	return model.RunRecord{
		StartedAt:     started,
		EndedAt:       ended,
		Expression:    s.fn.Source(),
		Seed:          seed,
		Final:         last,
		Iterations:    state.Iteration,
		LearningRate:  s.cfg.LearningRate,
		Epsilon:       s.cfg.Epsilon,
		MaxIterations: s.cfg.MaxIterations,
		Outcome:       outcome,
		Path:          state.Path,
	}, true
}

func (s *Session) setConfig(next model.DescentConfig) error {
	if err := descent.ValidateConfig(next); err != nil {
		s.fail(err.Error())
		return err
	}
	s.cfg = next
	return nil
}

func (s *Session) zoom(err error) error {
	if err != nil {
		s.fail("Cannot zoom any further")
		s.logger.Debug("zoom rejected", zap.Error(err))
		return err
	}
	return nil
}

func (s *Session) fail(text string) {
	s.notice = Notice{Text: text, Error: true}
}
