// Package descent implements one-dimensional gradient descent as an explicit state machine.
package descent

import (
	"fmt"
	"math"

	"github.com/verte-zerg/tuigrad/internal/model"
	"github.com/verte-zerg/tuigrad/internal/numeric"
)

// Phase is the state of a descent run.
type Phase int

// Descent phases. Converged, OutOfBounds, MaxIterationsReached and
// EvaluationFailed are terminal.
const (
	Idle Phase = iota
	Seeded
	Running
	Paused
	Converged
	OutOfBounds
	MaxIterationsReached
	EvaluationFailed
)

var phaseNames = [...]string{
	Idle:                 "idle",
	Seeded:               "seeded",
	Running:              "running",
	Paused:               "paused",
	Converged:            "converged",
	OutOfBounds:          "out of bounds",
	MaxIterationsReached: "max iterations",
	EvaluationFailed:     "evaluation failed",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Terminal reports whether the phase ends a run.
func (p Phase) Terminal() bool {
	return p >= Converged
}

// Outcome maps a terminal phase to its history outcome.
func (p Phase) Outcome() (model.Outcome, bool) {
	switch p {
	case Converged:
		return model.OutcomeConverged, true
	case OutOfBounds:
		return model.OutcomeOutOfBounds, true
	case MaxIterationsReached:
		return model.OutcomeMaxIterations, true
	case EvaluationFailed:
		return model.OutcomeEvaluationFailed, true
	default:
		return "", false
	}
}

// Bounds is the interval a step may land in.
type Bounds struct {
	Min float64
	Max float64
}

// Contains reports whether x lies within [Min, Max].
func (b Bounds) Contains(x float64) bool {
	return x >= b.Min && x <= b.Max
}

// State is a snapshot of a run. Iteration == len(Path)-1 once seeded.
type State struct {
	Phase     Phase
	Path      []model.PathPoint
	CurrentX  float64
	Iteration int
	Gradient  float64
}

// Seed returns the first path point, if any.
func (s State) Seed() (model.PathPoint, bool) {
	if len(s.Path) == 0 {
		return model.PathPoint{}, false
	}
	return s.Path[0], true
}

// Last returns the current path point, if any.
func (s State) Last() (model.PathPoint, bool) {
	if len(s.Path) == 0 {
		return model.PathPoint{}, false
	}
	return s.Path[len(s.Path)-1], true
}

func (s State) clone() State {
	out := s
	out.Path = append([]model.PathPoint(nil), s.Path...)
	return out
}

// Event describes the result of one step.
type Event struct {
	Phase     Phase
	Gradient  float64
	Attempted float64
	Point     model.PathPoint
	Appended  bool
	Err       error
}

// ValidateConfig rejects settings a run cannot start with. A zero learning
// rate is allowed; such a run stops at MaxIterations unless already flat.
func ValidateConfig(cfg model.DescentConfig) error {
	if math.IsNaN(cfg.LearningRate) || math.IsInf(cfg.LearningRate, 0) || cfg.LearningRate < 0 {
		return &ConfigError{Field: "learning rate", Msg: fmt.Sprintf("must be a finite value >= 0, got %g", cfg.LearningRate)}
	}
	if cfg.StepInterval <= 0 {
		return &ConfigError{Field: "step interval", Msg: fmt.Sprintf("must be > 0, got %s", cfg.StepInterval)}
	}
	if cfg.MaxIterations <= 0 {
		return &ConfigError{Field: "max iterations", Msg: fmt.Sprintf("must be > 0, got %d", cfg.MaxIterations)}
	}
	if !numeric.IsFinite(cfg.Epsilon) || cfg.Epsilon <= 0 {
		return &ConfigError{Field: "epsilon", Msg: fmt.Sprintf("must be > 0, got %g", cfg.Epsilon)}
	}
	if !numeric.IsFinite(cfg.DerivativeStep) || cfg.DerivativeStep <= 0 {
		return &ConfigError{Field: "derivative step", Msg: fmt.Sprintf("must be > 0, got %g", cfg.DerivativeStep)}
	}
	return nil
}

// Step advances a running state by one gradient step. It never mutates s.
func Step(fn numeric.Function, s State, cfg model.DescentConfig, bounds Bounds) (State, Event) {
	if s.Phase != Running {
		return s, Event{Phase: s.Phase, Err: ErrNotRunning}
	}
	grad := numeric.Derivative(fn, s.CurrentX, cfg.DerivativeStep)
	newX := s.CurrentX - cfg.LearningRate*grad
	next := s
	next.Gradient = grad
	ev := Event{Gradient: grad, Attempted: newX}

	if !bounds.Contains(newX) {
		next.Phase = OutOfBounds
		ev.Phase = next.Phase
		ev.Err = fmt.Errorf("%w: x=%g outside [%g, %g]", ErrOutOfBounds, newX, bounds.Min, bounds.Max)
		return next, ev
	}
	newY, err := numeric.Sample(fn, newX)
	if err != nil {
		next.Phase = EvaluationFailed
		ev.Phase = next.Phase
		ev.Err = fmt.Errorf("%w: %w", ErrEvaluationFailed, err)
		return next, ev
	}

	point := model.PathPoint{X: newX, Y: newY}
	next.Path = append(s.Path[:len(s.Path):len(s.Path)], point)
	next.CurrentX = newX
	next.Iteration = s.Iteration + 1
	ev.Point = point
	ev.Appended = true

	switch {
	case math.Abs(grad) < cfg.Epsilon:
		next.Phase = Converged
	case next.Iteration >= cfg.MaxIterations:
		next.Phase = MaxIterationsReached
		ev.Err = ErrMaxIterations
	}
	ev.Phase = next.Phase
	return next, ev
}

// Iterator holds the mutable run state for one function.
type Iterator struct {
	fn    numeric.Function
	state State
}

// NewIterator returns an idle iterator for fn. fn may be nil until a function is plotted.
func NewIterator(fn numeric.Function) *Iterator {
	return &Iterator{fn: fn}
}

// SetFunction replaces the function and clears any run.
func (it *Iterator) SetFunction(fn numeric.Function) {
	it.fn = fn
	it.Reset()
}

// Function returns the current function.
func (it *Iterator) Function() numeric.Function {
	return it.fn
}

// State returns a copy of the current state.
func (it *Iterator) State() State {
	return it.state.clone()
}

// Phase returns the current phase.
func (it *Iterator) Phase() Phase {
	return it.state.Phase
}

// Seed starts a new path at x, discarding any previous run. When f(x) is not
// finite the iterator is left Idle.
func (it *Iterator) Seed(x float64) error {
	it.Reset()
	if it.fn == nil {
		return ErrNoFunction
	}
	y, err := numeric.Sample(it.fn, x)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSeedEvaluation, err)
	}
	it.state = State{
		Phase:    Seeded,
		Path:     []model.PathPoint{{X: x, Y: y}},
		CurrentX: x,
	}
	return nil
}

// Start moves a seeded run to Running.
func (it *Iterator) Start(cfg model.DescentConfig) error {
	switch it.state.Phase {
	case Seeded:
	case Idle:
		return ErrNotSeeded
	case Running:
		return nil
	case Paused:
		return it.Resume(cfg)
	default:
		return ErrFinished
	}
	if err := ValidateConfig(cfg); err != nil {
		return err
	}
	it.state.Phase = Running
	return nil
}

// Pause stops a running descent, keeping the path for Resume.
func (it *Iterator) Pause() error {
	if it.state.Phase != Running {
		return ErrNotRunning
	}
	it.state.Phase = Paused
	return nil
}

// Resume continues a paused run from the last recorded point.
func (it *Iterator) Resume(cfg model.DescentConfig) error {
	if it.state.Phase != Paused {
		return ErrNotPaused
	}
	if err := ValidateConfig(cfg); err != nil {
		return err
	}
	if last, ok := it.state.Last(); ok {
		it.state.CurrentX = last.X
	}
	it.state.Phase = Running
	return nil
}

// Step performs one descent step.
func (it *Iterator) Step(cfg model.DescentConfig, bounds Bounds) Event {
	if it.fn == nil {
		return Event{Phase: it.state.Phase, Err: ErrNoFunction}
	}
	next, ev := Step(it.fn, it.state, cfg, bounds)
	it.state = next
	return ev
}

// Reset clears the path and returns to Idle.
func (it *Iterator) Reset() {
	it.state = State{Phase: Idle}
}

// Run seeds fn at x and steps until a terminal phase, without any timer.
// observe, when set, sees every step event.
func Run(fn numeric.Function, x float64, cfg model.DescentConfig, bounds Bounds, observe func(Event)) (State, error) {
	it := NewIterator(fn)
	if err := it.Seed(x); err != nil {
		return it.State(), err
	}
	if err := it.Start(cfg); err != nil {
		return it.State(), err
	}
	for it.Phase() == Running {
		ev := it.Step(cfg, bounds)
		if observe != nil {
			observe(ev)
		}
	}
	return it.State(), nil
}
