// Package animation drives a descent one tick at a time on the Bubble Tea event loop.
package animation

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/tuigrad/internal/descent"
	"github.com/verte-zerg/tuigrad/internal/model"
)

// TickMsg asks the controller to perform one step. Ticks carrying an old
// generation are dropped.
type TickMsg struct {
	Generation uint64
}

// Scheduler returns a command that delivers msg after d.
type Scheduler func(d time.Duration, msg TickMsg) tea.Cmd

func teaScheduler(d time.Duration, msg TickMsg) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return msg })
}

// Controller owns the pending tick of an Iterator. At most one tick is live.
type Controller struct {
	it         *descent.Iterator
	schedule   Scheduler
	generation uint64
	live       bool
}

// New returns a controller for it using tea.Tick for scheduling.
func New(it *descent.Iterator) *Controller {
	return &Controller{it: it, schedule: teaScheduler}
}

// SetScheduler replaces the tick source; nil restores tea.Tick.
func (c *Controller) SetScheduler(s Scheduler) {
	if s == nil {
		s = teaScheduler
	}
	c.schedule = s
}

// Iterator returns the driven iterator.
func (c *Controller) Iterator() *descent.Iterator {
	return c.it
}

// Generation returns the current tick generation.
func (c *Controller) Generation() uint64 {
	return c.generation
}

// Running reports whether a tick is pending.
func (c *Controller) Running() bool {
	return c.live
}

// Start begins a seeded run, or resumes a paused one. Starting a run that is
// already animating is a no-op.
func (c *Controller) Start(cfg model.DescentConfig) (tea.Cmd, error) {
	if c.live && c.it.Phase() == descent.Running {
		return nil, nil
	}
	if err := c.it.Start(cfg); err != nil {
		return nil, err
	}
	return c.arm(cfg), nil
}

// Pause cancels the pending tick and pauses the iterator.
func (c *Controller) Pause() error {
	if err := c.it.Pause(); err != nil {
		return err
	}
	c.stop()
	return nil
}

// Resume continues a paused run.
func (c *Controller) Resume(cfg model.DescentConfig) (tea.Cmd, error) {
	if err := c.it.Resume(cfg); err != nil {
		return nil, err
	}
	return c.arm(cfg), nil
}

// Toggle maps the single start/pause button onto Start, Pause and Resume.
func (c *Controller) Toggle(cfg model.DescentConfig) (tea.Cmd, error) {
	switch c.it.Phase() {
	case descent.Running:
		return nil, c.Pause()
	case descent.Paused:
		return c.Resume(cfg)
	default:
		return c.Start(cfg)
	}
}

// Reset stops any run and clears the path.
func (c *Controller) Reset() {
	c.stop()
	c.it.Reset()
}

// Reseed stops any run and seeds a new path at x.
func (c *Controller) Reseed(x float64) error {
	c.stop()
	return c.it.Seed(x)
}

// HandleTick performs one step for a live tick. ok is false for stale ticks,
// which leave the iterator untouched.
func (c *Controller) HandleTick(msg TickMsg, cfg model.DescentConfig, bounds descent.Bounds) (ev descent.Event, cmd tea.Cmd, ok bool) {
	if !c.live || msg.Generation != c.generation || c.it.Phase() != descent.Running {
		return descent.Event{}, nil, false
	}
	c.live = false
	ev = c.it.Step(cfg, bounds)
	if ev.Phase == descent.Running {
		return ev, c.arm(cfg), true
	}
	c.stop()
	return ev, nil, true
}

func (c *Controller) arm(cfg model.DescentConfig) tea.Cmd {
	c.generation++
	c.live = true
	return c.schedule(cfg.StepInterval, TickMsg{Generation: c.generation})
}

func (c *Controller) stop() {
	c.generation++
	c.live = false
}
