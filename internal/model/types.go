// Package model defines shared data structures.
package model

import "time"

// Point is a position in mathematical coordinates.
type Point struct {
	X float64
	Y float64
}

// PathPoint is one position visited by a descent run.
type PathPoint = Point

// DescentConfig defines user-adjustable descent settings.
type DescentConfig struct {
	LearningRate   float64
	StepInterval   time.Duration
	MaxIterations  int
	Epsilon        float64
	DerivativeStep float64
}

// Domain is an optional fixed search interval that replaces the viewport bounds.
type Domain struct {
	Min float64
	Max float64
}

// Outcome names how a descent run ended.
type Outcome string

// Run outcomes stored in history.
const (
	OutcomeConverged        Outcome = "converged"
	OutcomeOutOfBounds      Outcome = "out-of-bounds"
	OutcomeMaxIterations    Outcome = "max-iterations"
	OutcomeEvaluationFailed Outcome = "evaluation-failed"
)

// RunRecord captures a finished descent run.
type RunRecord struct {
	ID            int64
	StartedAt     time.Time
	EndedAt       time.Time
	Expression    string
	Seed          Point
	Final         Point
	Iterations    int
	LearningRate  float64
	Epsilon       float64
	MaxIterations int
	Outcome       Outcome
	Path          []PathPoint
}

// HistoryFilter narrows history queries.
type HistoryFilter struct {
	Expression string
	Last       int
}
