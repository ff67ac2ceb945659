package descent

import (
	"errors"
	"fmt"
)

// Errors reported by descent operations. ErrOutOfBounds and ErrMaxIterations
// describe expected terminal outcomes rather than failures.
var (
	ErrNoFunction       = errors.New("plot a function first")
	ErrSeedEvaluation   = errors.New("cannot evaluate function at this point")
	ErrNotSeeded        = errors.New("no starting point selected")
	ErrNotRunning       = errors.New("descent is not running")
	ErrNotPaused        = errors.New("descent is not paused")
	ErrFinished         = errors.New("descent already finished; reset or pick a new starting point")
	ErrOutOfBounds      = errors.New("gradient descent reached the boundary")
	ErrMaxIterations    = errors.New("maximum iterations reached")
	ErrEvaluationFailed = errors.New("function evaluation error")
)

// ConfigError reports an invalid descent setting.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}
