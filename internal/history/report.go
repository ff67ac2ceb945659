// Package history summarizes and renders stored descent runs.
package history

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/verte-zerg/tuigrad/internal/model"
	"github.com/verte-zerg/tuigrad/internal/plot"
)

const sparkChars = " .:-=+*#%@"

var outcomeOrder = []model.Outcome{
	model.OutcomeConverged,
	model.OutcomeMaxIterations,
	model.OutcomeOutOfBounds,
	model.OutcomeEvaluationFailed,
}

// Lister loads runs for a report.
type Lister interface {
	ListRuns(ctx context.Context, filter model.HistoryFilter) ([]model.RunRecord, error)
}

// Summary aggregates a set of runs.
type Summary struct {
	Runs          int
	ByOutcome     map[model.Outcome]int
	AvgIterations float64
	MaxIterations int
}

// Load returns the runs matching filter, oldest first.
func Load(ctx context.Context, l Lister, filter model.HistoryFilter) ([]model.RunRecord, error) {
	runs, err := l.ListRuns(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load runs: %w", err)
	}
	return runs, nil
}

// Summarize counts outcomes and iterations.
func Summarize(runs []model.RunRecord) Summary {
	s := Summary{Runs: len(runs), ByOutcome: map[model.Outcome]int{}}
	if len(runs) == 0 {
		return s
	}
	total := 0
	for _, r := range runs {
		s.ByOutcome[r.Outcome]++
		total += r.Iterations
		if r.Iterations > s.MaxIterations {
			s.MaxIterations = r.Iterations
		}
	}
	s.AvgIterations = float64(total) / float64(len(runs))
	return s
}

// RenderSummary prints run counts per outcome and iteration stats.
func RenderSummary(w io.Writer, runs []model.RunRecord) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs found.")
		return err
	}
	s := Summarize(runs)
	lines := []string{
		"Summary",
		fmt.Sprintf("Runs: %d", s.Runs),
	}
	for _, o := range outcomeOrder {
		if n := s.ByOutcome[o]; n > 0 {
			lines = append(lines, fmt.Sprintf("  %s: %d (%.0f%%)", o, n, 100*float64(n)/float64(s.Runs)))
		}
	}
	iterations := make([]float64, len(runs))
	for i, r := range runs {
		iterations[i] = float64(r.Iterations)
	}
	lines = append(lines,
		fmt.Sprintf("Avg iterations: %.2f", s.AvgIterations),
		fmt.Sprintf("Max iterations: %d", s.MaxIterations),
		fmt.Sprintf("Trend: [%s]", Sparkline(iterations)),
		"",
	)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderRunTable prints one row per run.
func RenderRunTable(w io.Writer, runs []model.RunRecord) error {
	if len(runs) == 0 {
		return nil
	}
	headers := []string{"ID", "Ended", "Expression", "Seed", "Final x", "f(x)", "Iter", "LR", "Outcome"}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			fmt.Sprintf("%d", r.ID),
			r.EndedAt.Local().Format("2006-01-02 15:04"),
			r.Expression,
			fmt.Sprintf("%.4f", r.Seed.X),
			fmt.Sprintf("%.4f", r.Final.X),
			fmt.Sprintf("%.4g", r.Final.Y),
			fmt.Sprintf("%d", r.Iterations),
			fmt.Sprintf("%g", r.LearningRate),
			string(r.Outcome),
		})
	}
	right := map[int]bool{0: true, 3: true, 4: true, 5: true, 6: true, 7: true}
	for _, line := range formatTable(headers, rows, right) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderTrace prints the header of a single run and charts x and f(x) per
// iteration.
func RenderTrace(w io.Writer, run model.RunRecord, width, height int, useColor bool) error {
	header := fmt.Sprintf("Run %d: f(x) = %s, seed x=%.4f, %s after %d iterations (lr=%g, eps=%g)",
		run.ID, run.Expression, run.Seed.X, run.Outcome, run.Iterations, run.LearningRate, run.Epsilon)
	if _, err := fmt.Fprintln(w, header); err != nil {
		return err
	}
	if len(run.Path) < 2 {
		_, err := fmt.Fprintln(w, "Path too short to chart.")
		return err
	}
	return plot.PlotSeriesWithColor(w, "", TraceSeries(run.Path), plot.PlotWidthFor(width), height, useColor)
}

// TraceSeries splits a path into x and f(x) series.
func TraceSeries(path []model.PathPoint) []plot.Series {
	xs := make([]float64, len(path))
	ys := make([]float64, len(path))
	for i, p := range path {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return []plot.Series{
		{Name: "x", Values: xs},
		{Name: "f(x)", Values: ys},
	}
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		idx := int(math.Round((v - minVal) / (maxVal - minVal) * float64(len(sparkChars)-1)))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}
