// Package main provides the CLI entrypoint for tuigrad.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verte-zerg/tuigrad/internal/config"
	"github.com/verte-zerg/tuigrad/internal/descent"
	"github.com/verte-zerg/tuigrad/internal/expr"
	"github.com/verte-zerg/tuigrad/internal/generator"
	"github.com/verte-zerg/tuigrad/internal/history"
	"github.com/verte-zerg/tuigrad/internal/logging"
	"github.com/verte-zerg/tuigrad/internal/model"
	"github.com/verte-zerg/tuigrad/internal/numeric"
	"github.com/verte-zerg/tuigrad/internal/plot"
	"github.com/verte-zerg/tuigrad/internal/presets"
	"github.com/verte-zerg/tuigrad/internal/session"
	"github.com/verte-zerg/tuigrad/internal/store"
	"github.com/verte-zerg/tuigrad/internal/tui"
	"github.com/verte-zerg/tuigrad/internal/viewport"
)

const (
	defaultLearningRate  = 0.1
	defaultIntervalMs    = 100
	defaultMaxIterations = 100
	defaultEpsilon       = 0.001
	defaultXMin          = -10.0
	defaultXMax          = 10.0
	defaultYMin          = -10.0
	defaultYMax          = 10.0
	defaultRenderRows    = 16
	defaultTraceHeight   = 8
)

// descentFlags holds the settings shared by the interactive and headless commands.
type descentFlags struct {
	expression     string
	learningRate   float64
	intervalMs     int
	maxIterations  int
	epsilon        float64
	derivativeStep float64
	xMin           float64
	xMax           float64
	yMin           float64
	yMax           float64
	domainMin      float64
	domainMax      float64
	noSave         bool
}

var (
	rootFlags descentFlags
	runFlags  descentFlags

	runSeed  float64
	runTrace bool

	historyExpr  string
	historyLast  int
	historyShow  int64
	historyClear bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tuigrad",
		Short:         "Gradient descent visualizer for the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runInteractiveCmd,
	}
	addDescentFlags(rootCmd, &rootFlags)

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newPresetsCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func addDescentFlags(cmd *cobra.Command, f *descentFlags) {
	cmd.Flags().StringVar(&f.expression, "expr", "", "function of x to plot (default: first preset)")
	cmd.Flags().Float64Var(&f.learningRate, "lr", defaultLearningRate, "learning rate (>= 0)")
	cmd.Flags().IntVar(&f.intervalMs, "interval-ms", defaultIntervalMs, "delay between animation steps in milliseconds")
	cmd.Flags().IntVar(&f.maxIterations, "max-iter", defaultMaxIterations, "maximum number of steps")
	cmd.Flags().Float64Var(&f.epsilon, "epsilon", defaultEpsilon, "stop when |gradient| falls below this value")
	cmd.Flags().Float64Var(&f.derivativeStep, "derivative-step", numeric.DefaultStep, "central difference step")
	cmd.Flags().Float64Var(&f.xMin, "x-min", defaultXMin, "left edge of the default window")
	cmd.Flags().Float64Var(&f.xMax, "x-max", defaultXMax, "right edge of the default window")
	cmd.Flags().Float64Var(&f.yMin, "y-min", defaultYMin, "bottom edge of the default window")
	cmd.Flags().Float64Var(&f.yMax, "y-max", defaultYMax, "top edge of the default window")
	cmd.Flags().Float64Var(&f.domainMin, "domain-min", 0, "fixed search interval start (default: visible x range)")
	cmd.Flags().Float64Var(&f.domainMax, "domain-max", 0, "fixed search interval end (default: visible x range)")
	cmd.Flags().BoolVar(&f.noSave, "no-save", false, "do not record finished runs")
}

// resolvedSettings is the validated result of flags merged with the config file.
type resolvedSettings struct {
	expression string
	descent    model.DescentConfig
	viewport   viewport.Bounds
	domain     *model.Domain
	logFile    string
	logLevel   string
}

func resolveSettings(cmd *cobra.Command, f *descentFlags) (resolvedSettings, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return resolvedSettings{}, fmt.Errorf("failed to load config: %w", err)
	}
	return mergeSettings(cmd, f, fileCfg)
}

func mergeSettings(cmd *cobra.Command, f *descentFlags, fileCfg config.FileConfig) (resolvedSettings, error) {
	applyStringConfig(cmd, "expr", &f.expression, fileCfg.Descent.Expression)
	applyFloatConfig(cmd, "lr", &f.learningRate, fileCfg.Descent.LearningRate)
	applyIntConfig(cmd, "interval-ms", &f.intervalMs, fileCfg.Descent.IntervalMs)
	applyIntConfig(cmd, "max-iter", &f.maxIterations, fileCfg.Descent.MaxIterations)
	applyFloatConfig(cmd, "epsilon", &f.epsilon, fileCfg.Descent.Epsilon)
	applyFloatConfig(cmd, "derivative-step", &f.derivativeStep, fileCfg.Descent.DerivativeStep)
	applyFloatConfig(cmd, "x-min", &f.xMin, fileCfg.Viewport.XMin)
	applyFloatConfig(cmd, "x-max", &f.xMax, fileCfg.Viewport.XMax)
	applyFloatConfig(cmd, "y-min", &f.yMin, fileCfg.Viewport.YMin)
	applyFloatConfig(cmd, "y-max", &f.yMax, fileCfg.Viewport.YMax)
	applyFloatConfig(cmd, "domain-min", &f.domainMin, fileCfg.Domain.Min)
	applyFloatConfig(cmd, "domain-max", &f.domainMax, fileCfg.Domain.Max)

	s := resolvedSettings{
		expression: strings.TrimSpace(f.expression),
		descent: model.DescentConfig{
			LearningRate:   f.learningRate,
			StepInterval:   time.Duration(f.intervalMs) * time.Millisecond,
			MaxIterations:  f.maxIterations,
			Epsilon:        f.epsilon,
			DerivativeStep: f.derivativeStep,
		},
		viewport: viewport.Bounds{XMin: f.xMin, XMax: f.xMax, YMin: f.yMin, YMax: f.yMax},
		logFile:  config.DefaultLogPath(),
		logLevel: logging.DefaultLevel,
	}
	if fileCfg.Log.File != nil {
		s.logFile = *fileCfg.Log.File
	}
	if fileCfg.Log.Level != nil {
		s.logLevel = *fileCfg.Log.Level
	}

	minSet := cmd.Flags().Changed("domain-min") || fileCfg.Domain.Min != nil
	maxSet := cmd.Flags().Changed("domain-max") || fileCfg.Domain.Max != nil
	if minSet != maxSet {
		return resolvedSettings{}, fmt.Errorf("--domain-min and --domain-max must be set together")
	}
	if minSet {
		s.domain = &model.Domain{Min: f.domainMin, Max: f.domainMax}
	}
	if err := validateConfig(s); err != nil {
		return resolvedSettings{}, err
	}
	return s, nil
}

func runInteractiveCmd(cmd *cobra.Command, _ []string) error {
	settings, err := resolveSettings(cmd, &rootFlags)
	if err != nil {
		return err
	}
	logger, err := logging.New(settings.logFile, settings.logLevel)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer func() {
		// Best-effort flush of the diagnostics log.
		_ = logger.Sync()
	}()

	presetList, fromFile, err := presets.LoadOrBuiltin(config.DefaultPresetsPath())
	if err != nil {
		return fmt.Errorf("failed to load presets: %w", err)
	}
	if fromFile {
		logger.Info("presets loaded", zap.String("path", config.DefaultPresetsPath()), zap.Int("count", len(presetList)))
	}

	var recorder session.Recorder
	if !rootFlags.noSave {
		st, err := store.Open(config.DefaultDBPath())
		if err != nil {
			return fmt.Errorf("failed to open db: %w", err)
		}
		defer func() {
			if cerr := st.Close(); cerr != nil {
				logErrf("failed to close db: %v\n", cerr)
			}
		}()
		recorder = st
	}

	sess, err := session.New(session.Options{
		Viewport: settings.viewport,
		Config:   settings.descent,
		Domain:   settings.domain,
		Logger:   logger,
		Recorder: recorder,
	})
	if err != nil {
		return err
	}
	m := tui.NewModel(sess, tui.Options{
		Presets:    presetList,
		Expression: settings.expression,
		Generator:  generator.New(),
		Color:      plot.ColorEnabled(os.Stdout),
	})
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a descent without the UI and print the result",
		Args:  cobra.NoArgs,
		RunE:  runHeadlessCmd,
	}
	addDescentFlags(cmd, &runFlags)
	cmd.Flags().Float64Var(&runSeed, "seed", 0, "starting x (default: random inside the search interval)")
	cmd.Flags().BoolVar(&runTrace, "trace", false, "print every step")
	return cmd
}

func runHeadlessCmd(cmd *cobra.Command, _ []string) error {
	settings, err := resolveSettings(cmd, &runFlags)
	if err != nil {
		return err
	}
	if settings.expression == "" {
		return fmt.Errorf("--expr is required (or set [descent] expression in the config)")
	}
	fn, err := expr.Compile(settings.expression)
	if err != nil {
		return fmt.Errorf("failed to compile expression: %w", err)
	}
	bounds := descent.Bounds{Min: settings.viewport.XMin, Max: settings.viewport.XMax}
	if settings.domain != nil {
		bounds = descent.Bounds{Min: settings.domain.Min, Max: settings.domain.Max}
	}

	out := cmd.OutOrStdout()
	seed := runSeed
	if !cmd.Flags().Changed("seed") {
		seed, err = generator.New().Seed(fn, bounds)
		if err != nil {
			return fmt.Errorf("failed to pick a starting point: %w", err)
		}
		logErrf("Random starting point x=%.4f\n", seed)
	}

	startedAt := time.Now()
	state, err := descent.Run(fn, seed, settings.descent, bounds, func(ev descent.Event) {
		if runTrace {
			printStep(out, ev)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to start descent: %w", err)
	}
	run, err := buildRunRecord(fn.Source(), state, settings.descent, startedAt, time.Now())
	if err != nil {
		return err
	}

	if err := printRunResult(out, settings, fn, run); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if runFlags.noSave {
		return nil
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	id, err := st.InsertRun(context.Background(), run)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	logErrf("Saved run #%d\n", id)
	return nil
}

func printStep(w io.Writer, ev descent.Event) {
	if ev.Appended {
		if _, err := fmt.Fprintf(w, "x=%-12.6g f(x)=%-12.6g grad=%.6g\n", ev.Point.X, ev.Point.Y, ev.Gradient); err != nil {
			// Best-effort trace output.
			_ = err
		}
		return
	}
	if _, err := fmt.Fprintf(w, "x=%-12.6g rejected (%s) grad=%.6g\n", ev.Attempted, ev.Phase, ev.Gradient); err != nil {
		// Best-effort trace output.
		_ = err
	}
}

func buildRunRecord(source string, state descent.State, cfg model.DescentConfig, startedAt, endedAt time.Time) (model.RunRecord, error) {
	outcome, ok := state.Phase.Outcome()
	if !ok {
		return model.RunRecord{}, fmt.Errorf("descent stopped in non-terminal phase %s", state.Phase)
	}
	seed, _ := state.Seed()
	last, _ := state.Last()
	return model.RunRecord{
		StartedAt:     startedAt,
		EndedAt:       endedAt,
		Expression:    source,
		Seed:          seed,
		Final:         last,
		Iterations:    state.Iteration,
		LearningRate:  cfg.LearningRate,
		Epsilon:       cfg.Epsilon,
		MaxIterations: cfg.MaxIterations,
		Outcome:       outcome,
		Path:          state.Path,
	}, nil
}

func printRunResult(w io.Writer, settings resolvedSettings, fn numeric.Function, run model.RunRecord) error {
	phase := phaseFor(run.Outcome)
	if _, err := fmt.Fprintf(w, "%s (%d iterations, f(x) = %.6g)\n\n", session.OutcomeMessage(phase, run.Final.X), run.Iterations, run.Final.Y); err != nil {
		return err
	}
	width := plot.TerminalWidth()
	mapper, err := viewport.New(settings.viewport, width*2, defaultRenderRows*4)
	if err != nil {
		return err
	}
	useColor := plot.ColorEnabled(w)
	scene := plot.Scene{Mapper: mapper, Curve: plot.SampleCurve(fn, mapper), Path: run.Path}
	if _, err := fmt.Fprintln(w, plot.Render(scene, useColor)); err != nil {
		return err
	}
	if len(run.Path) < 2 {
		return nil
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	return plot.PlotSeriesWithColor(w, "Descent trace", history.TraceSeries(run.Path), plot.PlotWidthFor(width), defaultTraceHeight, useColor)
}

func phaseFor(o model.Outcome) descent.Phase {
	switch o {
	case model.OutcomeConverged:
		return descent.Converged
	case model.OutcomeOutOfBounds:
		return descent.OutOfBounds
	case model.OutcomeMaxIterations:
		return descent.MaxIterationsReached
	default:
		return descent.EvaluationFailed
	}
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&historyExpr, "expr", "", "only runs of this expression")
	cmd.Flags().IntVar(&historyLast, "last", 0, "limit to last N runs")
	cmd.Flags().Int64Var(&historyShow, "show", 0, "chart the run with this id")
	cmd.Flags().BoolVar(&historyClear, "clear", false, "delete all recorded runs")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	if historyLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	ctx := context.Background()
	out := cmd.OutOrStdout()
	switch {
	case historyClear:
		n, err := st.DeleteRuns(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		logErrf("Deleted %d runs\n", n)
		return nil
	case historyShow > 0:
		run, err := st.GetRun(ctx, historyShow)
		if errors.Is(err, store.ErrRunNotFound) {
			return fmt.Errorf("no run with id %d", historyShow)
		}
		if err != nil {
			return fmt.Errorf("failed to load run: %w", err)
		}
		return history.RenderTrace(out, run, plot.TerminalWidth(), defaultTraceHeight, plot.ColorEnabled(out))
	}

	runs, err := history.Load(ctx, st, model.HistoryFilter{Expression: historyExpr, Last: historyLast})
	if err != nil {
		return err
	}
	if err := history.RenderSummary(out, runs); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := history.RenderRunTable(out, runs); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List example functions",
		Args:  cobra.NoArgs,
		RunE:  runPresetsCmd,
	}
}

func runPresetsCmd(cmd *cobra.Command, _ []string) error {
	path := config.DefaultPresetsPath()
	list, fromFile, err := presets.LoadOrBuiltin(path)
	if err != nil {
		return fmt.Errorf("failed to load presets: %w", err)
	}
	if fromFile {
		logErrf("Presets from %s\n", path)
	} else {
		logErrf("Built-in presets (add your own to %s)\n", path)
	}
	logErrf("Functions: %s; constants: pi, e\n", strings.Join(expr.Functions(), ", "))
	for _, p := range list {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), p); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# tuigrad configuration
# Uncomment a value to enable it. CLI flags override config values.

[descent]
# expression = "x^2"        # Function plotted on start
# learning-rate = %g        # Step size (>= 0)
# interval-ms = %d          # Delay between animation steps
# max-iterations = %d       # Stop after this many steps
# epsilon = %g              # Stop when |gradient| is below this value
# derivative-step = %g      # Central difference step

[viewport]
# x-min = %g
# x-max = %g
# y-min = %g
# y-max = %g

[domain]
# Fixed search interval. Without it a run stops at the visible x range.
# min = -10.0
# max = 10.0

[log]
# file = %q
# level = %q                # debug, info, warn or error
`,
		defaultLearningRate,
		defaultIntervalMs,
		defaultMaxIterations,
		defaultEpsilon,
		numeric.DefaultStep,
		defaultXMin,
		defaultXMax,
		defaultYMin,
		defaultYMax,
		config.DefaultLogPath(),
		logging.DefaultLevel,
	)
}

func validateConfig(s resolvedSettings) error {
	cfg := s.descent
	if math.IsNaN(cfg.LearningRate) || math.IsInf(cfg.LearningRate, 0) || cfg.LearningRate < 0 {
		return fmt.Errorf("--lr must be >= 0")
	}
	if cfg.StepInterval <= 0 {
		return fmt.Errorf("--interval-ms must be > 0")
	}
	if cfg.MaxIterations <= 0 {
		return fmt.Errorf("--max-iter must be > 0")
	}
	if cfg.Epsilon <= 0 {
		return fmt.Errorf("--epsilon must be > 0")
	}
	if cfg.DerivativeStep <= 0 {
		return fmt.Errorf("--derivative-step must be > 0")
	}
	if s.viewport.XMin >= s.viewport.XMax {
		return fmt.Errorf("--x-min must be < --x-max")
	}
	if s.viewport.YMin >= s.viewport.YMax {
		return fmt.Errorf("--y-min must be < --y-max")
	}
	if s.domain != nil && s.domain.Min >= s.domain.Max {
		return fmt.Errorf("--domain-min must be < --domain-max")
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
