package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/tuigrad/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "tuigrad.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	return st
}

func sampleRun(expr string, ended time.Time, outcome model.Outcome) model.RunRecord {
	path := []model.PathPoint{{X: 5, Y: 9}, {X: 4.4, Y: 5.76}, {X: 3.92, Y: 3.6864}}
	return model.RunRecord{
		StartedAt:     ended.Add(-time.Second),
		EndedAt:       ended,
		Expression:    expr,
		Seed:          path[0],
		Final:         path[len(path)-1],
		Iterations:    len(path) - 1,
		LearningRate:  0.1,
		Epsilon:       0.001,
		MaxIterations: 100,
		Outcome:       outcome,
		Path:          path,
	}
}

func TestInsertAndGetRun(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	ended := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	id, err := st.InsertRun(ctx, sampleRun("(x-2)^2", ended, model.OutcomeConverged))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	run, err := st.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if run.ID != id || run.Expression != "(x-2)^2" || run.Outcome != model.OutcomeConverged {
		t.Fatalf("unexpected run %+v", run)
	}
	if !run.EndedAt.Equal(ended) || run.Iterations != 2 {
		t.Fatalf("unexpected run fields %+v", run)
	}
	if len(run.Path) != 3 || run.Path[1] != (model.PathPoint{X: 4.4, Y: 5.76}) {
		t.Fatalf("unexpected path %+v", run.Path)
	}
}

func TestGetRunMissing(t *testing.T) {
	st := openTestStore(t)
	if _, err := st.GetRun(context.Background(), 42); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestListRunsFilters(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	exprs := []string{"x^2", "x^2", "sin(x)", "x^2"}
	for i, e := range exprs {
		if _, err := st.InsertRun(ctx, sampleRun(e, base.Add(time.Duration(i)*time.Minute), model.OutcomeConverged)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	all, err := st.ListRuns(ctx, model.HistoryFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 4 || !all[0].EndedAt.Before(all[3].EndedAt) {
		t.Fatalf("expected 4 runs oldest first, got %d", len(all))
	}
	if all[0].Path != nil {
		t.Fatalf("list should not load paths")
	}

	squares, err := st.ListRuns(ctx, model.HistoryFilter{Expression: " x^2 ", Last: 2})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(squares) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(squares))
	}
	if !squares[1].EndedAt.Equal(base.Add(3*time.Minute)) || !squares[0].EndedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("expected the two most recent x^2 runs, got %v and %v", squares[0].EndedAt, squares[1].EndedAt)
	}

	n, err := st.DeleteRuns(ctx)
	if err != nil || n != 4 {
		t.Fatalf("delete: n=%d err=%v", n, err)
	}
	if left, _ := st.ListRuns(ctx, model.HistoryFilter{}); len(left) != 0 {
		t.Fatalf("expected empty history after delete")
	}
}
