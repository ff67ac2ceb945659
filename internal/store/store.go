// Package store handles SQLite persistence of descent runs.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/tuigrad/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrRunNotFound is returned by GetRun for unknown ids.
var ErrRunNotFound = errors.New("run not found")

// Store wraps SQLite access for run history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			expression TEXT NOT NULL,
			seed_x REAL NOT NULL,
			seed_y REAL NOT NULL,
			final_x REAL NOT NULL,
			final_y REAL NOT NULL,
			iterations INTEGER NOT NULL,
			learning_rate REAL NOT NULL,
			epsilon REAL NOT NULL,
			max_iterations INTEGER NOT NULL,
			outcome TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS run_points (
			run_id INTEGER NOT NULL,
			idx INTEGER NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			PRIMARY KEY (run_id, idx)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ended_at ON runs(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_expression ON runs(expression);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertRun stores a finished run and its path.
func (s *Store) InsertRun(ctx context.Context, run model.RunRecord) (_ int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (started_at, ended_at, expression, seed_x, seed_y, final_x, final_y, iterations, learning_rate, epsilon, max_iterations, outcome)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.StartedAt.Format(time.RFC3339Nano),
		run.EndedAt.Format(time.RFC3339Nano),
		run.Expression,
		run.Seed.X,
		run.Seed.Y,
		run.Final.X,
		run.Final.Y,
		run.Iterations,
		run.LearningRate,
		run.Epsilon,
		run.MaxIterations,
		string(run.Outcome),
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(run.Path) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_points (run_id, idx, x, y) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return 0, err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for i, p := range run.Path {
			if _, err := stmt.ExecContext(ctx, id, i, p.X, p.Y); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

const runColumns = `id, started_at, ended_at, expression, seed_x, seed_y, final_x, final_y, iterations, learning_rate, epsilon, max_iterations, outcome`

// ListRuns returns runs matching filter, oldest first, without their paths.
// filter.Last keeps only the most recent runs.
func (s *Store) ListRuns(ctx context.Context, filter model.HistoryFilter) ([]model.RunRecord, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.Expression != "" {
		clauses = append(clauses, "expression = ?")
		args = append(args, strings.TrimSpace(filter.Expression))
	}
	query := fmt.Sprintf(`SELECT %s FROM runs WHERE %s ORDER BY ended_at DESC, id DESC`, runColumns, strings.Join(clauses, " AND "))
	if filter.Last > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Last)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var runs []model.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	return runs, nil
}

// GetRun loads one run including its path.
func (s *Store) GetRun(ctx context.Context, id int64) (model.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM runs WHERE id = ?`, runColumns), id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RunRecord{}, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return model.RunRecord{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT x, y FROM run_points WHERE run_id = ? ORDER BY idx ASC`, id)
	if err != nil {
		return model.RunRecord{}, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()
	for rows.Next() {
		var p model.PathPoint
		if err := rows.Scan(&p.X, &p.Y); err != nil {
			return model.RunRecord{}, err
		}
		run.Path = append(run.Path, p)
	}
	if err := rows.Err(); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

// DeleteRuns removes all runs and points, returning the number of runs removed.
func (s *Store) DeleteRuns(ctx context.Context) (_ int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM run_points`); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (model.RunRecord, error) {
	var run model.RunRecord
	var startedAt, endedAt, outcome string
	if err := row.Scan(&run.ID, &startedAt, &endedAt, &run.Expression,
		&run.Seed.X, &run.Seed.Y, &run.Final.X, &run.Final.Y,
		&run.Iterations, &run.LearningRate, &run.Epsilon, &run.MaxIterations, &outcome); err != nil {
		return model.RunRecord{}, err
	}
	var err error
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return model.RunRecord{}, err
	}
	if run.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt); err != nil {
		return model.RunRecord{}, err
	}
	run.Outcome = model.Outcome(outcome)
	return run, nil
}
