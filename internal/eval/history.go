package eval

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// History stores benchmark run metrics in SQLite so successive runs can be
// compared over time.
type History struct {
	db *sql.DB
}

// OpenHistory opens (or creates) the history database at path. An empty path
// uses an in-memory database.
func OpenHistory(path string) (*History, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// WAL keeps concurrent readers cheap while a run records results.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	history := &History{db: db}
	if err := history.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return history, nil
}

func (h *History) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		model TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		total_evaluations INTEGER NOT NULL,
		total_errors INTEGER NOT NULL,
		weighted_success_rate REAL NOT NULL,
		reliability_score REAL NOT NULL
	);
	CREATE TABLE IF NOT EXISTS scenario_metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		scenario TEXT NOT NULL,
		category TEXT NOT NULL,
		success_rate REAL NOT NULL,
		avg_duration_ms REAL NOT NULL,
		p95_duration_ms REAL NOT NULL,
		error_rate REAL NOT NULL,
		tool_calls_per_request REAL NOT NULL,
		consistency_score REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_scenario_metrics_run ON scenario_metrics(run_id);
	CREATE INDEX IF NOT EXISTS idx_scenario_metrics_name ON scenario_metrics(scenario);
	`
	_, err := h.db.Exec(schema)
	return err
}

// Close releases the database handle.
func (h *History) Close() error {
	return h.db.Close()
}

// RecordRun persists one completed benchmark report.
func (h *History) RecordRun(ctx context.Context, report *Report) (int64, error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs (name, model, started_at, finished_at, total_evaluations,
			total_errors, weighted_success_rate, reliability_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		report.Name, report.Model,
		report.StartedAt.Unix(), report.FinishedAt.Unix(),
		report.Overall.TotalEvaluations, report.Overall.TotalErrors,
		report.Overall.WeightedSuccessRate, report.Overall.ReliabilityScore)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, scenario := range report.Scenarios {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO scenario_metrics (run_id, scenario, category, success_rate,
				avg_duration_ms, p95_duration_ms, error_rate, tool_calls_per_request,
				consistency_score)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, scenario.Scenario, scenario.Category,
			scenario.Metrics.SuccessRate, scenario.Metrics.AvgDurationMS,
			scenario.Metrics.P95DurationMS, scenario.Metrics.ErrorRate,
			scenario.Metrics.ToolCallsPerRequest, scenario.Metrics.ConsistencyScore)
		if err != nil {
			return 0, fmt.Errorf("failed to insert scenario metrics: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

// RunSummary is one stored run's headline numbers.
type RunSummary struct {
	ID                  int64
	Name                string
	Model               string
	StartedAt           time.Time
	TotalEvaluations    int
	TotalErrors         int
	WeightedSuccessRate float64
	ReliabilityScore    float64
}

// RecentRuns returns the newest runs, most recent first.
func (h *History) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, name, model, started_at, total_evaluations, total_errors,
			weighted_success_rate, reliability_score
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		var startedAt int64
		if err := rows.Scan(&run.ID, &run.Name, &run.Model, &startedAt,
			&run.TotalEvaluations, &run.TotalErrors,
			&run.WeightedSuccessRate, &run.ReliabilityScore); err != nil {
			return nil, err
		}
		run.StartedAt = time.Unix(startedAt, 0)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// TrendPoint is one scenario measurement over time.
type TrendPoint struct {
	RunID         int64
	StartedAt     time.Time
	SuccessRate   float64
	AvgDurationMS float64
}

// ScenarioTrend returns a scenario's metrics across runs, oldest first.
func (h *History) ScenarioTrend(ctx context.Context, scenario string, limit int) ([]TrendPoint, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT m.run_id, r.started_at, m.success_rate, m.avg_duration_ms
		FROM scenario_metrics m
		JOIN runs r ON r.id = m.run_id
		WHERE m.scenario = ?
		ORDER BY r.started_at ASC, m.run_id ASC LIMIT ?`, scenario, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []TrendPoint
	for rows.Next() {
		var point TrendPoint
		var startedAt int64
		if err := rows.Scan(&point.RunID, &startedAt, &point.SuccessRate, &point.AvgDurationMS); err != nil {
			return nil, err
		}
		point.StartedAt = time.Unix(startedAt, 0)
		points = append(points, point)
	}
	return points, rows.Err()
}
