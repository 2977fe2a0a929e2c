package repository

import (
	"database/sql"
	"encoding/json"

	"github.com/QingMing-Bot/nvmeof-runner/internal/domain"
)

// RunRepo persists one row per orchestration run: the run identity,
// its top-level error and the benchmark records as JSON.
type RunRepo struct{ db *sql.DB }

func NewRunRepo(db *sql.DB) *RunRepo { return &RunRepo{db: db} }

func (r *RunRepo) EnsureSchema() error {
	_, err := r.db.Exec(`CREATE TABLE IF NOT EXISTS runs(
        run_id TEXT PRIMARY KEY,
        error_text TEXT,
        results_json TEXT,
        started_at TIMESTAMP,
        finished_at TIMESTAMP
    )`)
	return err
}

func (r *RunRepo) Save(report *domain.TestReport) error {
	results, err := json.Marshal(report.Results)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`INSERT OR REPLACE INTO runs(run_id,error_text,results_json,started_at,finished_at)
        VALUES (?,?,?,?,?)`,
		report.RunID, report.Error, string(results), report.StartedAt, report.FinishedAt)
	return err
}

// Get restores a stored report by run id.
func (r *RunRepo) Get(runID string) (*domain.TestReport, error) {
	row := r.db.QueryRow(`SELECT run_id,error_text,results_json,started_at,finished_at FROM runs WHERE run_id = ?`, runID)
	var report domain.TestReport
	var results string
	if err := row.Scan(&report.RunID, &report.Error, &results, &report.StartedAt, &report.FinishedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(results), &report.Results); err != nil {
		return nil, err
	}
	return &report, nil
}

// ListRecent returns the latest run ids with their error state.
func (r *RunRepo) ListRecent(limit int) ([]domain.TestReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`SELECT run_id,error_text,started_at,finished_at FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []domain.TestReport
	for rows.Next() {
		var report domain.TestReport
		if err := rows.Scan(&report.RunID, &report.Error, &report.StartedAt, &report.FinishedAt); err != nil {
			return nil, err
		}
		list = append(list, report)
	}
	return list, rows.Err()
}
