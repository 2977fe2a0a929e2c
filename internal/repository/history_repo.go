package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/QingMing-Bot/nvmeof-runner/internal/domain"
)

// HistoryRepo persists the per-command audit trail.
type HistoryRepo struct{ db *sql.DB }

func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{db: db} }

func (r *HistoryRepo) EnsureSchema() error {
	_, err := r.db.Exec(`CREATE TABLE IF NOT EXISTS exec_history(
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT,
        host TEXT,
        command TEXT,
        stdout TEXT,
        stderr TEXT,
        exit_code INTEGER,
        error_text TEXT,
        started_at TIMESTAMP,
        finished_at TIMESTAMP,
        duration_ms INTEGER
    )`)
	return err
}

func (r *HistoryRepo) Insert(h *domain.ExecHistory) error {
	now := time.Now()
	if h.StartedAt.IsZero() {
		h.StartedAt = now
	}
	if h.FinishedAt.IsZero() {
		h.FinishedAt = now
	}
	res, err := r.db.Exec(`INSERT INTO exec_history(run_id,host,command,stdout,stderr,exit_code,error_text,started_at,finished_at,duration_ms)
        VALUES (?,?,?,?,?,?,?,?,?,?)`,
		h.RunID, h.Host, h.Command, h.Stdout, h.Stderr, h.ExitCode, h.ErrorText, h.StartedAt, h.FinishedAt, h.DurationMs)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	h.ID = id
	return nil
}

func (r *HistoryRepo) ListRecent(limit int) ([]domain.ExecHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.list(`SELECT id,run_id,host,command,stdout,stderr,exit_code,error_text,started_at,finished_at,duration_ms
        FROM exec_history ORDER BY id DESC LIMIT ?`, limit)
}

// ListByRun returns every audit row of one run in execution order.
func (r *HistoryRepo) ListByRun(runID string) ([]domain.ExecHistory, error) {
	return r.list(`SELECT id,run_id,host,command,stdout,stderr,exit_code,error_text,started_at,finished_at,duration_ms
        FROM exec_history WHERE run_id = ? ORDER BY id ASC`, runID)
}

func (r *HistoryRepo) list(query string, args ...any) ([]domain.ExecHistory, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []domain.ExecHistory
	for rows.Next() {
		var h domain.ExecHistory
		if err := rows.Scan(&h.ID, &h.RunID, &h.Host, &h.Command, &h.Stdout, &h.Stderr,
			&h.ExitCode, &h.ErrorText, &h.StartedAt, &h.FinishedAt, &h.DurationMs); err != nil {
			return nil, err
		}
		list = append(list, h)
	}
	return list, rows.Err()
}

// Cleanup trims rows beyond the retention window and row cap.
func (r *HistoryRepo) Cleanup(retentionDays, maxRows int) error {
	if retentionDays > 0 {
		_, _ = r.db.Exec(`DELETE FROM exec_history WHERE started_at < datetime('now', ?)`,
			fmt.Sprintf("-%d days", retentionDays))
	}
	if maxRows > 0 {
		_, _ = r.db.Exec(`DELETE FROM exec_history WHERE id IN (SELECT id FROM exec_history ORDER BY id DESC LIMIT -1 OFFSET ?)`, maxRows)
	}
	return nil
}
