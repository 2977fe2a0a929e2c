package domain

import "time"

// ExecHistory records one remote command execution on one host. Rows
// are the per-run audit trail persisted alongside the report.
type ExecHistory struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	Host       string    `json:"host"`
	Command    string    `json:"command"`
	Stdout     string    `json:"stdout"`
	Stderr     string    `json:"stderr"`
	ExitCode   int       `json:"exit_code"`
	ErrorText  string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMs int64     `json:"duration_ms"`
}
