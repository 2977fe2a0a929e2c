package repository

import "github.com/QingMing-Bot/nvmeof-runner/internal/domain"

// HistoryRepoIface abstracts the audit-trail store.
type HistoryRepoIface interface {
	Insert(*domain.ExecHistory) error
	ListRecent(int) ([]domain.ExecHistory, error)
	ListByRun(string) ([]domain.ExecHistory, error)
	Cleanup(int, int) error
	EnsureSchema() error
}

// RunRepoIface abstracts the run-report store.
type RunRepoIface interface {
	Save(*domain.TestReport) error
	Get(string) (*domain.TestReport, error)
	ListRecent(int) ([]domain.TestReport, error)
	EnsureSchema() error
}

var _ HistoryRepoIface = (*HistoryRepo)(nil)
var _ RunRepoIface = (*RunRepo)(nil)
