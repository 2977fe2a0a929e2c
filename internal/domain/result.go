package domain

import (
	"time"

	"github.com/google/uuid"
)

// CommandResult is the outcome of one remote execution. Failures are
// data, not errors: transport-level faults are reported with exit code
// -1 and the fault text in Stderr so multi-step sequences can inspect
// and log every step uniformly.
type CommandResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
	Success  bool   `json:"success"`
}

// BenchmarkSpec names one fio invocation of the battery.
type BenchmarkSpec struct {
	Name      string `yaml:"name" json:"name"`
	RW        string `yaml:"rw" json:"rw"`
	BlockSize string `yaml:"bs" json:"bs"`
	Size      string `yaml:"size,omitempty" json:"size,omitempty"`
	Runtime   int    `yaml:"runtime,omitempty" json:"runtime,omitempty"` // seconds
}

// BenchmarkResult is one battery entry's parsed fio output. A failed or
// unparsable run keeps its name with a nil Output.
type BenchmarkResult struct {
	Name   string     `json:"name"`
	Output *FioOutput `json:"output,omitempty"`
}

// OK reports whether the run produced usable output.
func (r BenchmarkResult) OK() bool { return r.Output != nil }

// TestReport is the aggregate outcome of one orchestration run.
// Results keep execution order; Error is the first aborted phase's
// message, empty on a clean run.
type TestReport struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Results    []BenchmarkResult `json:"results"`
	Error      string            `json:"error,omitempty"`
}

// NewRunID mints the identifier shared by a report and its audit rows.
func NewRunID() string { return uuid.NewString() }

// NewTestReport allocates a report for the given run.
func NewTestReport(runID string) *TestReport {
	return &TestReport{RunID: runID, StartedAt: time.Now()}
}

// Add appends a benchmark record, preserving execution order.
func (t *TestReport) Add(r BenchmarkResult) { t.Results = append(t.Results, r) }

// Result returns the record for name, if recorded.
func (t *TestReport) Result(name string) (BenchmarkResult, bool) {
	for _, r := range t.Results {
		if r.Name == name {
			return r, true
		}
	}
	return BenchmarkResult{}, false
}

// Failed reports whether the run recorded a top-level error.
func (t *TestReport) Failed() bool { return t.Error != "" }
