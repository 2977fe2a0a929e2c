package service

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/golang/glog"

	"github.com/QingMing-Bot/nvmeof-runner/internal/domain"
)

// TargetController abstracts the target side of a run.
type TargetController interface {
	Setup() bool
	Verify() bool
	Cleanup()
}

// InitiatorController abstracts the initiator side of a run.
type InitiatorController interface {
	Discover() bool
	Connect() bool
	RunBenchmark(domain.BenchmarkSpec) (domain.BenchmarkResult, error)
	Disconnect()
}

// phaseError is the single escalation path: a required phase reporting
// failure ends phase execution and is caught once at the top of Run.
type phaseError struct{ reason string }

func (e *phaseError) Error() string { return e.reason }

// DefaultBattery is the fixed I/O workload set run after connection.
func DefaultBattery() []domain.BenchmarkSpec {
	return []domain.BenchmarkSpec{
		{Name: "seq_read", RW: "read", BlockSize: "1M", Size: "1G"},
		{Name: "rand_read", RW: "randread", BlockSize: "4k", Runtime: 60},
		{Name: "rand_write", RW: "randwrite", BlockSize: "4k", Runtime: 60},
		{Name: "randrw", RW: "randrw", BlockSize: "4k", Runtime: 60},
	}
}

// Suite sequences the test phases across both controllers and
// aggregates benchmark output into a single report. Target cleanup is
// guaranteed on every exit path; that guarantee is the reason this
// type exists.
type Suite struct {
	runID     string
	target    TargetController
	initiator InitiatorController
	battery   []domain.BenchmarkSpec
	summary   io.Writer
}

func NewSuite(runID string, target TargetController, initiator InitiatorController, battery []domain.BenchmarkSpec) *Suite {
	if len(battery) == 0 {
		battery = DefaultBattery()
	}
	return &Suite{runID: runID, target: target, initiator: initiator, battery: battery, summary: os.Stdout}
}

// SetSummaryWriter redirects the printable summary (stdout by default).
func (s *Suite) SetSummaryWriter(w io.Writer) { s.summary = w }

// Run executes the full phase sequence. A failed required phase aborts
// the remaining phases; records gathered before the abort are retained
// and the phase failure becomes the report's top-level error.
func (s *Suite) Run() *domain.TestReport {
	report := domain.NewTestReport(s.runID)
	glog.Info("Starting NVMe-oF remote test suite")

	defer func() {
		glog.Info("[Cleanup] Cleaning up target...")
		s.target.Cleanup()
		report.FinishedAt = time.Now()
		glog.Info("Test suite completed")
	}()

	if err := s.runPhases(report); err != nil {
		glog.Errorf("Test suite failed: %v", err)
		report.Error = err.Error()
	}
	return report
}

func (s *Suite) runPhases(report *domain.TestReport) error {
	glog.Info("[Phase 1] Setting up target...")
	if !s.target.Setup() {
		return &phaseError{"target setup failed"}
	}

	glog.Info("[Phase 2] Verifying target...")
	if !s.target.Verify() {
		return &phaseError{"target verification failed"}
	}

	glog.Info("[Phase 3] Discovering target from initiator...")
	if !s.initiator.Discover() {
		return &phaseError{"target discovery failed"}
	}

	glog.Info("[Phase 4] Connecting to target...")
	if !s.initiator.Connect() {
		return &phaseError{"connection failed"}
	}
	// Disconnect is owed as soon as the connect phase succeeds,
	// whatever the benchmarks do.
	disconnected := false
	disconnect := func() {
		if disconnected {
			return
		}
		disconnected = true
		glog.Info("[Phase 6] Disconnecting...")
		s.initiator.Disconnect()
	}
	defer disconnect()

	glog.Info("[Phase 5] Running I/O tests...")
	for _, spec := range s.battery {
		rec, err := s.initiator.RunBenchmark(spec)
		if err != nil {
			return &phaseError{fmt.Sprintf("benchmark %s: %v", spec.Name, err)}
		}
		report.Add(rec)
	}
	disconnect()

	glog.Info("[Phase 7] Test results summary")
	s.printSummary(report)
	return nil
}

// printSummary renders every non-empty benchmark record.
func (s *Suite) printSummary(report *domain.TestReport) {
	for _, rec := range report.Results {
		if !rec.OK() {
			fmt.Fprintf(s.summary, "\n%s: no result\n", rec.Name)
			continue
		}
		for _, job := range rec.Output.Jobs {
			fmt.Fprintf(s.summary, "\n%s:\n", job.JobName)
			if job.Read.Active() {
				fmt.Fprintf(s.summary, "  Read:  %.2f MB/s, %.0f IOPS\n", job.Read.BWMBps(), job.Read.IOPS)
			}
			if job.Write.Active() {
				fmt.Fprintf(s.summary, "  Write: %.2f MB/s, %.0f IOPS\n", job.Write.BWMBps(), job.Write.IOPS)
			}
		}
	}
}
