package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const fioSample = `{
  "fio version": "fio-3.35",
  "jobs": [
    {
      "jobname": "randrw",
      "read":  {"io_bytes": 104857600, "bw": 51200, "iops": 12800.5},
      "write": {"io_bytes": 104857600, "bw": 51200, "iops": 12799.5}
    }
  ]
}`

func TestParseFioOutput(t *testing.T) {
	out, err := ParseFioOutput(fioSample)
	require.NoError(t, err)
	require.Len(t, out.Jobs, 1)

	job := out.Jobs[0]
	require.Equal(t, "randrw", job.JobName)
	require.True(t, job.Read.Active())
	require.True(t, job.Write.Active())
	require.InDelta(t, 50.0, job.Read.BWMBps(), 0.01)
	require.InDelta(t, 12800.5, job.Read.IOPS, 0.001)
}

func TestParseFioOutputMalformed(t *testing.T) {
	out, err := ParseFioOutput("fio: command not found")
	require.Error(t, err)
	require.Nil(t, out)
}

func TestReportOrderAndLookup(t *testing.T) {
	report := NewTestReport(NewRunID())
	report.Add(BenchmarkResult{Name: "seq_read", Output: &FioOutput{}})
	report.Add(BenchmarkResult{Name: "rand_read"})

	require.Equal(t, "seq_read", report.Results[0].Name)
	require.Equal(t, "rand_read", report.Results[1].Name)

	rec, ok := report.Result("rand_read")
	require.True(t, ok)
	require.False(t, rec.OK())
	require.False(t, report.Failed())

	report.Error = "target setup failed"
	require.True(t, report.Failed())
}
