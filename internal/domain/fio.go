package domain

import "encoding/json"

// FioOutput models the parts of fio's --output-format=json we consume:
// a top-level jobs array whose entries carry read/write sub-records.
type FioOutput struct {
	Jobs []FioJob `json:"jobs"`
}

// FioJob is one job record inside fio's JSON output.
type FioJob struct {
	JobName string   `json:"jobname"`
	Read    FioStats `json:"read"`
	Write   FioStats `json:"write"`
}

// FioStats holds the per-direction counters we report on.
// BW is in KiB/s as emitted by fio.
type FioStats struct {
	IOBytes int64   `json:"io_bytes"`
	BW      float64 `json:"bw"`
	IOPS    float64 `json:"iops"`
}

// Active reports whether this direction actually moved data.
func (s FioStats) Active() bool { return s.IOBytes > 0 }

// BWMBps converts fio's KiB/s bandwidth to MB/s for display.
func (s FioStats) BWMBps() float64 { return s.BW / 1024 }

// ParseFioOutput decodes fio JSON output. A decode failure returns nil
// and the error; callers treat that as an empty record.
func ParseFioOutput(raw string) (*FioOutput, error) {
	var out FioOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
