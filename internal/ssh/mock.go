package ssh

import (
	"sync"
	"time"

	"github.com/QingMing-Bot/nvmeof-runner/internal/domain"
)

// MockRunner scripts per-command results for tests. Unscripted commands
// return exit 127. It records every executed command in order.
type MockRunner struct {
	mu         sync.Mutex
	scripts    map[string]MockResult
	fallback   *MockResult
	calls      []string
	connected  bool
	connectErr error
	closed     int
}

type MockResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

func NewMockRunner() *MockRunner { return &MockRunner{scripts: map[string]MockResult{}} }

var _ Runner = (*MockRunner)(nil)

// Set scripts the result for an exact command string.
func (m *MockRunner) Set(cmd string, res MockResult) {
	m.mu.Lock()
	m.scripts[cmd] = res
	m.mu.Unlock()
}

// SetDefault makes unscripted commands return res instead of exit 127.
func (m *MockRunner) SetDefault(res MockResult) {
	m.mu.Lock()
	m.fallback = &res
	m.mu.Unlock()
}

// FailConnect makes the next Connect return err.
func (m *MockRunner) FailConnect(err error) { m.connectErr = err }

func (m *MockRunner) Connect() error {
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	return nil
}

func (m *MockRunner) Execute(cmd string, timeout time.Duration) (domain.CommandResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return domain.CommandResult{}, ErrNotConnected
	}
	m.calls = append(m.calls, cmd)
	r, ok := m.scripts[cmd]
	if !ok {
		if m.fallback == nil {
			return domain.CommandResult{Stderr: "command not scripted", ExitCode: 127}, nil
		}
		r = *m.fallback
	}
	return domain.CommandResult{
		Stdout:   r.Stdout,
		Stderr:   r.Stderr,
		ExitCode: r.ExitCode,
		Success:  r.ExitCode == 0,
	}, nil
}

func (m *MockRunner) Close() {
	m.mu.Lock()
	m.connected = false
	m.closed++
	m.mu.Unlock()
}

// Calls returns the commands executed so far, in order.
func (m *MockRunner) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Closed returns how many times Close has been called.
func (m *MockRunner) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
