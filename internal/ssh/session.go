package ssh

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	gssh "golang.org/x/crypto/ssh"

	"github.com/QingMing-Bot/nvmeof-runner/internal/domain"
)

// ErrNotConnected is returned by Execute when Connect has not been
// called (or the session is already closed). It marks a caller defect,
// not a remote failure; there is no implicit reconnect.
var ErrNotConnected = errors.New("session not connected")

// ConnectionError reports a failed session establishment, carrying the
// host identity and the underlying cause.
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string { return "connect " + e.Host + ": " + e.Err.Error() }
func (e *ConnectionError) Unwrap() error { return e.Err }

// Recorder receives the audit row for every executed command.
// Implementations must not block.
type Recorder interface {
	Record(domain.ExecHistory)
}

// Runner is the single request/response primitive controllers build on.
// Execute returns command failures as data; the error return is used
// only for the not-connected precondition.
type Runner interface {
	Connect() error
	Execute(cmd string, timeout time.Duration) (domain.CommandResult, error)
	Close()
}

// Session owns one authenticated SSH connection to a single host.
// Not safe for concurrent use; all calls are ordered by the caller.
type Session struct {
	cfg    domain.SSHConfig
	client *gssh.Client
	rec    Recorder
	runID  string
}

var _ Runner = (*Session)(nil)

func NewSession(cfg domain.SSHConfig) *Session { return &Session{cfg: cfg} }

// SetRecorder attaches an audit sink; rows are tagged with runID.
func (s *Session) SetRecorder(rec Recorder, runID string) {
	s.rec = rec
	s.runID = runID
}

// Connect establishes the channel. Retry policy belongs to the caller.
func (s *Session) Connect() error {
	conf := &gssh.ClientConfig{
		User:            s.cfg.User,
		Auth:            []gssh.AuthMethod{gssh.Password(s.cfg.Password)},
		HostKeyCallback: gssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}
	client, err := gssh.Dial("tcp", s.cfg.Addr(), conf)
	if err != nil {
		glog.Errorf("Failed to connect to %s: %v", s.cfg.Host, err)
		return &ConnectionError{Host: s.cfg.Host, Err: errors.Wrap(err, "dial")}
	}
	s.client = client
	glog.Infof("Connected to %s", s.cfg.Host)
	return nil
}

// Execute runs cmd on the remote host and captures its output. Exceeding
// the timeout or losing the channel yields a failed result with exit
// code -1 rather than an error, so sequences can inspect every step.
func (s *Session) Execute(cmd string, timeout time.Duration) (domain.CommandResult, error) {
	if s.client == nil {
		glog.Errorf("Execute on %s before Connect: %q", s.cfg.Host, cmd)
		return domain.CommandResult{}, ErrNotConnected
	}
	if timeout <= 0 {
		timeout = 300 * time.Second
	}

	start := time.Now()
	res, runErr := s.runCommand(cmd, timeout)
	s.record(cmd, res, runErr, start)

	if res.Success {
		glog.Infof("[%s] %q exit=0 (%s)", s.cfg.Host, cmd, time.Since(start).Round(time.Millisecond))
	} else {
		glog.Errorf("[%s] %q exit=%d stderr=%q", s.cfg.Host, cmd, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return res, nil
}

func (s *Session) runCommand(cmd string, timeout time.Duration) (domain.CommandResult, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return domain.CommandResult{Stderr: err.Error(), ExitCode: -1}, err
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sess.Run(cmd) }()

	var runErr error
	select {
	case <-ctx.Done():
		// The remote command keeps running; drop the channel to unblock
		// Run, then wait for it so the output buffers are quiescent
		// before they are read below.
		_ = s.client.Close()
		s.client = nil
		<-done
		runErr = context.DeadlineExceeded
	case runErr = <-done:
	}

	res := domain.CommandResult{
		Stdout: lossyUTF8(stdout.String()),
		Stderr: lossyUTF8(stderr.String()),
	}
	switch e := runErr.(type) {
	case nil:
		res.ExitCode = 0
		res.Success = true
	case *gssh.ExitError:
		res.ExitCode = e.ExitStatus()
	default:
		res.ExitCode = -1
		if res.Stderr == "" {
			res.Stderr = runErr.Error()
		}
	}
	return res, runErr
}

func (s *Session) record(cmd string, res domain.CommandResult, runErr error, start time.Time) {
	if s.rec == nil {
		return
	}
	finish := time.Now()
	h := domain.ExecHistory{
		RunID:      s.runID,
		Host:       s.cfg.Host,
		Command:    cmd,
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		ExitCode:   res.ExitCode,
		StartedAt:  start,
		FinishedAt: finish,
		DurationMs: finish.Sub(start).Milliseconds(),
	}
	if runErr != nil {
		if _, ok := runErr.(*gssh.ExitError); !ok {
			h.ErrorText = runErr.Error()
		}
	}
	s.rec.Record(h)
}

// Close releases the channel. Safe on a session that was never
// connected or already closed.
func (s *Session) Close() {
	if s.client == nil {
		return
	}
	_ = s.client.Close()
	s.client = nil
	glog.Infof("Disconnected from %s", s.cfg.Host)
}

// lossyUTF8 replaces undecodable bytes instead of failing.
func lossyUTF8(s string) string { return strings.ToValidUTF8(s, "�") }
