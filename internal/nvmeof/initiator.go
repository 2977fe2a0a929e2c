package nvmeof

import (
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/QingMing-Bot/nvmeof-runner/internal/domain"
	"github.com/QingMing-Bot/nvmeof-runner/internal/ssh"
)

// ErrNoDevice marks a benchmark call before a successful Connect.
// It is a caller defect, not a remote failure.
var ErrNoDevice = errors.New("no device connected")

// Grace added to the remote timeout when a benchmark has a bounded runtime.
const fioGrace = 60 * time.Second

// Initiator drives discovery, connection, benchmarking and
// disconnection against one initiator host. The target configuration
// tells it what to look for. It exclusively owns its session.
//
// Connect assumes the initiator host has no pre-existing fabric-attached
// devices; the first tcp-attached device is taken as the one that
// appeared for this run.
type Initiator struct {
	cfg       domain.InitiatorConfig
	target    domain.TargetConfig
	session   ssh.Runner
	device    string
	settle    time.Duration
	connected bool
}

func NewInitiator(cfg domain.InitiatorConfig, target domain.TargetConfig, session ssh.Runner) *Initiator {
	return &Initiator{cfg: cfg, target: target, session: session, settle: 2 * time.Second}
}

// SetSettleDelay overrides the post-connect enumeration delay.
func (i *Initiator) SetSettleDelay(d time.Duration) { i.settle = d }

// Device returns the block device discovered by Connect, empty until then.
func (i *Initiator) Device() string { return i.device }

// Discover runs fabric discovery against the target's data address.
// Exit status alone is insufficient: the subsystem NQN must appear
// verbatim in the output for discovery to count as successful.
func (i *Initiator) Discover() bool {
	glog.Info("Discovering NVMe-oF targets...")
	if !i.ensureConnected() {
		return false
	}
	res, err := i.session.Execute(cmdDiscover(i.target.DataIP, i.target.SvcPort()), defaultTimeout)
	if err != nil {
		glog.Errorf("Discovery: %v", err)
		return false
	}
	if res.Success && strings.Contains(res.Stdout, i.target.SubsysNQN) {
		glog.Infof("Target discovered: %s", i.target.SubsysNQN)
		return true
	}
	glog.Error("Target discovery failed")
	return false
}

// Connect attaches to the target subsystem, waits for the kernel to
// enumerate the new device, and records its path. A successful connect
// command with no device appearing afterwards is a failure.
func (i *Initiator) Connect() bool {
	glog.Info("Connecting to target...")
	if !i.ensureConnected() {
		return false
	}
	res, err := i.session.Execute(
		cmdFabricConnect(i.target.SubsysNQN, i.target.DataIP, i.target.SvcPort()), defaultTimeout)
	if err != nil {
		glog.Errorf("Connection failed: %v", err)
		return false
	}
	if !res.Success {
		glog.Errorf("Connection failed: %s", strings.TrimSpace(res.Stderr))
		return false
	}

	time.Sleep(i.settle)

	res, err = i.session.Execute(cmdListDevices(), defaultTimeout)
	if err != nil || !res.Success {
		glog.Error("Failed to enumerate devices")
		return false
	}
	if dev := firstFabricDevice(res.Stdout); dev != "" {
		i.device = dev
		glog.Infof("Connected to device: %s", dev)
		return true
	}
	glog.Error("Failed to find connected device")
	return false
}

// firstFabricDevice returns the first whitespace-delimited token of the
// first device line carrying the tcp transport marker.
func firstFabricDevice(listing string) string {
	for _, line := range strings.Split(listing, "\n") {
		if !strings.Contains(line, "tcp") {
			continue
		}
		if fields := strings.Fields(line); len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}

// RunBenchmark executes one fio invocation against the discovered
// device. Command failure and malformed output both yield an empty
// record; a single bad run must not abort the battery. The returned
// error is non-nil only when no device has been discovered.
func (i *Initiator) RunBenchmark(spec domain.BenchmarkSpec) (domain.BenchmarkResult, error) {
	if i.device == "" {
		return domain.BenchmarkResult{Name: spec.Name}, ErrNoDevice
	}
	glog.Infof("Running fio test: %s (%s, %s)", spec.Name, spec.RW, spec.BlockSize)

	timeout := defaultTimeout
	if spec.Runtime > 0 {
		timeout = time.Duration(spec.Runtime)*time.Second + fioGrace
	}
	cmd := cmdFio(spec.Name, i.device, spec.RW, spec.BlockSize, spec.Size, spec.Runtime)
	res, err := i.session.Execute(cmd, timeout)
	if err != nil {
		glog.Errorf("fio test %s: %v", spec.Name, err)
		return domain.BenchmarkResult{Name: spec.Name}, nil
	}
	if !res.Success {
		glog.Errorf("fio test %s failed: %s", spec.Name, strings.TrimSpace(res.Stderr))
		return domain.BenchmarkResult{Name: spec.Name}, nil
	}
	out, perr := domain.ParseFioOutput(res.Stdout)
	if perr != nil {
		glog.Errorf("Failed to parse fio output for %s: %v", spec.Name, perr)
		return domain.BenchmarkResult{Name: spec.Name}, nil
	}
	glog.Infof("Test %s completed", spec.Name)
	return domain.BenchmarkResult{Name: spec.Name, Output: out}, nil
}

// Disconnect detaches from the target subsystem. Best-effort: failure
// is logged, never escalated. A timed-out benchmark drops the channel
// behind the connected flag while the detach is still owed, so one
// re-dial is attempted. Closes the session last.
func (i *Initiator) Disconnect() {
	glog.Info("Disconnecting from target...")
	defer func() {
		i.session.Close()
		i.connected = false
	}()
	if !i.connected {
		return
	}
	res, err := i.session.Execute(cmdFabricDisconnect(i.target.SubsysNQN), defaultTimeout)
	if err != nil {
		i.connected = false
		if i.ensureConnected() {
			res, err = i.session.Execute(cmdFabricDisconnect(i.target.SubsysNQN), defaultTimeout)
		}
	}
	if err != nil {
		glog.Warningf("Disconnect had issues: %v", err)
		return
	}
	if !res.Success {
		glog.Warningf("Disconnect had issues: %s", strings.TrimSpace(res.Stderr))
		return
	}
	glog.Info("Disconnected")
}

func (i *Initiator) ensureConnected() bool {
	if i.connected {
		return true
	}
	if err := i.session.Connect(); err != nil {
		glog.Errorf("Initiator session: %v", err)
		return false
	}
	i.connected = true
	return true
}
