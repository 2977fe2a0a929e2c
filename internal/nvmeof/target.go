package nvmeof

import (
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/QingMing-Bot/nvmeof-runner/internal/domain"
	"github.com/QingMing-Bot/nvmeof-runner/internal/ssh"
)

// Only one namespace is exported per run; the backend device maps to it.
const namespaceID = 1

const defaultTimeout = 300 * time.Second

// Target sequences the remote procedures that bring an NVMe-TCP target
// online and tears them back down. It exclusively owns its session.
type Target struct {
	cfg       domain.TargetConfig
	session   ssh.Runner
	connected bool
}

func NewTarget(cfg domain.TargetConfig, session ssh.Runner) *Target {
	return &Target{cfg: cfg, session: session}
}

type setupStep struct {
	name       string
	cmd        string
	bestEffort bool
}

func (t *Target) setupSteps() []setupStep {
	nqn := t.cfg.SubsysNQN
	portID := t.cfg.NvmetPortID()
	return []setupStep{
		{name: "load nvmet module", cmd: cmdLoadModule("nvmet")},
		{name: "load nvmet-tcp module", cmd: cmdLoadModule("nvmet-tcp")},
		{name: "mount configfs", cmd: cmdMountConfigfs()},
		{name: "create subsystem", cmd: cmdCreateSubsystem(nqn)},
		{name: "allow any host", cmd: cmdAllowAnyHost(nqn)},
		{name: "create namespace", cmd: cmdCreateNamespace(nqn, namespaceID)},
		{name: "set namespace device", cmd: cmdSetNamespaceDevice(nqn, namespaceID, t.cfg.Backend())},
		{name: "enable namespace", cmd: cmdEnableNamespace(nqn, namespaceID)},
		{name: "create port", cmd: cmdCreatePort(portID)},
		{name: "set transport type", cmd: cmdSetPortParam(portID, "addr_trtype", "tcp")},
		{name: "set address family", cmd: cmdSetPortParam(portID, "addr_adrfam", "ipv4")},
		{name: "set transport address", cmd: cmdSetPortParam(portID, "addr_traddr", t.cfg.DataIP)},
		{name: "set service port", cmd: cmdSetPortParam(portID, "addr_trsvcid", strconv.Itoa(t.cfg.SvcPort()))},
		{name: "bind subsystem to port", cmd: cmdBindSubsystem(nqn, portID)},
		{name: "open firewall port", cmd: cmdOpenFirewall(t.cfg.SvcPort()), bestEffort: true},
	}
}

// Setup drives the forward configuration chain. The first failing step
// aborts and returns false; partial state is left for Cleanup, which
// the orchestrator invokes regardless of the outcome here.
func (t *Target) Setup() bool {
	glog.Info("Setting up NVMe-oF target...")
	if !t.ensureConnected() {
		return false
	}

	for _, step := range t.setupSteps() {
		res, err := t.session.Execute(step.cmd, defaultTimeout)
		if err != nil {
			glog.Errorf("Target setup step %q: %v", step.name, err)
			return false
		}
		if !res.Success {
			if step.bestEffort {
				glog.Warningf("Target setup step %q failed (ignored): %s", step.name, strings.TrimSpace(res.Stderr))
				continue
			}
			glog.Errorf("Target setup failed at %q: %s", step.name, strings.TrimSpace(res.Stderr))
			return false
		}
	}
	glog.Info("Target setup completed successfully")
	return true
}

// Verify checks the three necessary conditions in order. Module absence
// is diagnosed first; a missing module makes the path checks meaningless.
func (t *Target) Verify() bool {
	glog.Info("Verifying target configuration...")
	if !t.ensureConnected() {
		return false
	}

	res, err := t.session.Execute(cmdListModules(), defaultTimeout)
	if err != nil || !res.Success ||
		!strings.Contains(res.Stdout, "nvmet") || !strings.Contains(res.Stdout, "nvmet_tcp") {
		glog.Error("Verification failed: nvmet modules not loaded")
		return false
	}

	checks := []struct {
		name string
		cmd  string
	}{
		{"subsystem exists", cmdDirExists(subsysPath(t.cfg.SubsysNQN))},
		{"port configured", cmdDirExists(portPath(t.cfg.NvmetPortID()))},
	}
	for _, check := range checks {
		res, err := t.session.Execute(check.cmd, defaultTimeout)
		if err != nil || !res.Success {
			glog.Errorf("Verification failed: %s", check.name)
			return false
		}
	}
	glog.Info("Target verification passed")
	return true
}

// Cleanup tears the configuration down in reverse order. Every step is
// guarded by an existence check and swallows its own failure, so a
// partial setup never aborts the teardown. A command timeout earlier in
// the run drops the channel behind the connected flag, so one re-dial
// is attempted before giving up on the remaining steps. Closes the
// session last.
func (t *Target) Cleanup() {
	glog.Info("Cleaning up target configuration...")
	defer func() {
		t.session.Close()
		t.connected = false
	}()
	if !t.ensureConnected() {
		glog.Warning("Cleanup skipped: target unreachable")
		return
	}

	redialed := false
	for _, cmd := range t.cleanupCommands() {
		res, err := t.session.Execute(cmd, defaultTimeout)
		if err != nil && !redialed {
			redialed = true
			t.connected = false
			if t.ensureConnected() {
				res, err = t.session.Execute(cmd, defaultTimeout)
			}
		}
		if err != nil {
			glog.Warningf("Cleanup step skipped: %v", err)
			continue
		}
		if !res.Success {
			glog.Warningf("Cleanup step had issues: %s", strings.TrimSpace(res.Stderr))
		}
	}
	glog.Info("Cleanup completed")
}

func (t *Target) cleanupCommands() []string {
	nqn := t.cfg.SubsysNQN
	portID := t.cfg.NvmetPortID()
	return []string{
		cmdUnbindSubsystem(nqn, portID),
		cmdDisableNamespace(nqn, namespaceID),
		cmdRemoveNamespace(nqn, namespaceID),
		cmdRemoveSubsystem(nqn),
		cmdRemovePort(portID),
	}
}

func (t *Target) ensureConnected() bool {
	if t.connected {
		return true
	}
	if err := t.session.Connect(); err != nil {
		glog.Errorf("Target session: %v", err)
		return false
	}
	t.connected = true
	return true
}
