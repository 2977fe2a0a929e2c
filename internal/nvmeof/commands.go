// Package nvmeof drives NVMe-over-TCP target and initiator hosts over
// remote sessions. Remote operations are modelled as typed builders
// translated to shell commands here, so configuration values never
// reach the wire unquoted.
package nvmeof

import (
	"fmt"
	"strings"
)

const nvmetBase = "/sys/kernel/config/nvmet"

// shellQuote single-quotes s for POSIX shells.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func subsysPath(nqn string) string { return nvmetBase + "/subsystems/" + nqn }

func namespacePath(nqn string, nsID int) string {
	return fmt.Sprintf("%s/namespaces/%d", subsysPath(nqn), nsID)
}

func portPath(portID int) string { return fmt.Sprintf("%s/ports/%d", nvmetBase, portID) }

// ---- target setup ----

func cmdLoadModule(name string) string {
	return "modprobe " + shellQuote(name)
}

func cmdMountConfigfs() string {
	return "mount | grep -q configfs || mount -t configfs none /sys/kernel/config"
}

func cmdCreateSubsystem(nqn string) string {
	return "mkdir -p " + shellQuote(subsysPath(nqn))
}

func cmdAllowAnyHost(nqn string) string {
	return "echo 1 > " + shellQuote(subsysPath(nqn)+"/attr_allow_any_host")
}

func cmdCreateNamespace(nqn string, nsID int) string {
	return "mkdir -p " + shellQuote(namespacePath(nqn, nsID))
}

func cmdSetNamespaceDevice(nqn string, nsID int, device string) string {
	return fmt.Sprintf("echo -n %s > %s",
		shellQuote(device), shellQuote(namespacePath(nqn, nsID)+"/device_path"))
}

func cmdEnableNamespace(nqn string, nsID int) string {
	return "echo 1 > " + shellQuote(namespacePath(nqn, nsID)+"/enable")
}

func cmdCreatePort(portID int) string {
	return "mkdir -p " + shellQuote(portPath(portID))
}

func cmdSetPortParam(portID int, param, value string) string {
	return fmt.Sprintf("echo %s > %s",
		shellQuote(value), shellQuote(portPath(portID)+"/"+param))
}

func cmdBindSubsystem(nqn string, portID int) string {
	return fmt.Sprintf("ln -s %s %s",
		shellQuote(subsysPath(nqn)), shellQuote(portPath(portID)+"/subsystems/"+nqn))
}

func cmdOpenFirewall(svcPort int) string {
	return fmt.Sprintf("firewall-cmd --add-port=%d/tcp", svcPort)
}

// ---- target verify ----

func cmdListModules() string { return "lsmod | grep nvmet" }

func cmdDirExists(path string) string { return "[ -d " + shellQuote(path) + " ]" }

// ---- target cleanup (guarded, idempotent) ----

func cmdUnbindSubsystem(nqn string, portID int) string {
	link := portPath(portID) + "/subsystems/" + nqn
	return fmt.Sprintf("[ -L %s ] && unlink %s || true", shellQuote(link), shellQuote(link))
}

func cmdDisableNamespace(nqn string, nsID int) string {
	enable := namespacePath(nqn, nsID) + "/enable"
	return fmt.Sprintf("[ -f %s ] && echo 0 > %s || true", shellQuote(enable), shellQuote(enable))
}

func cmdRemoveNamespace(nqn string, nsID int) string {
	ns := namespacePath(nqn, nsID)
	return fmt.Sprintf("[ -d %s ] && rmdir %s || true", shellQuote(ns), shellQuote(ns))
}

func cmdRemoveSubsystem(nqn string) string {
	path := subsysPath(nqn)
	return fmt.Sprintf("[ -d %s ] && rmdir %s || true", shellQuote(path), shellQuote(path))
}

func cmdRemovePort(portID int) string {
	path := portPath(portID)
	return fmt.Sprintf("[ -d %s ] && rmdir %s || true", shellQuote(path), shellQuote(path))
}

// ---- initiator ----

func cmdDiscover(dataIP string, svcPort int) string {
	return fmt.Sprintf("nvme discover -t tcp -a %s -s %d", shellQuote(dataIP), svcPort)
}

func cmdFabricConnect(nqn, dataIP string, svcPort int) string {
	return fmt.Sprintf("nvme connect -t tcp -n %s -a %s -s %d",
		shellQuote(nqn), shellQuote(dataIP), svcPort)
}

func cmdListDevices() string { return "nvme list" }

func cmdFabricDisconnect(nqn string) string {
	return "nvme disconnect -n " + shellQuote(nqn)
}

func cmdFio(name, device, rw, bs, size string, runtime int) string {
	parts := []string{
		"fio",
		"--name=" + shellQuote(name),
		"--filename=" + shellQuote(device),
		"--rw=" + shellQuote(rw),
		"--bs=" + shellQuote(bs),
		"--direct=1",
		"--output-format=json",
	}
	if size != "" {
		parts = append(parts, "--size="+shellQuote(size))
	}
	if runtime > 0 {
		parts = append(parts, fmt.Sprintf("--runtime=%d", runtime))
	}
	return strings.Join(parts, " ")
}
