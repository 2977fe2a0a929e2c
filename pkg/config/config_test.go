package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleYAML = `
target:
  ssh:
    host: 10.48.35.49
    user: root
    password: secret
  data_ip: 192.168.1.49
  subsys_nqn: nqn.2026-01.lab:nvme:target1
  port: 4420
  backend_device: /dev/nvme0n1
initiator:
  ssh:
    host: 10.48.35.50
    user: root
    password: secret
battery:
  - name: seq_read
    rw: read
    bs: 1M
    size: 1G
  - name: rand_read
    rw: randread
    bs: 4k
    runtime: 60
`

func writeTempConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nvmeof.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("NVMEOF_DATA_DIR", filepath.Join(t.TempDir(), "data"))

	cfg, err := Load(writeTempConfig(t, sampleYAML))
	require.NoError(t, err)

	require.Equal(t, "10.48.35.49", cfg.Target.SSH.Host)
	require.Equal(t, "10.48.35.49:22", cfg.Target.SSH.Addr())
	require.Equal(t, "nqn.2026-01.lab:nvme:target1", cfg.Target.SubsysNQN)
	require.Equal(t, 4420, cfg.Target.SvcPort())
	require.Equal(t, "/dev/nvme0n1", cfg.Target.Backend())
	require.Equal(t, 1, cfg.Target.NvmetPortID())

	require.Len(t, cfg.Battery, 2)
	require.Equal(t, 60, cfg.Battery[1].Runtime)

	// Tuning defaults applied.
	require.Equal(t, 2, cfg.SettleDelaySec)
	require.Equal(t, 30, cfg.HistoryRetentionDays)
	require.Equal(t, filepath.Join(cfg.DataDir, "runs.db"), cfg.DBPath())
}

func TestLoadEnvOverridesPassword(t *testing.T) {
	t.Setenv("NVMEOF_DATA_DIR", filepath.Join(t.TempDir(), "data"))
	t.Setenv("NVMEOF_TARGET_PASSWORD", "from-env")

	cfg, err := Load(writeTempConfig(t, sampleYAML))
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Target.SSH.Password)
	require.Equal(t, "secret", cfg.Initiator.SSH.Password)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
