package nvmeof

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/QingMing-Bot/nvmeof-runner/internal/domain"
	"github.com/QingMing-Bot/nvmeof-runner/internal/ssh"
)

func testInitiator(mock *ssh.MockRunner) *Initiator {
	cfg := domain.InitiatorConfig{SSH: domain.SSHConfig{Host: "10.0.0.2", User: "root", Password: "x"}}
	ini := NewInitiator(cfg, testTargetConfig(), mock)
	ini.SetSettleDelay(0)
	return ini
}

const discoveryOutput = `
Discovery Log Number of Records 1, Generation counter 2
=====Discovery Log Entry 0======
trtype:  tcp
subnqn:  nqn.test:unit1
`

func TestDiscoverRequiresNQNInOutput(t *testing.T) {
	discover := cmdDiscover("192.168.1.49", 4420)

	t.Run("exit 0 with NQN", func(t *testing.T) {
		mock := ssh.NewMockRunner()
		mock.Set(discover, ssh.MockResult{Stdout: discoveryOutput})
		require.True(t, testInitiator(mock).Discover())
	})

	t.Run("exit 0 without NQN is a failure", func(t *testing.T) {
		mock := ssh.NewMockRunner()
		mock.Set(discover, ssh.MockResult{Stdout: "subnqn: nqn.other:unit9\n"})
		require.False(t, testInitiator(mock).Discover())
	})

	t.Run("nonzero exit with NQN is a failure", func(t *testing.T) {
		mock := ssh.NewMockRunner()
		mock.Set(discover, ssh.MockResult{Stdout: discoveryOutput, ExitCode: 1})
		require.False(t, testInitiator(mock).Discover())
	})
}

func TestConnectExtractsFirstFabricDevice(t *testing.T) {
	mock := ssh.NewMockRunner()
	mock.Set(cmdFabricConnect("nqn.test:unit1", "192.168.1.49", 4420), ssh.MockResult{})
	mock.Set(cmdListDevices(), ssh.MockResult{Stdout: "Node  Transport\nnvme0  tcp  Linux\n"})

	ini := testInitiator(mock)
	require.True(t, ini.Connect())
	require.Equal(t, "nvme0", ini.Device())
}

func TestConnectFailsWhenNoDeviceAppears(t *testing.T) {
	mock := ssh.NewMockRunner()
	mock.Set(cmdFabricConnect("nqn.test:unit1", "192.168.1.49", 4420), ssh.MockResult{})
	mock.Set(cmdListDevices(), ssh.MockResult{Stdout: "Node  Transport\n"})

	ini := testInitiator(mock)
	require.False(t, ini.Connect())
	require.Empty(t, ini.Device())
}

func TestConnectCommandFailure(t *testing.T) {
	mock := ssh.NewMockRunner()
	mock.Set(cmdFabricConnect("nqn.test:unit1", "192.168.1.49", 4420),
		ssh.MockResult{ExitCode: 1, Stderr: "Failed to write to /dev/nvme-fabrics"})

	require.False(t, testInitiator(mock).Connect())
}

func TestFirstFabricDevice(t *testing.T) {
	require.Equal(t, "nvme0", firstFabricDevice("nvme0 tcp 400GB\nnvme1 tcp 400GB\n"))
	require.Equal(t, "", firstFabricDevice("nvme0n1 pcie\n"))
	require.Equal(t, "", firstFabricDevice(""))
}

func TestRunBenchmarkWithoutDeviceIsCallerError(t *testing.T) {
	mock := ssh.NewMockRunner()
	ini := testInitiator(mock)
	require.True(t, ini.ensureConnected())

	_, err := ini.RunBenchmark(domain.BenchmarkSpec{Name: "seq_read", RW: "read", BlockSize: "1M"})
	require.ErrorIs(t, err, ErrNoDevice)
	require.Empty(t, mock.Calls())
}

func connectInitiator(t *testing.T, mock *ssh.MockRunner) *Initiator {
	t.Helper()
	mock.Set(cmdFabricConnect("nqn.test:unit1", "192.168.1.49", 4420), ssh.MockResult{})
	mock.Set(cmdListDevices(), ssh.MockResult{Stdout: "nvme0 tcp\n"})
	ini := testInitiator(mock)
	require.True(t, ini.Connect())
	return ini
}

func TestRunBenchmarkParsesFioJSON(t *testing.T) {
	mock := ssh.NewMockRunner()
	ini := connectInitiator(t, mock)

	spec := domain.BenchmarkSpec{Name: "seq_read", RW: "read", BlockSize: "1M", Size: "1G"}
	fioJSON := `{"jobs":[{"jobname":"seq_read","read":{"io_bytes":1073741824,"bw":524288,"iops":512},"write":{"io_bytes":0,"bw":0,"iops":0}}]}`
	mock.Set(cmdFio("seq_read", "nvme0", "read", "1M", "1G", 0), ssh.MockResult{Stdout: fioJSON})

	rec, err := ini.RunBenchmark(spec)
	require.NoError(t, err)
	require.True(t, rec.OK())
	require.Len(t, rec.Output.Jobs, 1)
	require.Equal(t, float64(512), rec.Output.Jobs[0].Read.IOPS)
	require.InDelta(t, 512.0, rec.Output.Jobs[0].Read.BWMBps(), 0.01)
	require.False(t, rec.Output.Jobs[0].Write.Active())
}

func TestRunBenchmarkMalformedOutputYieldsEmptyRecord(t *testing.T) {
	mock := ssh.NewMockRunner()
	ini := connectInitiator(t, mock)

	spec := domain.BenchmarkSpec{Name: "rand_read", RW: "randread", BlockSize: "4k", Runtime: 60}
	mock.Set(cmdFio("rand_read", "nvme0", "randread", "4k", "", 60),
		ssh.MockResult{Stdout: "fio: command not found"})

	rec, err := ini.RunBenchmark(spec)
	require.NoError(t, err)
	require.False(t, rec.OK())
	require.Equal(t, "rand_read", rec.Name)
}

func TestRunBenchmarkCommandFailureYieldsEmptyRecord(t *testing.T) {
	mock := ssh.NewMockRunner()
	ini := connectInitiator(t, mock)

	spec := domain.BenchmarkSpec{Name: "rand_write", RW: "randwrite", BlockSize: "4k", Runtime: 60}
	mock.Set(cmdFio("rand_write", "nvme0", "randwrite", "4k", "", 60),
		ssh.MockResult{ExitCode: 1, Stderr: "io_u error"})

	rec, err := ini.RunBenchmark(spec)
	require.NoError(t, err)
	require.False(t, rec.OK())
}

func TestDisconnectBestEffortAndCloses(t *testing.T) {
	mock := ssh.NewMockRunner()
	ini := connectInitiator(t, mock)
	mock.Set(cmdFabricDisconnect("nqn.test:unit1"), ssh.MockResult{ExitCode: 1, Stderr: "not connected"})

	ini.Disconnect()
	require.Equal(t, 1, mock.Closed())
}

func TestDisconnectWithoutSessionJustCloses(t *testing.T) {
	mock := ssh.NewMockRunner()
	ini := testInitiator(mock)

	ini.Disconnect()
	require.Empty(t, mock.Calls())
	require.Equal(t, 1, mock.Closed())
}

func TestDisconnectRedialsAfterDroppedChannel(t *testing.T) {
	// Connected flag set but the channel already gone, as after a
	// timed-out benchmark. The detach is still owed.
	sess := &droppedSession{}
	cfg := domain.InitiatorConfig{SSH: domain.SSHConfig{Host: "10.0.0.2", User: "root", Password: "x"}}
	ini := NewInitiator(cfg, testTargetConfig(), sess)
	ini.connected = true
	ini.device = "nvme0"

	ini.Disconnect()

	require.Equal(t, 1, sess.dials)
	require.Equal(t, []string{cmdFabricDisconnect("nqn.test:unit1")}, sess.executed)
	require.Equal(t, 1, sess.closed)
}

func TestConnectFailsOnDroppedChannel(t *testing.T) {
	sess := &droppedSession{}
	cfg := domain.InitiatorConfig{SSH: domain.SSHConfig{Host: "10.0.0.2", User: "root", Password: "x"}}
	ini := NewInitiator(cfg, testTargetConfig(), sess)
	ini.connected = true

	require.False(t, ini.Connect())
	require.Empty(t, ini.Device())
}
