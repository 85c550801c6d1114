package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lucid-vigil/hostwatch/pkg/sample"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// LogCapture is a helper to capture zerolog output for testing.
type LogCapture struct {
	sync.Mutex
	logs []string
}

func (lc *LogCapture) Write(p []byte) (n int, err error) {
	lc.Lock()
	defer lc.Unlock()
	lc.logs = append(lc.logs, string(p))
	return len(p), nil
}

func (lc *LogCapture) GetLogs() []string {
	lc.Lock()
	defer lc.Unlock()
	return lc.logs
}

var errUnavailable = errors.New("unavailable")

// stubSystem replaces every OS hook with a failing stub and restores the
// originals when the test ends.
func stubSystem(t *testing.T) {
	t.Helper()

	origCPU, origMem, origParts, origUsage := cpuPercent, virtualMemory, diskPartitions, diskUsage
	origIfaces, origRun, origSensors := netInterfaces, runCommand, sensorsTemperatures
	origDial, origLookup, origZone, origOS := dialTCP, lookupHost, thermalZonePattern, goos
	t.Cleanup(func() {
		cpuPercent, virtualMemory, diskPartitions, diskUsage = origCPU, origMem, origParts, origUsage
		netInterfaces, runCommand, sensorsTemperatures = origIfaces, origRun, origSensors
		dialTCP, lookupHost, thermalZonePattern, goos = origDial, origLookup, origZone, origOS
	})

	cpuPercent = func(time.Duration, bool) ([]float64, error) { return nil, errUnavailable }
	virtualMemory = func() (*mem.VirtualMemoryStat, error) { return nil, errUnavailable }
	diskPartitions = func(bool) ([]disk.PartitionStat, error) { return nil, errUnavailable }
	diskUsage = func(string) (*disk.UsageStat, error) { return nil, errUnavailable }
	netInterfaces = func() (psnet.InterfaceStatList, error) { return nil, errUnavailable }
	runCommand = func(context.Context, string, ...string) ([]byte, error) { return nil, errUnavailable }
	sensorsTemperatures = func() ([]host.TemperatureStat, error) { return nil, errUnavailable }
	dialTCP = func(context.Context, string, time.Duration) error { return errUnavailable }
	lookupHost = func(context.Context, string, time.Duration) error { return errUnavailable }
	thermalZonePattern = filepath.Join(t.TempDir(), "thermal_zone%d")
	goos = "linux"
}

func newTestProbe(cfg Config, lc *LogCapture) *Probe {
	p := New(cfg, zerolog.New(lc).Level(zerolog.DebugLevel))
	p.now = func() time.Time { return time.Unix(0, 0) }
	p.chance = func() float64 { return 0.99 }
	p.intn = func(int) int { return 0 }
	return p
}

func writeLines(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auth.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

func TestCollect_PrimarySources(t *testing.T) {
	stubSystem(t)

	cpuPercent = func(time.Duration, bool) ([]float64, error) { return []float64{42.5}, nil }
	virtualMemory = func() (*mem.VirtualMemoryStat, error) { return &mem.VirtualMemoryStat{UsedPercent: 61.2}, nil }
	diskPartitions = func(bool) ([]disk.PartitionStat, error) {
		return []disk.PartitionStat{
			{Device: "/dev/sda1", Mountpoint: "/"},
			{Device: "/dev/sda1", Mountpoint: "/var/lib/docker"},
			{Device: "/dev/sdb1", Mountpoint: "/data"},
		}, nil
	}
	diskUsage = func(path string) (*disk.UsageStat, error) {
		if path == "/data" {
			return &disk.UsageStat{Used: 25, Total: 100}, nil
		}
		return &disk.UsageStat{Used: 50, Total: 100}, nil
	}
	netInterfaces = func() (psnet.InterfaceStatList, error) {
		return psnet.InterfaceStatList{{Name: "lo"}, {Name: "eth0"}, {Name: "wlan0"}}, nil
	}
	runCommand = func(_ context.Context, name string, args ...string) ([]byte, error) {
		switch name {
		case "vcgencmd":
			return []byte("temp=48.3'C\n"), nil
		case "ip":
			return []byte("default via 10.0.0.1 dev eth0 proto dhcp metric 100\n"), nil
		case "ping":
			host := args[len(args)-1]
			if host == "10.0.0.9" {
				return nil, errUnavailable
			}
			return []byte(fmt.Sprintf("64 bytes from %s: icmp_seq=1 ttl=64 time=12.4 ms\n", host)), nil
		}
		return nil, errUnavailable
	}

	authLog := writeLines(t,
		"sshd[1]: Failed password for root from 203.0.113.7 port 22 ssh2",
		"sshd[2]: Failed password for invalid user admin from 203.0.113.7 port 22 ssh2",
		"sshd[3]: Accepted publickey for deploy from 10.0.0.2",
	)

	lc := &LogCapture{}
	p := newTestProbe(Config{
		MonitoredHosts: []string{"10.0.0.5", "10.0.0.9"},
		AuthLogPaths:   []string{authLog},
	}, lc)

	s := p.Collect(context.Background())

	assert.Equal(t, time.Unix(0, 0), s.Timestamp)
	assert.Equal(t, 42.5, s.CPUPercent)
	assert.Equal(t, 61.2, s.RAMPercent)
	assert.Equal(t, 37.5, s.DiskPercent)
	assert.Equal(t, 48.3, s.Temperature)
	assert.Equal(t, 12.4, s.PingMs)
	assert.Equal(t, 3, s.NetInterfaces)
	assert.Equal(t, 1, s.FailedLogins)
	assert.Equal(t, map[string]float64{"10.0.0.5": 12.4, "10.0.0.9": sample.Unreachable}, s.HostStatus)

	for _, sig := range sample.Signals {
		assert.Equal(t, sample.OutcomeMeasured, s.Provenance[string(sig)], "signal %s", sig)
	}
	assert.Equal(t, sample.OutcomeUnavailable, s.Provenance["10.0.0.9"])
}

func TestCollect_NeverFails(t *testing.T) {
	stubSystem(t)

	lc := &LogCapture{}
	p := newTestProbe(Config{MonitoredHosts: []string{"192.0.2.1"}}, lc)

	s := p.Collect(context.Background())

	assert.Equal(t, 0.0, s.CPUPercent)
	assert.Equal(t, 0.0, s.RAMPercent)
	assert.Equal(t, 0.0, s.DiskPercent)
	assert.Equal(t, sample.Unreachable, s.PingMs)
	assert.Equal(t, sample.Unreachable, s.HostStatus["192.0.2.1"])
	assert.Equal(t, sample.OutcomeUnavailable, s.Provenance["cpu"])
	assert.Equal(t, sample.OutcomeUnavailable, s.Provenance["temp"])

	// Degraded strategies are logged at debug, never as errors.
	logs := strings.Join(lc.GetLogs(), "")
	assert.Contains(t, logs, "Probe strategy failed: vcgencmd")
	assert.NotContains(t, logs, `"level":"error"`)
}

func TestTemperature_ThermalZoneFallback(t *testing.T) {
	stubSystem(t)
	dir := filepath.Dir(thermalZonePattern)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "thermal_zone1"), []byte("51234\n"), 0644))

	p := newTestProbe(Config{}, &LogCapture{})
	r := p.Temperature(context.Background(), 10)

	assert.InDelta(t, 51.234, r.Value, 1e-9)
	assert.Equal(t, sample.OutcomeFallback, r.Outcome)
	assert.True(t, r.Degraded())
}

func TestTemperature_SensorFallback(t *testing.T) {
	stubSystem(t)
	sensorsTemperatures = func() ([]host.TemperatureStat, error) {
		return []host.TemperatureStat{{SensorKey: "acpitz", Temperature: 0}, {SensorKey: "coretemp_core_0", Temperature: 57}}, nil
	}

	r := newTestProbe(Config{}, &LogCapture{}).Temperature(context.Background(), 10)
	assert.Equal(t, 57.0, r.Value)
	assert.Equal(t, "coretemp_core_0", r.Source)
}

func TestTemperature_Simulated(t *testing.T) {
	stubSystem(t)

	p := newTestProbe(Config{SimulateFallbacks: true}, &LogCapture{})
	// sin(0) == 0, so the value is round(35 + 0.3*50).
	r := p.Temperature(context.Background(), 50)
	assert.Equal(t, 50.0, r.Value)
	assert.Equal(t, sample.OutcomeSimulated, r.Outcome)

	p.cfg.SimulateFallbacks = false
	r = p.Temperature(context.Background(), 50)
	assert.Equal(t, 0.0, r.Value)
	assert.Equal(t, sample.OutcomeUnavailable, r.Outcome)
}

func TestPing_FallbackChain(t *testing.T) {
	stubSystem(t)
	p := newTestProbe(Config{}, &LogCapture{})

	dialTCP = func(_ context.Context, addr string, timeout time.Duration) error {
		assert.Equal(t, "198.51.100.4:80", addr)
		assert.Equal(t, defaultTCPTimeout, timeout)
		return nil
	}
	r := p.Ping(context.Background(), "198.51.100.4")
	assert.Equal(t, sample.OutcomeFallback, r.Outcome)
	assert.Equal(t, "tcp:80", r.Source)
	assert.GreaterOrEqual(t, r.Value, 0.0)

	dialTCP = func(context.Context, string, time.Duration) error { return errUnavailable }
	lookups := 0
	lookupHost = func(context.Context, string, time.Duration) error {
		lookups++
		return nil
	}

	r = p.Ping(context.Background(), "198.51.100.4")
	assert.Equal(t, sample.Unreachable, r.Value)
	assert.Equal(t, 0, lookups, "IP literals skip the DNS step")

	r = p.Ping(context.Background(), "nas.example.internal")
	assert.Equal(t, dnsPlaceholderMs, r.Value)
	assert.Equal(t, "dns", r.Source)
	assert.Equal(t, 1, lookups)
}

func TestPing_WindowsArguments(t *testing.T) {
	stubSystem(t)
	goos = "windows"

	var got []string
	runCommand = func(_ context.Context, name string, args ...string) ([]byte, error) {
		got = append([]string{name}, args...)
		return []byte("Reply from 1.1.1.1: bytes=32 time<1ms TTL=57"), nil
	}

	r := newTestProbe(Config{}, &LogCapture{}).Ping(context.Background(), "1.1.1.1")
	assert.Equal(t, []string{"ping", "-n", "1", "-w", "1000", "1.1.1.1"}, got)
	assert.Equal(t, 1.0, r.Value)
	assert.Equal(t, sample.OutcomeMeasured, r.Outcome)
}

func TestGateway(t *testing.T) {
	stubSystem(t)
	p := newTestProbe(Config{FallbackGateway: "172.16.0.1"}, &LogCapture{})

	assert.Equal(t, "172.16.0.1", p.Gateway(context.Background()))

	runCommand = func(context.Context, string, ...string) ([]byte, error) {
		return []byte("default dev wg0 scope link\ndefault via 192.168.8.1 dev wlan0\n"), nil
	}
	assert.Equal(t, "192.168.8.1", p.Gateway(context.Background()))

	goos = "darwin"
	assert.Equal(t, "172.16.0.1", p.Gateway(context.Background()))
}

func TestParsePingTime(t *testing.T) {
	tests := []struct {
		out      string
		expected float64
		wantErr  bool
	}{
		{"64 bytes from 8.8.8.8: icmp_seq=1 ttl=117 time=14.2 ms", 14.2, false},
		{"64 bytes from 1.1.1.1: icmp_seq=1 ttl=57 time=9 ms", 9, false},
		{"Reply from 10.0.0.1: bytes=32 time=3ms TTL=64", 3, false},
		{"Request timed out.", 0, true},
	}
	for _, tt := range tests {
		v, err := parsePingTime(tt.out)
		if tt.wantErr {
			assert.Error(t, err, tt.out)
			continue
		}
		assert.NoError(t, err, tt.out)
		assert.Equal(t, tt.expected, v, tt.out)
	}
}

func TestParseVcgencmd(t *testing.T) {
	v, err := parseVcgencmd("temp=61.8'C\n")
	require.NoError(t, err)
	assert.Equal(t, 61.8, v)

	_, err = parseVcgencmd("VCHI initialization failed")
	assert.Error(t, err)
}

func TestFailedLogins_CountsTail(t *testing.T) {
	lines := make([]string, 0, 600)
	for i := 0; i < 100; i++ {
		lines = append(lines, "sshd: Failed password for root from 203.0.113.1")
	}
	for i := 0; i < 500; i++ {
		lines = append(lines, fmt.Sprintf("sshd: FAILED PASSWORD for user%d from 203.0.113.2", i))
	}
	path := writeLines(t, lines...)

	missing := filepath.Join(t.TempDir(), "secure")
	r := newTestProbe(Config{AuthLogPaths: []string{missing, path}}, &LogCapture{}).FailedLogins()

	assert.Equal(t, 500.0, r.Value)
	assert.Equal(t, sample.OutcomeMeasured, r.Outcome)
}

func TestFailedLogins_Simulated(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "auth.log")
	p := newTestProbe(Config{AuthLogPaths: []string{missing}, SimulateFallbacks: true}, &LogCapture{})

	r := p.FailedLogins()
	assert.Equal(t, 0.0, r.Value)
	assert.Equal(t, sample.OutcomeSimulated, r.Outcome)

	p.chance = func() float64 { return 0.05 }
	p.intn = func(n int) int { return n - 1 }
	r = p.FailedLogins()
	assert.Equal(t, 2.0, r.Value)
	assert.Equal(t, sample.OutcomeSimulated, r.Outcome)

	p.cfg.SimulateFallbacks = false
	r = p.FailedLogins()
	assert.Equal(t, 0.0, r.Value)
	assert.Equal(t, sample.OutcomeUnavailable, r.Outcome)
}

func TestTailLines_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.log")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	lines, err := tailLines(path, 10)
	require.NoError(t, err)
	assert.Empty(t, lines)
}
