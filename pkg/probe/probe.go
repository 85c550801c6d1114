package probe

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/lucid-vigil/hostwatch/pkg/errors"
	"github.com/lucid-vigil/hostwatch/pkg/sample"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
)

// Swappable in tests.
var (
	cpuPercent     = cpu.Percent
	virtualMemory  = mem.VirtualMemory
	diskPartitions = disk.Partitions
	diskUsage      = disk.Usage
	netInterfaces  = psnet.Interfaces
)

// Config holds the probe settings taken from the monitoring section.
type Config struct {
	MonitoredHosts    []string
	AuthLogPaths      []string
	FallbackGateway   string
	SimulateFallbacks bool

	ICMPTimeout    time.Duration // per echo, passed to ping(8)
	CommandTimeout time.Duration // hard bound on any spawned process
	TCPTimeout     time.Duration
	DNSTimeout     time.Duration
}

const (
	defaultICMPTimeout    = time.Second
	defaultCommandTimeout = 2 * time.Second
	defaultTCPTimeout     = 2 * time.Second
	defaultDNSTimeout     = 2 * time.Second
	defaultGateway        = "192.168.1.1"
)

// Probe collects one Sample per call. It never fails: every reading degrades
// to a fallback, simulated or default value and records how it was obtained.
type Probe struct {
	cfg    Config
	logger zerolog.Logger

	now    func() time.Time
	chance func() float64
	intn   func(int) int
}

// New returns a Probe with zero timeouts replaced by their defaults.
func New(cfg Config, logger zerolog.Logger) *Probe {
	if cfg.ICMPTimeout <= 0 {
		cfg.ICMPTimeout = defaultICMPTimeout
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}
	if cfg.TCPTimeout <= 0 {
		cfg.TCPTimeout = defaultTCPTimeout
	}
	if cfg.DNSTimeout <= 0 {
		cfg.DNSTimeout = defaultDNSTimeout
	}
	if cfg.FallbackGateway == "" {
		cfg.FallbackGateway = defaultGateway
	}
	return &Probe{
		cfg:    cfg,
		logger: logger.With().Str("component", "probe").Logger(),
		now:    time.Now,
		chance: rand.Float64,
		intn:   rand.IntN,
	}
}

// Collect takes one reading of every signal and every monitored host.
func (p *Probe) Collect(ctx context.Context) sample.Sample {
	s := sample.Sample{
		Timestamp:  p.now(),
		HostStatus: make(map[string]float64, len(p.cfg.MonitoredHosts)),
		Provenance: make(map[string]sample.Outcome, len(sample.Signals)+len(p.cfg.MonitoredHosts)),
	}

	record := func(key string, r sample.Reading) float64 {
		s.Provenance[key] = r.Outcome
		return r.Value
	}

	s.CPUPercent = record(string(sample.SignalCPU), p.cpu())
	s.RAMPercent = record(string(sample.SignalRAM), p.ram())
	s.DiskPercent = record(string(sample.SignalDisk), p.disk())
	s.Temperature = record(string(sample.SignalTemperature), p.Temperature(ctx, s.CPUPercent))
	s.PingMs = record(string(sample.SignalPing), p.Ping(ctx, p.Gateway(ctx)))
	s.NetInterfaces = int(record(string(sample.SignalNet), p.interfaces()))
	s.FailedLogins = int(record(string(sample.SignalFailedLogins), p.FailedLogins()))

	for _, host := range p.cfg.MonitoredHosts {
		s.HostStatus[host] = record(host, p.Ping(ctx, host))
	}

	return s
}

func (p *Probe) cpu() sample.Reading {
	percents, err := cpuPercent(0, false)
	if err != nil || len(percents) == 0 {
		p.degraded(sample.SignalCPU, "cpu.Percent", err)
		return sample.Reading{Outcome: sample.OutcomeUnavailable}
	}
	return sample.Reading{Value: clampPercent(percents[0]), Outcome: sample.OutcomeMeasured, Source: "gopsutil"}
}

func (p *Probe) ram() sample.Reading {
	vm, err := virtualMemory()
	if err != nil {
		p.degraded(sample.SignalRAM, "mem.VirtualMemory", err)
		return sample.Reading{Outcome: sample.OutcomeUnavailable}
	}
	return sample.Reading{Value: clampPercent(vm.UsedPercent), Outcome: sample.OutcomeMeasured, Source: "gopsutil"}
}

// disk aggregates every mounted volume: sum of used over sum of total.
func (p *Probe) disk() sample.Reading {
	parts, err := diskPartitions(false)
	if err != nil {
		p.degraded(sample.SignalDisk, "disk.Partitions", err)
		return sample.Reading{Outcome: sample.OutcomeUnavailable}
	}

	var used, total uint64
	seen := make(map[string]bool, len(parts))
	for _, part := range parts {
		if seen[part.Device] {
			continue
		}
		usage, err := diskUsage(part.Mountpoint)
		if err != nil || usage.Total == 0 {
			continue
		}
		seen[part.Device] = true
		used += usage.Used
		total += usage.Total
	}
	if total == 0 {
		p.degraded(sample.SignalDisk, "disk.Usage", nil)
		return sample.Reading{Outcome: sample.OutcomeUnavailable}
	}
	return sample.Reading{
		Value:   clampPercent(float64(used) / float64(total) * 100),
		Outcome: sample.OutcomeMeasured,
		Source:  "gopsutil",
	}
}

func (p *Probe) interfaces() sample.Reading {
	ifaces, err := netInterfaces()
	if err != nil {
		p.degraded(sample.SignalNet, "net.Interfaces", err)
		return sample.Reading{Outcome: sample.OutcomeUnavailable}
	}
	return sample.Reading{Value: float64(len(ifaces)), Outcome: sample.OutcomeMeasured, Source: "gopsutil"}
}

func (p *Probe) degraded(signal sample.Signal, strategy string, cause error) {
	errors.NewProbeError(string(signal), strategy, cause).Log(p.logger)
}

func clampPercent(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
