package sample

import (
	"time"
)

// Unreachable is the ping latency recorded when a host could not be reached
// by any probe strategy.
const Unreachable = -1.0

// Signal names one of the fixed host health signals.
type Signal string

const (
	SignalCPU          Signal = "cpu"
	SignalRAM          Signal = "ram"
	SignalDisk         Signal = "disk"
	SignalTemperature  Signal = "temp"
	SignalPing         Signal = "ping"
	SignalNet          Signal = "net"
	SignalFailedLogins Signal = "fail"
)

// Signals lists the fixed signals in declaration order. Detection output
// follows this order.
var Signals = []Signal{
	SignalCPU,
	SignalRAM,
	SignalDisk,
	SignalTemperature,
	SignalPing,
	SignalNet,
	SignalFailedLogins,
}

var signalLabels = map[Signal]string{
	SignalCPU:          "CPU",
	SignalRAM:          "RAM",
	SignalDisk:         "Disk",
	SignalTemperature:  "Temp",
	SignalPing:         "Ping",
	SignalNet:          "Connections",
	SignalFailedLogins: "Failed Login",
}

// Label returns the display label of the signal.
func (s Signal) Label() string {
	if l, ok := signalLabels[s]; ok {
		return l
	}
	return string(s)
}

// Sample is one point-in-time reading of every signal. A Sample is never
// modified after the probe returns it.
type Sample struct {
	Timestamp     time.Time          `json:"timestamp"`
	CPUPercent    float64            `json:"cpu_percent"`
	RAMPercent    float64            `json:"ram_percent"`
	DiskPercent   float64            `json:"disk_percent"`
	Temperature   float64            `json:"temperature"`
	PingMs        float64            `json:"ping_ms"`
	NetInterfaces int                `json:"net_connections"`
	FailedLogins  int                `json:"failed_logins"`
	HostStatus    map[string]float64 `json:"host_status"`
	Provenance    map[string]Outcome `json:"provenance,omitempty"`
}

// Value returns the reading for a fixed signal.
func (s Sample) Value(sig Signal) (float64, bool) {
	switch sig {
	case SignalCPU:
		return s.CPUPercent, true
	case SignalRAM:
		return s.RAMPercent, true
	case SignalDisk:
		return s.DiskPercent, true
	case SignalTemperature:
		return s.Temperature, true
	case SignalPing:
		return s.PingMs, true
	case SignalNet:
		return float64(s.NetInterfaces), true
	case SignalFailedLogins:
		return float64(s.FailedLogins), true
	}
	return 0, false
}
