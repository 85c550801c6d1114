package detector

import (
	"fmt"
)

// Kind classifies an anomaly.
type Kind string

const (
	KindDeviation  Kind = "deviation"
	KindDeviceDown Kind = "device_down"
	KindThreat     Kind = "threat"
)

// Anomaly is one of Deviation, DeviceDown or Threat.
type Anomaly interface {
	Kind() Kind
	// Subject is the signal name, host or address the anomaly is about.
	Subject() string
	String() string
}

// Deviation is a reading further than threshold standard deviations from
// its learned mean. Host is set when the reading is a monitored host's ping.
type Deviation struct {
	Signal string
	Label  string
	Host   bool
	Value  float64
	Mean   float64
	Std    float64
}

func (d Deviation) Kind() Kind      { return KindDeviation }
func (d Deviation) Subject() string { return d.Signal }

func (d Deviation) String() string {
	if d.Host {
		return fmt.Sprintf("Anomaly: %s %.1fms (Normal: %.1f±%.1f)", d.Label, d.Value, d.Mean, d.Std)
	}
	return fmt.Sprintf("Anomaly: %s %.1f (Normal: %.1f±%.1f)", d.Label, d.Value, d.Mean, d.Std)
}

// DeviceDown reports a monitored host that no probe strategy could reach.
type DeviceDown struct {
	Host string
}

func (d DeviceDown) Kind() Kind      { return KindDeviceDown }
func (d DeviceDown) Subject() string { return d.Host }
func (d DeviceDown) String() string  { return "Device Down: " + d.Host }

// Threat reports an address flagged by the threat feed.
type Threat struct {
	Address string
}

func (t Threat) Kind() Kind      { return KindThreat }
func (t Threat) Subject() string { return t.Address }
func (t Threat) String() string  { return "Threat IP: " + t.Address }
