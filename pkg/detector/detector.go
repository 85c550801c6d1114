package detector

import (
	"math"
	"sort"

	"github.com/lucid-vigil/hostwatch/pkg/baseline"
	"github.com/lucid-vigil/hostwatch/pkg/sample"
)

// DefaultThreshold is the deviation multiplier used when none is configured.
const DefaultThreshold = 3.0

const (
	learningLine = "Learning..."
	normalLine   = "All Normal"
)

// Input is everything a detection pass looks at.
type Input struct {
	Latest    sample.Sample
	Collected int // samples collected since start
	Baselines baseline.Set
	Feedback  baseline.Feedback
	Threats   []string
	Hosts     []string
	Threshold float64
}

// Result is the outcome of a detection pass.
type Result struct {
	Learning  bool
	Anomalies []Anomaly
}

// HasAnomaly reports whether the pass found anything. The cold-start state is
// never an anomaly.
func (r Result) HasAnomaly() bool {
	return !r.Learning && len(r.Anomalies) > 0
}

// Lines renders the result for display: a single "Learning..." line during
// cold start, "All Normal" when nothing was found, otherwise one line per
// anomaly in detection order.
func (r Result) Lines() []string {
	if r.Learning {
		return []string{learningLine}
	}
	if len(r.Anomalies) == 0 {
		return []string{normalLine}
	}
	lines := make([]string, 0, len(r.Anomalies))
	for _, a := range r.Anomalies {
		lines = append(lines, a.String())
	}
	return lines
}

// Detect compares the latest sample with the learned baselines. Fixed signals
// come first in declaration order, then monitored hosts in configuration
// order, then threat addresses sorted ascending.
func Detect(in Input) Result {
	if in.Collected < baseline.MinSamples {
		return Result{Learning: true}
	}

	threshold := in.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var found []Anomaly

	for _, sig := range sample.Signals {
		value, _ := in.Latest.Value(sig)
		stats, ok := in.Baselines[string(sig)]
		if !ok || !deviates(value, stats, threshold) {
			continue
		}
		if in.Feedback.Dismissed(string(sig), value) {
			continue
		}
		found = append(found, Deviation{
			Signal: string(sig),
			Label:  sig.Label(),
			Value:  value,
			Mean:   stats.Mean,
			Std:    stats.Std,
		})
	}

	for _, host := range in.Hosts {
		latency, ok := in.Latest.HostStatus[host]
		if !ok {
			continue
		}
		if latency < 0 {
			found = append(found, DeviceDown{Host: host})
			continue
		}
		stats, ok := in.Baselines[host]
		if !ok || !deviates(latency, stats, threshold) {
			continue
		}
		if in.Feedback.Dismissed(host, latency) {
			continue
		}
		found = append(found, Deviation{
			Signal: host,
			Label:  host,
			Host:   true,
			Value:  latency,
			Mean:   stats.Mean,
			Std:    stats.Std,
		})
	}

	threats := append([]string(nil), in.Threats...)
	sort.Strings(threats)
	for _, addr := range threats {
		found = append(found, Threat{Address: addr})
	}

	return Result{Anomalies: found}
}

// deviates never fires for a zero standard deviation.
func deviates(value float64, stats baseline.Stats, threshold float64) bool {
	if stats.Std <= 0 {
		return false
	}
	return math.Abs(value-stats.Mean) > threshold*stats.Std
}
