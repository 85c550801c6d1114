package engine

import (
	"fmt"
	"time"

	"github.com/lucid-vigil/hostwatch/pkg/baseline"
	"github.com/lucid-vigil/hostwatch/pkg/detector"
	"github.com/lucid-vigil/hostwatch/pkg/sample"
)

// DefaultHistoryLimit is the history length returned when the caller gives none.
const DefaultHistoryLimit = 60

// Snapshot is an immutable view of engine state published after every
// mutation. Callers must not modify it.
type Snapshot struct {
	Latest    *sample.Sample
	Result    detector.Result
	History   []sample.Sample // most recent first
	Baselines baseline.Set
	Threats   []string
	Collected int
	Dismissed int
}

// Settings is the read-only configuration exposed to the serving layer.
type Settings struct {
	WindowSize       int             `json:"window_size"`
	IntervalSeconds  float64         `json:"interval_seconds"`
	AnomalyThreshold float64         `json:"anomaly_threshold"`
	MonitoredHosts   []string        `json:"monitored_hosts"`
	StatVisibility   map[string]bool `json:"stat_visibility"`
}

func (e *Engine) Snapshot() *Snapshot {
	return e.snapshot.Load()
}

// Status returns the short status lines shown on the display, with the
// current wall-clock time first.
func (e *Engine) Status() []string {
	return statusLines(e.now(), e.Snapshot().Latest)
}

func statusLines(now time.Time, latest *sample.Sample) []string {
	clock := now.Format("15:04:05")
	if latest == nil {
		return []string{clock, "No data available"}
	}
	return []string{
		clock,
		fmt.Sprintf("CPU:%.1f%% RAM:%.1f%%", latest.CPUPercent, latest.RAMPercent),
		fmt.Sprintf("Disk:%.1f%% Tmp:%.1fC", latest.DiskPercent, latest.Temperature),
		fmt.Sprintf("Ping:%.1fms Net:%d", latest.PingMs, latest.NetInterfaces),
		fmt.Sprintf("Fails:%d", latest.FailedLogins),
	}
}

// Anomalies returns the rendered anomaly lines and whether any anomaly is present.
func (e *Engine) Anomalies() ([]string, bool) {
	res := e.Snapshot().Result
	return res.Lines(), res.HasAnomaly()
}

// History returns up to limit samples, most recent first. A non-positive
// limit means DefaultHistoryLimit.
func (e *Engine) History(limit int) []sample.Sample {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	h := e.Snapshot().History
	if limit > len(h) {
		limit = len(h)
	}
	out := make([]sample.Sample, limit)
	copy(out, h[:limit])
	return out
}

// Baselines returns a copy of the learned baselines.
func (e *Engine) Baselines() baseline.Set {
	return e.Snapshot().Baselines.Clone()
}

func (e *Engine) Settings() Settings {
	hosts := append([]string(nil), e.cfg.MonitoredHosts...)
	vis := make(map[string]bool, len(e.cfg.StatVisibility))
	for k, v := range e.cfg.StatVisibility {
		vis[k] = v
	}
	return Settings{
		WindowSize:       e.cfg.WindowSize,
		IntervalSeconds:  e.cfg.Interval.Seconds(),
		AnomalyThreshold: e.cfg.Threshold,
		MonitoredHosts:   hosts,
		StatVisibility:   vis,
	}
}
