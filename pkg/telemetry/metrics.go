package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the operational collectors exported on /metrics.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	// Latest reading of each fixed signal.
	SignalValue *prometheus.GaugeVec

	// Latest ping latency per monitored host, -1 when unreachable.
	HostLatency *prometheus.GaugeVec

	// Anomalies emitted by detection passes, by kind.
	Anomalies *prometheus.CounterVec

	// Wall time of one monitor tick (probe through persist).
	TickDuration prometheus.Histogram

	// Readings that did not come from the primary source.
	ProbeDegraded *prometheus.CounterVec

	// Remedial actions by name and status (executed, failed, disabled, cooldown).
	Actions *prometheus.CounterVec

	// Size of the current threat indicator set.
	ThreatIndicators prometheus.Gauge

	// Threat feed circuit breaker state per source (0=closed, 1=half-open, 2=open).
	FeedBreakerState *prometheus.GaugeVec

	// Baseline store writes by status.
	BaselineSaves *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Unregistered local registry when none is supplied.
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		SignalValue: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "hostwatch_signal_value",
			Help: "Latest sampled value of each host signal.",
		}, []string{"signal"}),

		HostLatency: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "hostwatch_host_latency_ms",
			Help: "Latest ping latency per monitored host in milliseconds (-1 = unreachable).",
		}, []string{"host"}),

		Anomalies: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hostwatch_anomalies_total",
			Help: "Total anomalies reported by detection passes.",
		}, []string{"kind"}),

		TickDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "hostwatch_tick_duration_seconds",
			Help:    "Duration of a monitor tick.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}),

		ProbeDegraded: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hostwatch_probe_degraded_total",
			Help: "Readings produced by a fallback, simulated or default strategy.",
		}, []string{"signal", "outcome"}),

		Actions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hostwatch_actions_total",
			Help: "Remedial actions by name and status.",
		}, []string{"action", "status"}),

		ThreatIndicators: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "hostwatch_threat_indicators",
			Help: "Number of addresses in the current threat indicator set.",
		}),

		FeedBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "hostwatch_feed_circuit_breaker_state",
			Help: "Threat feed circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"source"}),

		BaselineSaves: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hostwatch_baseline_saves_total",
			Help: "Baseline store writes by status.",
		}, []string{"status"}),
	}
}

func (m *Metrics) ObserveSignal(signal string, value float64) {
	if m == nil {
		return
	}
	m.SignalValue.WithLabelValues(signal).Set(value)
}

func (m *Metrics) ObserveHost(host string, latency float64) {
	if m == nil {
		return
	}
	m.HostLatency.WithLabelValues(host).Set(latency)
}

func (m *Metrics) CountAnomaly(kind string) {
	if m == nil {
		return
	}
	m.Anomalies.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.TickDuration.Observe(d.Seconds())
}

func (m *Metrics) CountDegraded(signal, outcome string) {
	if m == nil {
		return
	}
	m.ProbeDegraded.WithLabelValues(signal, outcome).Inc()
}

func (m *Metrics) CountAction(action, status string) {
	if m == nil {
		return
	}
	m.Actions.WithLabelValues(action, status).Inc()
}

func (m *Metrics) SetThreatIndicators(n int) {
	if m == nil {
		return
	}
	m.ThreatIndicators.Set(float64(n))
}

func (m *Metrics) SetBreakerState(source string, state int) {
	if m == nil {
		return
	}
	m.FeedBreakerState.WithLabelValues(source).Set(float64(state))
}

func (m *Metrics) CountSave(status string) {
	if m == nil {
		return
	}
	m.BaselineSaves.WithLabelValues(status).Inc()
}
