package engine

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"time"

	"github.com/lucid-vigil/hostwatch/pkg/baseline"
	"github.com/lucid-vigil/hostwatch/pkg/detector"
	"github.com/lucid-vigil/hostwatch/pkg/errors"
	"github.com/lucid-vigil/hostwatch/pkg/sample"
	"github.com/lucid-vigil/hostwatch/pkg/store"
	"github.com/lucid-vigil/hostwatch/pkg/telemetry"
	"github.com/rs/zerolog"
)

// DefaultInterval is the monitor tick period used when Config leaves it unset.
const DefaultInterval = 5 * time.Second

// ErrStopped is returned by operations submitted after Run has returned.
var ErrStopped = stderrors.New("engine stopped")

// ErrUnknownSignal is returned by Dismiss for a name that is neither a fixed
// signal nor a monitored host.
var ErrUnknownSignal = stderrors.New("unknown signal")

// Prober produces one sample per call and never fails.
type Prober interface {
	Collect(ctx context.Context) sample.Sample
}

// Store persists learned baselines and dismissals.
type Store interface {
	Load() (store.Document, error)
	Save(doc store.Document) error
}

// Responder performs remedial actions for anomalies.
type Responder interface {
	Respond(ctx context.Context, anomalies []detector.Anomaly)
}

// ThreatSource returns the current threat indicator set.
type ThreatSource interface {
	Refresh(ctx context.Context) []string
}

// Config is fixed for the engine's lifetime.
type Config struct {
	WindowSize     int
	Interval       time.Duration
	Threshold      float64
	MonitoredHosts []string
	StatVisibility map[string]bool
}

// state is owned by the Run goroutine; nothing else touches it.
type state struct {
	window    *sample.Window
	baselines baseline.Set
	feedback  baseline.Feedback
	threats   []string
	collected int
	result    detector.Result
}

// Engine serializes every mutation of monitoring state through one owner
// goroutine and publishes an immutable Snapshot after each one, so readers
// never wait on a tick.
type Engine struct {
	cfg       Config
	prober    Prober
	store     Store
	responder Responder
	threats   ThreatSource
	metrics   *telemetry.Metrics
	logger    zerolog.Logger
	now       func() time.Time

	commands chan func(*state)
	stopped  chan struct{}
	snapshot atomic.Pointer[Snapshot]

	st *state
}

// New builds an engine and restores persisted baselines and dismissals from
// st. A load failure is logged and the engine starts empty.
func New(cfg Config, prober Prober, st Store, responder Responder, threats ThreatSource, metrics *telemetry.Metrics, logger zerolog.Logger) *Engine {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = sample.DefaultWindowSize
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = detector.DefaultThreshold
	}

	e := &Engine{
		cfg:       cfg,
		prober:    prober,
		store:     st,
		responder: responder,
		threats:   threats,
		metrics:   metrics,
		logger:    logger.With().Str("component", "engine").Logger(),
		now:       time.Now,
		commands:  make(chan func(*state)),
		stopped:   make(chan struct{}),
		st: &state{
			window:    sample.NewWindow(cfg.WindowSize),
			baselines: baseline.Set{},
			feedback:  baseline.Feedback{},
		},
	}

	if st != nil {
		doc, err := st.Load()
		if err != nil {
			var me *errors.MonitorError
			if stderrors.As(err, &me) {
				me.Log(e.logger)
			} else {
				e.logger.Warn().Err(err).Msg("Failed to load baseline, starting fresh.")
			}
		}
		e.st.baselines = doc.Baseline
		e.st.feedback = doc.Feedback
		if e.st.baselines == nil {
			e.st.baselines = baseline.Set{}
		}
		if e.st.feedback == nil {
			e.st.feedback = baseline.Feedback{}
		}
		e.logger.Info().Int("baselines", len(e.st.baselines)).Int("dismissed", len(e.st.feedback)).Msg("Baseline restored.")
	}

	e.st.result = e.detect(e.st)
	e.publish(e.st)
	return e
}

// Run owns the engine state until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.stopped)
	e.logger.Info().Msg("Engine started.")
	for {
		select {
		case cmd := <-e.commands:
			cmd(e.st)
		case <-ctx.Done():
			e.logger.Info().Msg("Engine stopped.")
			return
		}
	}
}

// exec runs fn on the owner goroutine, publishes a new snapshot and waits
// for both to finish.
func (e *Engine) exec(ctx context.Context, fn func(*state)) error {
	done := make(chan struct{})
	cmd := func(st *state) {
		defer close(done)
		fn(st)
		e.publish(st)
	}

	select {
	case e.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopped:
		return ErrStopped
	}

	<-done
	return nil
}

func (e *Engine) detect(st *state) detector.Result {
	latest, _ := st.window.Latest()
	return detector.Detect(detector.Input{
		Latest:    latest,
		Collected: st.collected,
		Baselines: st.baselines,
		Feedback:  st.feedback,
		Threats:   st.threats,
		Hosts:     e.cfg.MonitoredHosts,
		Threshold: e.cfg.Threshold,
	})
}

// save persists the current baselines and dismissals. Runs on the owner.
func (e *Engine) save(st *state) error {
	if e.store == nil {
		return nil
	}
	err := e.store.Save(store.Document{
		Baseline: st.baselines.Clone(),
		Feedback: st.feedback.Clone(),
	})
	if err != nil {
		e.metrics.CountSave("error")
		return err
	}
	e.metrics.CountSave("ok")
	return nil
}

func (e *Engine) publish(st *state) {
	latest, ok := st.window.Latest()
	snap := &Snapshot{
		Result:    st.result,
		History:   st.window.Recent(0),
		Baselines: st.baselines.Clone(),
		Threats:   append([]string(nil), st.threats...),
		Collected: st.collected,
		Dismissed: len(st.feedback),
	}
	if ok {
		snap.Latest = &latest
	}
	e.snapshot.Store(snap)
}
