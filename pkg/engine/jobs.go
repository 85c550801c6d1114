package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lucid-vigil/hostwatch/pkg/baseline"
	"github.com/lucid-vigil/hostwatch/pkg/detector"
	"github.com/lucid-vigil/hostwatch/pkg/errors"
	"github.com/lucid-vigil/hostwatch/pkg/sample"
	"github.com/rs/zerolog"
)

// Tick runs one monitor pass: probe, then append/learn/detect on the owner,
// then act on anomalies, then persist. It returns the detection result.
func (e *Engine) Tick(ctx context.Context) (detector.Result, error) {
	start := e.now()
	logger := e.logger.With().Str("tick_id", uuid.New().String()).Logger()

	s := e.prober.Collect(ctx)
	e.observeSample(s)

	var res detector.Result
	err := e.exec(ctx, func(st *state) {
		st.window.Append(s)
		st.collected++
		if learned := baseline.Learn(st.window, e.cfg.MonitoredHosts); learned != nil {
			for k, v := range learned {
				st.baselines[k] = v
			}
		}
		st.result = e.detect(st)
		res = st.result
	})
	if err != nil {
		return res, err
	}

	if res.Learning {
		logger.Debug().Int("window", e.cfg.WindowSize).Msg("Learning baseline.")
	}

	if res.HasAnomaly() {
		for _, a := range res.Anomalies {
			e.metrics.CountAnomaly(string(a.Kind()))
			logger.Warn().Str("kind", string(a.Kind())).Str("subject", a.Subject()).Msg(a.String())
		}
		if e.responder != nil {
			e.responder.Respond(ctx, res.Anomalies)
		}
	}

	var saveErr error
	err = e.exec(ctx, func(st *state) {
		saveErr = e.save(st)
	})
	if err != nil {
		return res, err
	}
	if saveErr != nil {
		logPersistence(logger, saveErr)
	}

	e.metrics.ObserveTick(e.now().Sub(start))
	logger.Debug().Dur("elapsed", e.now().Sub(start)).Bool("anomaly", res.HasAnomaly()).Msg("Monitor tick complete.")
	return res, nil
}

// RefreshThreats replaces the threat indicator set from the threat source
// and re-runs detection so readers see the new set immediately.
func (e *Engine) RefreshThreats(ctx context.Context) error {
	if e.threats == nil {
		return nil
	}
	addrs := e.threats.Refresh(ctx)

	err := e.exec(ctx, func(st *state) {
		st.threats = addrs
		st.result = e.detect(st)
	})
	if err != nil {
		return err
	}
	e.logger.Info().Int("threats", len(addrs)).Msg("Threat indicators updated.")
	return nil
}

// Dismiss records that value is normal for signal (a fixed signal name or a
// monitored host) and persists the dismissal. It returns the feedback key.
func (e *Engine) Dismiss(ctx context.Context, signal string, value float64) (string, error) {
	if !e.knownSignal(signal) {
		return "", fmt.Errorf("%w: %q", ErrUnknownSignal, signal)
	}
	var key string
	var saveErr error
	err := e.exec(ctx, func(st *state) {
		key = st.feedback.Dismiss(signal, value)
		st.result = e.detect(st)
		saveErr = e.save(st)
	})
	if err != nil {
		return "", err
	}
	if saveErr != nil {
		logPersistence(e.logger, saveErr)
	}
	e.logger.Info().Str("key", key).Msg("Anomaly dismissed.")
	return key, nil
}

func (e *Engine) knownSignal(name string) bool {
	for _, sig := range sample.Signals {
		if string(sig) == name {
			return true
		}
	}
	for _, host := range e.cfg.MonitoredHosts {
		if host == name {
			return true
		}
	}
	return false
}

func (e *Engine) observeSample(s sample.Sample) {
	for _, sig := range sample.Signals {
		v, _ := s.Value(sig)
		e.metrics.ObserveSignal(string(sig), v)
	}
	for host, latency := range s.HostStatus {
		e.metrics.ObserveHost(host, latency)
	}
	for key, outcome := range s.Provenance {
		if outcome != sample.OutcomeMeasured {
			e.metrics.CountDegraded(key, outcome.String())
		}
	}
}

// Jobs returns the monitor and threat-feed jobs for the scheduler.
func (e *Engine) Jobs(threatInterval time.Duration) []*Job {
	return []*Job{
		{name: "monitor", interval: e.cfg.Interval, run: func(ctx context.Context) error {
			_, err := e.Tick(ctx)
			return err
		}},
		{name: "threat_feed", interval: threatInterval, run: e.RefreshThreats},
	}
}

// Job adapts an engine operation to the scheduler.
type Job struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
}

func (j *Job) Name() string            { return j.name }
func (j *Job) Interval() time.Duration { return j.interval }

func (j *Job) Run(ctx context.Context) error {
	return j.run(ctx)
}

func logPersistence(logger zerolog.Logger, err error) {
	var me *errors.MonitorError
	if stderrors.As(err, &me) {
		me.Log(logger)
		return
	}
	logger.Warn().Err(err).Msg("Baseline save failed.")
}
