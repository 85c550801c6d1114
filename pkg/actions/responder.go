package actions

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/lucid-vigil/hostwatch/pkg/actions/block_ip"
	"github.com/lucid-vigil/hostwatch/pkg/detector"
	"github.com/lucid-vigil/hostwatch/pkg/errors"
	"github.com/lucid-vigil/hostwatch/pkg/sample"
	"github.com/lucid-vigil/hostwatch/pkg/telemetry"
	"github.com/rs/zerolog"
)

const DefaultHighTempThreshold = 80.0

// ResponderConfig configures the mapping from anomalies to actions.
type ResponderConfig struct {
	HighTempThreshold float64
	Cooldown          *Cooldown
}

// Planned is one action chosen for an anomaly.
type Planned struct {
	Action string
	Target string
	Data   map[string]interface{}
}

// Plan maps anomalies to actions: a device down notifies users, a temperature
// deviation above highTemp shuts the host down, and an IPv4 threat address is
// blocked. Anything else maps to nothing.
func Plan(anomalies []detector.Anomaly, highTemp float64) []Planned {
	var planned []Planned
	for _, a := range anomalies {
		switch an := a.(type) {
		case detector.DeviceDown:
			planned = append(planned, Planned{
				Action: "notify_users",
				Target: an.Host,
				Data:   map[string]interface{}{"host": an.Host, "message": fmt.Sprintf("Device Down Detected! (%s)", an.Host)},
			})
		case detector.Deviation:
			if an.Signal == string(sample.SignalTemperature) && an.Value > highTemp {
				planned = append(planned, Planned{
					Action: "shutdown_host",
					Target: "localhost",
					Data:   map[string]interface{}{"temperature": an.Value},
				})
			}
		case detector.Threat:
			if block_ip.IsIPv4(an.Address) {
				planned = append(planned, Planned{
					Action: "block_ip",
					Target: an.Address,
					Data:   map[string]interface{}{"ip": an.Address},
				})
			}
		}
	}
	return planned
}

// Responder runs the planned actions for a detection pass. It never fails:
// every action error is logged and dropped.
type Responder struct {
	dispatcher *ActionDispatcher
	cfg        ResponderConfig
	metrics    *telemetry.Metrics
	logger     zerolog.Logger
}

func NewResponder(dispatcher *ActionDispatcher, cfg ResponderConfig, metrics *telemetry.Metrics, logger zerolog.Logger) *Responder {
	if cfg.HighTempThreshold <= 0 {
		cfg.HighTempThreshold = DefaultHighTempThreshold
	}
	return &Responder{
		dispatcher: dispatcher,
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger.With().Str("component", "actions").Logger(),
	}
}

// Respond executes the actions for anomalies, honoring the dispatcher's
// enabled flag and the per action+target cooldown. A window starts only when
// the action actually ran, successfully or not.
func (r *Responder) Respond(ctx context.Context, anomalies []detector.Anomaly) {
	for _, p := range Plan(anomalies, r.cfg.HighTempThreshold) {
		key := p.Action + ":" + p.Target
		if r.cfg.Cooldown.Active(key) {
			r.metrics.CountAction(p.Action, "cooldown")
			r.logger.Debug().Str("action", p.Action).Str("target", p.Target).Msg("Action in cooldown, skipping.")
			continue
		}

		err := r.dispatcher.Execute(ctx, p.Action, p.Data)
		if stderrors.Is(err, ErrActionsDisabled) {
			r.metrics.CountAction(p.Action, "disabled")
			continue
		}
		r.cfg.Cooldown.Start(key)
		if err != nil {
			r.metrics.CountAction(p.Action, "failed")
			errors.NewActionError(p.Action, p.Target, err).Log(r.logger)
			continue
		}
		r.metrics.CountAction(p.Action, "executed")
	}
}
