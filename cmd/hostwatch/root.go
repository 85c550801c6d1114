package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lucid-vigil/hostwatch/pkg/actions"
	"github.com/lucid-vigil/hostwatch/pkg/api"
	"github.com/lucid-vigil/hostwatch/pkg/config"
	"github.com/lucid-vigil/hostwatch/pkg/engine"
	"github.com/lucid-vigil/hostwatch/pkg/errors"
	"github.com/lucid-vigil/hostwatch/pkg/logger"
	"github.com/lucid-vigil/hostwatch/pkg/probe"
	"github.com/lucid-vigil/hostwatch/pkg/scheduler"
	"github.com/lucid-vigil/hostwatch/pkg/store"
	"github.com/lucid-vigil/hostwatch/pkg/telemetry"
	"github.com/lucid-vigil/hostwatch/pkg/threatfeed"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// feedFetchesPerSecond paces outbound blocklist downloads across all sources.
const feedFetchesPerSecond = 1

var configPath string

var rootCmd = &cobra.Command{
	Use:   "hostwatch",
	Short: "Host health monitor with learned baselines",
	Long: `Samples host health signals on a fixed interval, learns a rolling
baseline for each one, flags deviations and known-threat addresses, and
optionally takes remedial action. Runs until interrupted.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigFrom(configPath)
		if err != nil {
			errors.NewConfigError("config", err, map[string]interface{}{"path": configPath}).Log(log.Logger)
			return err
		}
		if err := logger.InitLogger(cfg.LogLevel, cfg.LogFile); err != nil {
			log.Warn().Err(err).Msg("Logging to stdout only.")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return run(ctx, cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: ./config.yaml or /etc/hostwatch/config.yaml)")
}

// run wires every component from cfg and blocks until ctx is done or a
// component fails.
func run(ctx context.Context, cfg *config.Config) error {
	log.Info().Msg("hostwatch starting...")
	log.Info().Msgf("Configuration loaded: LogLevel=%s, APIPort=%s, Interval=%s", cfg.LogLevel, cfg.APIPort, cfg.Monitoring.Interval)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	prober := probe.New(probe.Config{
		MonitoredHosts:    cfg.Monitoring.MonitoredHosts,
		AuthLogPaths:      cfg.Monitoring.AuthLogPaths,
		FallbackGateway:   cfg.Monitoring.FallbackGateway,
		SimulateFallbacks: cfg.Monitoring.SimulateFallbacks,
	}, log.Logger)

	dispatcher := actions.NewActionDispatcher(cfg.Actions.Enabled, actions.DefaultCommandTimeout)
	responder := actions.NewResponder(dispatcher, actions.ResponderConfig{
		HighTempThreshold: cfg.Actions.HighTempThreshold,
		Cooldown:          actions.NewCooldown(cfg.Actions.Cooldown),
	}, metrics, log.Logger)

	poller := threatfeed.NewPoller(feedSources(cfg.ThreatFeed), metrics, log.Logger)

	eng := engine.New(engine.Config{
		WindowSize:     cfg.Monitoring.WindowSize,
		Interval:       cfg.Monitoring.Interval,
		Threshold:      cfg.Monitoring.AnomalyThreshold,
		MonitoredHosts: cfg.Monitoring.MonitoredHosts,
		StatVisibility: cfg.Display.StatVisibility,
	}, prober, store.NewFileStore(cfg.Monitoring.BaselineFile), responder, poller, metrics, log.Logger)

	sched := scheduler.NewScheduler()
	for _, j := range eng.Jobs(cfg.ThreatFeed.Interval) {
		sched.RegisterJob(j)
	}

	server := api.NewServer(eng, reg, log.Logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		eng.Run(gctx)
		return nil
	})
	g.Go(func() error {
		sched.Start(gctx)
		sched.Wait()
		return nil
	})
	g.Go(func() error {
		if err := server.ListenAndServe(gctx, ":"+cfg.APIPort); err != nil {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	if cfg.ThreatFeed.WatchFiles {
		g.Go(func() error {
			err := poller.Watch(gctx, func() {
				if err := eng.RefreshThreats(gctx); err != nil && gctx.Err() == nil {
					log.Error().Err(err).Msg("Threat refresh after blocklist change failed.")
				}
			})
			if err != nil {
				// Blocklists are still re-read on the threat_feed interval.
				log.Warn().Err(err).Msg("Blocklist watcher unavailable.")
			}
			return nil
		})
	}

	err := g.Wait()
	log.Info().Msg("hostwatch stopped.")
	return err
}

func feedSources(cfg config.ThreatFeedConfig) []threatfeed.Source {
	limiter := rate.NewLimiter(rate.Limit(feedFetchesPerSecond), 1)
	var sources []threatfeed.Source
	for _, s := range cfg.Sources {
		sources = append(sources, threatfeed.NewHTTPSource(s.Name, s.URL, cfg.Timeout, limiter))
	}
	for _, path := range cfg.BlocklistFiles {
		sources = append(sources, threatfeed.NewFileSource(path))
	}
	return sources
}
