// cmd/flightsim/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opd-ai/go-arcadeflight/pkg/config"
	"github.com/opd-ai/go-arcadeflight/pkg/engine"
	"github.com/opd-ai/go-arcadeflight/pkg/health"
	"github.com/opd-ai/go-arcadeflight/pkg/logging"
	"github.com/opd-ai/go-arcadeflight/pkg/telemetry"
)

type options struct {
	configPath string
	scriptPath string
	aircraft   string
	ticks      uint64
	realtime   bool
	hudEvery   int
}

func main() {
	logger := logging.NewLogger()
	ctx := context.Background()

	var opts options
	configPath := flag.String("config", "flightsim.json", "Path to configuration file")
	createDefault := flag.Bool("default", false, "Create default configuration file and exit")
	flag.StringVar(&opts.scriptPath, "script", "", "Maneuver script (JSON, YAML or TOML); empty runs the built-in demo")
	flag.StringVar(&opts.aircraft, "aircraft", "alpha", "Aircraft id for the built-in demo script")
	flag.Uint64Var(&opts.ticks, "ticks", 0, "Ticks to run; 0 runs until the script ends")
	flag.BoolVar(&opts.realtime, "realtime", false, "Pace ticks to wall clock until interrupted")
	flag.IntVar(&opts.hudEvery, "hud-every", 30, "Print a HUD line every N ticks; 0 disables it")
	flag.Parse()
	opts.configPath = *configPath

	if *createDefault {
		if err := config.Save(config.DefaultConfig(), opts.configPath); err != nil {
			logger.Error(ctx, "Failed to create default configuration", err, "config_path", opts.configPath)
			os.Exit(1)
		}
		logger.Info(ctx, "Created default configuration file", "config_path", opts.configPath)
		return
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		logger.Error(ctx, "Failed to load configuration", err, "config_path", opts.configPath)
		os.Exit(1)
	}
	if os.Getenv(logging.LevelEnvVar) == "" {
		logger = logging.NewLoggerWithWriter(os.Stderr, logging.ParseLevel(cfg.LogLevel))
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger); err != nil {
		logger.Error(ctx, "Simulation failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, logger *logging.Logger) error {
	script, err := loadScript(opts)
	if err != nil {
		return err
	}

	sessionID := logging.GenerateCorrelationID()
	ctx = logging.WithCorrelationID(ctx, sessionID)

	metrics, err := telemetry.NewMetrics(nil)
	if err != nil {
		return logging.WrapError(err, "failed to create metrics")
	}

	pipeline := telemetry.NewPipeline(cfg.Telemetry.BufferSize, logger, metrics)
	checker := health.NewChecker()
	if err := addSinks(ctx, cfg, opts, sessionID, pipeline, checker, logger); err != nil {
		_ = pipeline.Close()
		return err
	}
	pipeline.Start(ctx)

	sim, err := engine.NewSimulation(cfg,
		engine.WithLogger(logger),
		engine.WithPipeline(pipeline),
		engine.WithMetrics(metrics),
		engine.WithSessionID(sessionID),
	)
	if err != nil {
		_ = pipeline.Close()
		return err
	}
	for _, id := range aircraftIDs(script) {
		if _, err := sim.SpawnAircraft(id); err != nil {
			_ = pipeline.Close()
			return err
		}
	}
	if err := sim.LoadScript(script); err != nil {
		_ = pipeline.Close()
		return err
	}

	checker.AddCheck(health.NewSimulationCheck(sim.Running, sim.CurrentTick))
	checker.AddCheck(health.NewMemoryCheck(500, nil))
	healthServer := startHealthServer(ctx, cfg, checker, logger)

	sim.Start(ctx)
	if opts.realtime {
		err = sim.RunRealtime(ctx)
	} else {
		ticks := opts.ticks
		if ticks == 0 {
			ticks = script.LastTick() + 120
		}
		err = sim.Run(ctx, ticks)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
	}
	sim.Stop(ctx)

	logger.Info(ctx, "Simulation finished",
		"ticks", sim.CurrentTick(),
		"sim_time", sim.SimTime(),
		"frames", pipeline.Published(),
		"dropped", pipeline.Dropped(),
	)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if healthServer != nil {
		if serr := healthServer.Shutdown(shutdownCtx); serr != nil {
			logger.Error(ctx, "Health check server shutdown failed", serr)
		}
	}
	if cerr := pipeline.Close(); cerr != nil {
		logger.Warn(ctx, "Telemetry sinks closed with errors", "error", cerr.Error())
	}
	return err
}

func loadScript(opts options) (*config.Script, error) {
	if opts.scriptPath == "" {
		return config.DefaultScript(opts.aircraft), nil
	}
	return config.LoadScript(opts.scriptPath)
}

// aircraftIDs returns every aircraft a script addresses, in first-seen order.
func aircraftIDs(script *config.Script) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, e := range script.Events {
		if !seen[e.Aircraft] {
			seen[e.Aircraft] = true
			ids = append(ids, e.Aircraft)
		}
	}
	return ids
}

func addSinks(ctx context.Context, cfg *config.Config, opts options, sessionID string,
	pipeline *telemetry.Pipeline, checker *health.Checker, logger *logging.Logger,
) error {
	if opts.hudEvery > 0 {
		pipeline.AddSink("hud", telemetry.NewHUDSink(os.Stdout, opts.hudEvery))
	}

	tel := cfg.Telemetry
	if tel.Recorder.Enabled {
		rec, err := telemetry.OpenRecorder(ctx, tel.Recorder.Path, telemetry.Session{
			ID:        sessionID,
			Name:      opts.scriptPath,
			StartedAt: time.Now(),
			TimeStep:  cfg.Simulation.TimeStep,
			Tunables:  cfg.Aircraft.Tunables,
		})
		if err != nil {
			return logging.WrapError(err, "failed to open flight recorder", "path", tel.Recorder.Path)
		}
		pipeline.AddSink("recorder", rec)
		logger.Info(ctx, "Recording flight", "path", tel.Recorder.Path)
	}

	if tel.Influx.Enabled {
		sink, err := telemetry.NewInfluxSink(ctx, telemetry.InfluxOptions{
			URL:        tel.Influx.URL,
			Token:      tel.Influx.Token,
			Org:        tel.Influx.Org,
			Bucket:     tel.Influx.Bucket,
			BackupPath: tel.Influx.BackupPath,
			Epoch:      time.Now(),
		}, sessionID, logger)
		if err != nil {
			return err
		}
		guard := telemetry.NewGuard(sink, telemetry.BreakerSettings{
			Name:                "influx",
			MaxRequests:         tel.Breaker.MaxRequests,
			Interval:            tel.Breaker.Interval,
			Timeout:             tel.Breaker.Timeout,
			MaxConsecutiveFails: tel.Breaker.MaxConsecutiveFails,
		}, logger)
		pipeline.AddSink(guard.Name(), guard)
		checker.AddCheck(health.NewBreakerCheck(guard.Name(), guard.State))
	}
	return nil
}

func startHealthServer(ctx context.Context, cfg *config.Config, checker *health.Checker, logger *logging.Logger) *http.Server {
	if !cfg.Health.Enabled {
		return nil
	}
	srv := health.NewServer(cfg.Health.Port, checker)
	go func() {
		logger.Info(ctx, "Starting health check server", "port", cfg.Health.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "Health check server failed", err)
		}
	}()
	return srv
}
