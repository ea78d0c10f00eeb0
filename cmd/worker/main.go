package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"vigil-worker-go/internal/alerts"
	"vigil-worker-go/internal/analysis"
	"vigil-worker-go/internal/api"
	"vigil-worker-go/internal/capture"
	"vigil-worker-go/internal/config"
	"vigil-worker-go/internal/fanout"
	"vigil-worker-go/internal/ingest"
	"vigil-worker-go/internal/logging"
	"vigil-worker-go/internal/models"
	"vigil-worker-go/internal/pipeline"
	"vigil-worker-go/internal/sched"
	"vigil-worker-go/internal/services/messaging"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load configuration
	cfg := config.Load()

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("Invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Optionally tee logs into the embedded Logdy UI
	if cfg.LogdyEnabled {
		logdyWriter, url, err := logging.StartLogdy(cfg.LogdyHost, cfg.LogdyPort)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to start Logdy, continuing without it")
		} else {
			log.Logger = logging.Tee(zerolog.ConsoleWriter{Out: os.Stderr}, logdyWriter)
			log.Info().Str("url", url).Msg("Log viewer enabled")
		}
	}

	device, err := config.LoadDevice(cfg.DeviceFile)
	if err != nil {
		log.Fatal().Err(err).Str("device_file", cfg.DeviceFile).Msg("Failed to load device file")
	}

	log.Info().
		Str("worker_id", cfg.WorkerID).
		Str("device_id", device.DeviceID).
		Str("version", cfg.Version).
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Int("cameras", len(device.Cameras)).
		Int("rules", len(device.Rules)).
		Msg("Starting vigil worker")

	// Message bus is optional: the worker degrades to local-only alerts
	// and records when NATS is unreachable.
	var bus *messaging.Service
	if svc, err := messaging.NewService(cfg); err != nil {
		log.Warn().Err(err).Str("url", cfg.NatsURL).Msg("NATS unavailable, events stay local")
	} else {
		bus = svc
	}

	registry := analysis.NewRegistry()
	for _, desc := range analysis.Bundled() {
		registry.Register(desc)
	}

	scheduler := sched.New(cfg.MaxAcceleratedSlots, cfg.AcceleratedStride, cfg.GeneralStride,
		logging.NewServiceLogger(cfg, "sched"))
	hub := fanout.NewHub(cfg.MaxConcurrentStreams, cfg.ViewerQueueSize,
		logging.NewServiceLogger(cfg, "fanout"))

	var alertPublisher alerts.Publisher
	if bus != nil {
		alertPublisher = bus
	}
	engine := alerts.NewEngine(device.Rules, alertPublisher, alerts.Options{
		EvalInterval: cfg.AlertsEvalInterval,
		Debounce:     cfg.AlertsDebounce,
		Retention:    cfg.AlertsRetention,
		Subject:      cfg.AlertsSubject,
	}, logging.NewServiceLogger(cfg, "alerts"))

	// Records feed the alerts engine and, when connected, the bus.
	sinks := pipeline.MultiSink{engine}
	if bus != nil {
		sinks = append(sinks, messaging.NewRecorder(bus, cfg.RecordsSubject))
	}

	manager := pipeline.NewManager(
		device,
		registry,
		scheduler,
		func(cam models.CameraConfig) capture.Source {
			return ingest.NewRTSPSource(cam.ID, cam.URL, cfg.OutputWidth, cfg.OutputHeight)
		},
		hub,
		sinks,
		capture.Options{
			BackoffMin:           cfg.ReconnectBackoffMin,
			BackoffMax:           cfg.ReconnectBackoffMax,
			JitterPct:            cfg.ReconnectJitterPct,
			MaxConsecutiveErrors: cfg.MaxConsecutiveErrors,
		},
		pipeline.Options{
			ForwardSkippedFrames: cfg.ForwardSkippedFrames,
			DegradedThreshold:    cfg.DegradedThreshold,
			FPSWindowSize:        cfg.FPSWindowSize,
		},
		logging.NewServiceLogger(cfg, "pipeline"),
	)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	go engine.Run(rootCtx)

	// Bring up every enabled camera with its configured processor.
	for _, cam := range device.Cameras {
		if !cam.Enabled {
			continue
		}
		camLog := logging.WithCamera(log.Logger, cam.ID)
		if err := manager.Activate(rootCtx, cam.ID, cam.InitialProcessor); err != nil {
			camLog.Error().Err(err).Str("processor", cam.InitialProcessor).Msg("Auto-activation failed")
			continue
		}
		camLog.Info().Str("processor", cam.InitialProcessor).Msg("Camera auto-activated")
	}

	server := api.NewServer(cfg, device, manager, registry, hub, engine, scheduler)
	server.Setup()
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("API server forced to shutdown")
	}
	manager.Shutdown(ctx)
	rootCancel()
	if bus != nil {
		if err := bus.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Error draining message bus")
		}
	}
	log.Info().Msg("Shutdown complete")
}
