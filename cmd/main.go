package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nkontos/persona-engine/config"
	"github.com/nkontos/persona-engine/internal/backend"
	"github.com/nkontos/persona-engine/internal/cascade"
	"github.com/nkontos/persona-engine/internal/circuitbreaker"
	"github.com/nkontos/persona-engine/internal/engine"
	"github.com/nkontos/persona-engine/internal/governor"
	"github.com/nkontos/persona-engine/internal/handler"
	"github.com/nkontos/persona-engine/internal/httpserver"
	"github.com/nkontos/persona-engine/internal/metrics"
	"github.com/nkontos/persona-engine/internal/persona"
	"github.com/nkontos/persona-engine/internal/session"
	"github.com/nkontos/persona-engine/pkg/logger"
)

const metricsBufferSize = 1024

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := parseDurations(cfg)
	if err != nil {
		log.Error("Failed to parse durations", slog.Any("err", err))
		os.Exit(1)
	}

	backends, err := initializeBackends(cfg)
	if err != nil {
		log.Error("Failed to initialize backends", slog.Any("err", err))
		os.Exit(1)
	}

	schedule, err := buildSchedule(cfg.Cascade.RetrySchedule)
	if err != nil {
		log.Error("Failed to build retry schedule", slog.Any("err", err))
		os.Exit(1)
	}

	store, err := persona.Load(cfg.Personas.Dir)
	if err != nil {
		log.Error("Failed to load personas",
			slog.String("dir", cfg.Personas.Dir),
			slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("Personas loaded", slog.Any("personas", store.Names()))

	breaker := circuitbreaker.NewTracker(cfg.Cascade.BreakerThreshold, d.breakerTimeout)
	gov := governor.New(cfg.Cascade.MaxConcurrent)
	sessions := session.NewRegistry(d.sessionTTL, log)

	collector := metrics.NewCollector(metricsBufferSize, log)
	collector.Start(ctx)
	sessions.OnEvict(func(key string) {
		collector.Emit(metrics.Event{Type: metrics.EventSessionEvicted})
	})
	go sessions.Run(ctx, d.sweepInterval, gov)

	executor := cascade.NewExecutor(backends, breaker, schedule,
		d.probeTimeout, d.respondTimeout, log)

	eng := engine.New(engine.Options{
		Executor:              executor,
		Breaker:               breaker,
		Governor:              gov,
		Sessions:              sessions,
		Collector:             collector,
		Personas:              store,
		MaxResponseTime:       d.maxResponseTime,
		BackpressureThreshold: cfg.Cascade.BackpressureThreshold,
		Logger:                log,
	})

	chatHandler := handler.New(eng, log)
	mux := setupRouter(chatHandler, collector)

	// The write timeout needs headroom over the response budget so a cascade
	// that uses the full budget can still flush its answer.
	srv, err := httpserver.New(cfg.Server.Address, mux, d.maxResponseTime+15*time.Second)
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("Persona engine listening",
		slog.String("address", cfg.Server.Address),
		slog.Int("backends", len(backends)))

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting server", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

type durations struct {
	probeTimeout    time.Duration
	respondTimeout  time.Duration
	breakerTimeout  time.Duration
	maxResponseTime time.Duration
	sessionTTL      time.Duration
	sweepInterval   time.Duration
}

func parseDurations(cfg *config.Config) (durations, error) {
	var d durations
	for _, field := range []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{cfg.Cascade.ProbeTimeout, "cascade.probe_timeout", &d.probeTimeout},
		{cfg.Cascade.RespondTimeout, "cascade.respond_timeout", &d.respondTimeout},
		{cfg.Cascade.BreakerTimeout, "cascade.breaker_timeout", &d.breakerTimeout},
		{cfg.Cascade.MaxResponseTime, "cascade.max_response_time", &d.maxResponseTime},
		{cfg.Session.TTL, "session.ttl", &d.sessionTTL},
		{cfg.Session.SweepInterval, "session.sweep_interval", &d.sweepInterval},
	} {
		parsed, err := time.ParseDuration(field.raw)
		if err != nil {
			return durations{}, fmt.Errorf("invalid %s %q: %w", field.name, field.raw, err)
		}
		*field.dst = parsed
	}
	return d, nil
}

func initializeBackends(cfg *config.Config) ([]backend.Backend, error) {
	settings := make([]backend.Settings, 0, len(cfg.Backends))
	for _, b := range cfg.Backends {
		settings = append(settings, backend.Settings{
			Name:   b.Name,
			Kind:   b.Kind,
			URL:    b.URL,
			APIKey: b.APIKey,
			Model:  b.Model,
			Reply:  b.Reply,
		})
	}

	return backend.Build(settings, cfg.Cascade.Backends)
}

func buildSchedule(raw []string) (cascade.Schedule, error) {
	if len(raw) == 0 {
		return cascade.DefaultSchedule(), nil
	}

	schedule := make(cascade.Schedule, 0, len(raw))
	for _, entry := range raw {
		d, err := time.ParseDuration(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid retry schedule entry %q: %w", entry, err)
		}
		schedule = append(schedule, d)
	}

	return schedule, nil
}
