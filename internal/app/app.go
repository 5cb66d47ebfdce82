// Package app wires the monitoring pipeline together: configuration,
// logging, telemetry, the background watcher, the websocket hub and the
// HTTP control API all come up and go down through Application.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/yashar0011/T4D-project/internal/config"
	"github.com/yashar0011/T4D-project/internal/exporter"
	"github.com/yashar0011/T4D-project/internal/infrastructure"
	custommw "github.com/yashar0011/T4D-project/internal/middleware"
	"github.com/yashar0011/T4D-project/internal/pipeline"
	"github.com/yashar0011/T4D-project/internal/services"
	"github.com/yashar0011/T4D-project/internal/settings"
	transporthttp "github.com/yashar0011/T4D-project/internal/transport/http"
	"github.com/yashar0011/T4D-project/internal/websocket"
)

// Application owns every long-lived component of the web process
type Application struct {
	cfg    *config.Config
	logger *slog.Logger

	hub      *websocket.Hub
	watcher  *pipeline.Watcher
	registry *prometheus.Registry
	otel     *infrastructure.OTelProviders

	server *http.Server
}

// NewApplication builds the full component graph from configuration.
// Nothing starts running until Run is called.
func NewApplication(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}

	otelProviders, err := infrastructure.InitOTel(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("telemetry init failed: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := pipeline.NewMetrics(registry)

	hub := websocket.NewHub(logger)

	profiles := settings.LoadProfiles(cfg.Pipeline.SettingsPath, logger)
	source := pipeline.NewRawSource(profiles, logger)
	sinks := []pipeline.Sink{
		exporter.NewCSVSink(logger),
		exporter.NewDataloggerSink(logger),
		exporter.NewExcelSink(logger),
	}
	processor := pipeline.NewProcessor(source, profiles, sinks, logger, metrics)

	cache := pipeline.NewCache(cfg.Pipeline.SettingsPath, logger)
	loader := settings.NewLoader(logger)
	watcher := pipeline.NewWatcher(cfg.Pipeline, settingsSource{loader},
		cache, processor, hub, logger, metrics)

	a := &Application{
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "app")),
		hub:      hub,
		watcher:  watcher,
		registry: registry,
		otel:     otelProviders,
	}
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      a.router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return a, nil
}

// settingsSource adapts the workbook loader to the watcher's interface
type settingsSource struct {
	loader *settings.Loader
}

func (s settingsSource) Load(path string) ([]settings.Row, error) {
	return s.loader.Load(path)
}

func (a *Application) router() chi.Router {
	cfg := a.cfg
	logger := a.logger

	settingsSvc := services.NewSettingsService(cfg.Pipeline.SettingsPath, a.watcher, logger)
	deltaSvc := services.NewDeltaService(settingsSvc, logger)
	outputsSvc := services.NewOutputsService(cfg.Pipeline.OutputRoot, logger)
	healthSvc := services.NewHealthService(cfg.Pipeline.SettingsPath, cfg.Pipeline.OutputRoot)

	r := chi.NewRouter()
	r.Use(custommw.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(custommw.StructuredLogger(logger))
	r.Use(custommw.Recoverer(logger))
	if cfg.Security.RateLimit.Enabled {
		limiter := custommw.NewRateLimiter(cfg.Security.RateLimit.RPS,
			cfg.Security.RateLimit.Burst, logger)
		r.Use(limiter.Handler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Mount("/", transporthttp.NewDeltaHandler(deltaSvc, settingsSvc, logger).Routes())
		r.Mount("/settings", transporthttp.NewSettingsHandler(settingsSvc, logger).Routes())
		r.Mount("/outputs", transporthttp.NewOutputsHandler(outputsSvc, logger).Routes())
		r.Mount("/command", transporthttp.NewCommandHandler(a.watcher, logger).Routes())
		r.Mount("/health", transporthttp.NewHealthHandler(healthSvc, logger).Routes())
		r.Get("/logs", transporthttp.NewOutputsHandler(outputsSvc, logger).Logs)
	})
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		websocket.ServeWS(a.hub, w, req, logger)
	})
	return r
}

// Run starts the watcher and the HTTP server and blocks until ctx is
// cancelled or either of them fails, then shuts everything down.
func (a *Application) Run(ctx context.Context) error {
	a.hub.Start()
	defer a.hub.Stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("pipeline watcher starting",
			slog.String("settings", a.cfg.Pipeline.SettingsPath))
		if err := a.watcher.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("watcher failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.logger.Info("http server starting", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return a.shutdown()
	})

	return g.Wait()
}

func (a *Application) shutdown() error {
	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var firstErr error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown failed", slog.String("error", err.Error()))
		firstErr = err
	}
	if a.otel != nil {
		if err := a.otel.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("telemetry shutdown failed", slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	// Give in-flight broadcasts a moment before the hub drops clients
	time.Sleep(50 * time.Millisecond)
	return firstErr
}
