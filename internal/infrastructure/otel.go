package infrastructure

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/yashar0011/T4D-project/internal/config"
)

// OTelProviders bundles the configured OpenTelemetry providers so they can
// be shut down together.
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
}

// InitOTel configures the global tracer provider. When telemetry is
// disabled it installs nothing and returns a no-op shutdown.
func InitOTel(cfg config.TelemetryConfig) (*OTelProviders, error) {
	if !cfg.Enabled {
		return &OTelProviders{}, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(cfg.Service),
		))
	if err != nil {
		return nil, fmt.Errorf("failed to build otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &OTelProviders{TracerProvider: tp}, nil
}

// Shutdown flushes and stops all providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	if p == nil || p.TracerProvider == nil {
		return nil
	}
	return p.TracerProvider.Shutdown(ctx)
}
