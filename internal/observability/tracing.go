// Package observability provides OpenTelemetry integration for distributed tracing.
//
// Traces are exported over OTLP HTTP to a local collector (an OTel
// Collector or a vendor agent listening on localhost:4318). The exporter
// degrades gracefully: when no collector is reachable the service runs
// with tracing disabled rather than failing startup.
package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config for OTLP trace export.
type Config struct {
	// Endpoint is the collector's OTLP HTTP endpoint (host:port). Empty
	// disables tracing.
	Endpoint string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// ServiceName is the service name attached to exported spans.
	ServiceName string
}

// DefaultServiceName identifies this service in trace backends.
const DefaultServiceName = "pensiv"

// Setup installs a global TracerProvider exporting to the configured
// collector. Returns a shutdown function that flushes pending spans.
//
// With an empty endpoint, or when the exporter cannot be created, spans
// stay no-ops and the returned shutdown does nothing.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (shutdown func(context.Context) error, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	noop := func(context.Context) error { return nil }

	if cfg.Endpoint == "" {
		logger.Debug("tracing disabled, no collector endpoint configured")
		return noop, nil
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = DefaultServiceName
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(), // local collector, no TLS
	)
	if err != nil {
		logger.Warn("failed to create trace exporter, tracing disabled", "error", err)
		return noop, nil
	}

	attrs := []resource.Option{
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	}
	if cfg.Environment != "" {
		attrs = append(attrs,
			resource.WithAttributes(semconv.DeploymentEnvironment(cfg.Environment)))
	}

	res, err := resource.New(ctx, attrs...)
	if err != nil {
		logger.Warn("failed to build trace resource, tracing disabled", "error", err)
		return noop, nil
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	logger.Debug("tracing enabled",
		"endpoint", cfg.Endpoint,
		"service", serviceName,
		"environment", cfg.Environment,
	)

	return provider.Shutdown, nil
}
