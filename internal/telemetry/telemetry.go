// Package telemetry provides tracing for conversation turns.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	serviceName     = "memochat"
	instrumentation = "github.com/cchalm/memochat"
)

// Config holds the configuration for telemetry
type Config struct {
	Enabled bool
	// Endpoint is the OTLP/HTTP collector URL, e.g. http://localhost:4318. Empty uses the exporter's default and
	// the OTEL_EXPORTER_OTLP_* environment variables.
	Endpoint string
	Version  string
}

// Provider manages the tracing system
type Provider struct {
	tracerProvider trace.TracerProvider
	shutdown       func(context.Context) error
}

// NewProvider creates a provider that exports spans over OTLP/HTTP, or a no-op provider when telemetry is disabled
func NewProvider(ctx context.Context, config Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if !config.Enabled {
		logger.Debug("telemetry disabled")
		return &Provider{
			tracerProvider: noop.NewTracerProvider(),
			shutdown:       func(context.Context) error { return nil },
		}, nil
	}

	opts := []otlptracehttp.Option{}
	if config.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpointURL(config.Endpoint))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	logger.Info("telemetry enabled", "endpoint", config.Endpoint)
	return NewProviderWithExporter(exporter, config.Version), nil
}

// NewProviderWithExporter creates a provider that batches spans to exporter
func NewProviderWithExporter(exporter sdktrace.SpanExporter, version string) *Provider {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	return &Provider{
		tracerProvider: tp,
		shutdown:       tp.Shutdown,
	}
}

// Tracer returns the tracer conversation turns are recorded with
func (p *Provider) Tracer() trace.Tracer {
	return p.tracerProvider.Tracer(instrumentation)
}

// ForceFlush exports every span that has ended but not yet been exported
func (p *Provider) ForceFlush(ctx context.Context) error {
	flusher, ok := p.tracerProvider.(interface{ ForceFlush(context.Context) error })
	if !ok {
		return nil
	}
	return flusher.ForceFlush(ctx)
}

// Shutdown flushes pending spans and shuts down the provider
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down telemetry provider: %w", err)
	}
	return nil
}

// NewTurnID generates a new turn UUID
func NewTurnID() string {
	return uuid.New().String()
}
