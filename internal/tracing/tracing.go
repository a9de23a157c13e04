// Package tracing sets up OpenTelemetry spans for pipeline and stage
// execution, trimmed to the OTLP-over-HTTP exporter the go.mod actually
// carries (a jaeger exporter has no counterpart in this module — see
// DESIGN.md).
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Config configures the tracer provider.
type Config struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
}

// Manager owns the process-wide tracer provider and the Tracer derived
// from it. A disabled Manager hands out a no-op tracer so instrumented
// code never needs a nil check.
type Manager struct {
	provider *trace.TracerProvider
	tracer   oteltrace.Tracer
}

// New builds a Manager. When cfg.Enabled is false, New returns
// immediately with a no-op tracer and never touches the network.
func New(ctx context.Context, cfg Config) (*Manager, error) {
	if !cfg.Enabled {
		return &Manager{tracer: otel.Tracer("noop")}, nil
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(
		otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint),
	))
	if err != nil {
		return nil, fmt.Errorf("tracing: create exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing: build resource: %w", err)
	}

	provider := trace.NewTracerProvider(trace.WithBatcher(exporter), trace.WithResource(res))
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	return &Manager{provider: provider, tracer: otel.Tracer(cfg.ServiceName)}, nil
}

// Tracer returns the Manager's Tracer.
func (m *Manager) Tracer() oteltrace.Tracer { return m.tracer }

// Shutdown flushes and stops the tracer provider, a no-op for a disabled
// Manager.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
