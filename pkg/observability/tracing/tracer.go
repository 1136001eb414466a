// Package tracing wires OpenTelemetry tracing for the document store.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const shutdownTimeout = 5 * time.Second

// TracerConfig configures span export for one CLI invocation.
type TracerConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Collection     string
	Transport      string
	// Endpoint is the OTLP/gRPC collector address, e.g. "localhost:4317".
	Endpoint   string
	SampleRate float64
	Enabled    bool
}

func (c TracerConfig) validate() error {
	var errs []error
	if c.ServiceName == "" {
		errs = append(errs, errors.New("service name is required"))
	}
	if c.Endpoint == "" {
		errs = append(errs, errors.New("OTLP endpoint is required"))
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("sample rate must be between 0 and 1, got %v", c.SampleRate))
	}
	return errors.Join(errs...)
}

// Option customizes NewTracerProvider.
type Option func(*options)

type options struct {
	exporter sdktrace.SpanExporter
}

// WithExporter replaces the OTLP exporter. Spans are exported synchronously.
func WithExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) { o.exporter = exp }
}

// TracerProvider owns the SDK provider for the lifetime of a command.
// A disabled provider is a no-op and never touches the global provider.
type TracerProvider struct {
	sdk      *sdktrace.TracerProvider
	disabled trace.TracerProvider
}

// NewTracerProvider builds a provider and installs it globally so the store
// and transport spans are exported.
func NewTracerProvider(ctx context.Context, cfg TracerConfig, opts ...Option) (*TracerProvider, error) {
	if !cfg.Enabled {
		return &TracerProvider{disabled: noop.NewTracerProvider()}, nil
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.exporter == nil {
		if err := cfg.validate(); err != nil {
			return nil, err
		}
	} else if cfg.ServiceName == "" {
		return nil, errors.New("service name is required")
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
		attribute.String("docstore.collection", cfg.Collection),
		attribute.String("docstore.transport", cfg.Transport),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var processor sdktrace.SpanProcessor
	if o.exporter != nil {
		processor = sdktrace.NewSimpleSpanProcessor(o.exporter)
	} else {
		exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithInsecure(),
		))
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		processor = sdktrace.NewBatchSpanProcessor(exporter)
	}

	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))
	if o.exporter != nil && cfg.SampleRate == 0 {
		sampler = sdktrace.AlwaysSample()
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(processor),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return &TracerProvider{sdk: provider}, nil
}

// Enabled reports whether spans are exported.
func (tp *TracerProvider) Enabled() bool {
	return tp != nil && tp.sdk != nil
}

// Tracer returns a tracer for the given instrumentation scope.
func (tp *TracerProvider) Tracer(name string) trace.Tracer {
	if tp.sdk == nil {
		return tp.disabled.Tracer(name)
	}
	return tp.sdk.Tracer(name)
}

// Shutdown flushes pending spans and stops the exporter. The CLI calls it
// before exiting, so the flush is bounded even when ctx is not.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if !tp.Enabled() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := tp.sdk.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}
	return nil
}
