// Package tracing wires the ambient OTel span exporter described in
// SPEC_FULL.md's DOMAIN STACK section: the agent orchestration loop emits
// spans regardless of whether anything is listening, and a configured OTLP
// endpoint makes them leave the process. Never required for correctness —
// with tracing disabled the SDK's default tracer is a no-op.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config mirrors config.TracingConfig without importing the config
// package, matching the narrow-Config idiom internal/agent and
// internal/runtime already follow.
type Config struct {
	Enabled  bool
	Endpoint string
	Insecure bool
	Protocol string // "grpc" (default) or "http"
}

// Tracer is the package-wide tracer handed to the agent loop. Defaults to
// the OTel API's no-op implementation until Setup installs a real
// TracerProvider.
var Tracer trace.Tracer = otel.Tracer("goclaw-lite/agent")

// Setup installs a TracerProvider for cfg and returns a shutdown func that
// flushes and closes the exporter. When cfg is disabled or has no
// endpoint, the SDK's default no-op provider is left in place and the
// returned shutdown is a no-op.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("tracing: build exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName("goclaw-lite"),
	))
	if err != nil {
		return nil, fmt.Errorf("tracing: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(2*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	Tracer = tp.Tracer("goclaw-lite/agent")

	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	if cfg.Protocol == "http" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		client := otlptracehttp.NewClient(opts...)
		return otlptrace.New(ctx, client)
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	client := otlptracegrpc.NewClient(opts...)
	return otlptrace.New(ctx, client)
}
