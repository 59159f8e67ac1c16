// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package observability installs the OpenTelemetry tracer provider used by
// the federated engine's search and per-source spans.
package observability

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/pdiddy/dispatch-engine/pkg/types"
)

// DefaultEndpoint is the local collector's OTLP/HTTP trace endpoint.
const DefaultEndpoint = "http://localhost:4318/v1/traces"

const serviceName = "dispatch-engine"

// Setup builds a tracer provider for cfg and installs it globally. When
// tracing is disabled the provider never samples, so spans cost nothing and
// nothing is exported. The returned provider must be shut down on exit.
func Setup(ctx context.Context, cfg types.TracingConfig, version string) (*sdktrace.TracerProvider, error) {
	if !cfg.Enabled {
		tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample()))
		otel.SetTracerProvider(tp)
		return tp, nil
	}

	exporter, err := NewExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	tp := NewTracerProvider(exporter, version)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// NewExporter builds the OTLP/HTTP span exporter for cfg.
func NewExporter(ctx context.Context, cfg types.TracingConfig) (sdktrace.SpanExporter, error) {
	endpoint, err := EndpointURL(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("observability: invalid OTLP endpoint: %w", err)
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(endpoint)}
	if cfg.Insecure || strings.HasPrefix(endpoint, "http://") {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("observability: creating OTLP exporter: %w", err)
	}
	return exp, nil
}

// NewTracerProvider batches spans to exporter under the service resource.
func NewTracerProvider(exporter sdktrace.SpanExporter, version string) *sdktrace.TracerProvider {
	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
	)
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
}

// EndpointURL validates raw and appends the traces path when raw names only
// a host. An empty endpoint selects DefaultEndpoint.
func EndpointURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultEndpoint, nil
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("endpoint must include a host")
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/v1/traces"
	}
	return u.String(), nil
}
