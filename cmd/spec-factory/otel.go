package main

import (
	"context"
	"errors"
	"os"

	"goa.design/clue/clue"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const serviceName = "spec-factory"

// setupOpenTelemetry installs the global tracer provider, meter provider and
// W3C trace context propagator. Spans and metrics are exported over OTLP/HTTP
// when the standard OTEL_EXPORTER_OTLP_* endpoint variables are set. Without
// a trace endpoint spans are still recorded locally so the trace context sent
// to the server carries valid IDs.
func setupOpenTelemetry(ctx context.Context) (func(context.Context) error, error) {
	var (
		spanExporter   sdktrace.SpanExporter
		metricExporter sdkmetric.Exporter
	)
	if otlpEndpoint("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT") {
		exp, _, err := clue.NewHTTPSpanExporter(ctx)
		if err != nil {
			return nil, err
		}
		spanExporter = exp
	}
	if otlpEndpoint("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT") {
		exp, _, err := clue.NewHTTPMetricExporter(ctx)
		if err != nil {
			return nil, err
		}
		metricExporter = exp
	}
	cfg, err := clue.NewConfig(ctx, serviceName, version, metricExporter, spanExporter)
	if err != nil {
		return nil, err
	}
	if spanExporter == nil {
		cfg.TracerProvider = sdktrace.NewTracerProvider()
	}
	clue.ConfigureOpenTelemetry(ctx, cfg)

	// Providers flush and shut down their exporters.
	return func(ctx context.Context) error {
		var errs []error
		for _, p := range []any{cfg.TracerProvider, cfg.MeterProvider} {
			if s, ok := p.(interface{ Shutdown(context.Context) error }); ok {
				errs = append(errs, s.Shutdown(ctx))
			}
		}
		return errors.Join(errs...)
	}, nil
}

// otlpEndpoint reports whether the signal specific or the shared OTLP
// endpoint variable is set.
func otlpEndpoint(signalVar string) bool {
	return os.Getenv(signalVar) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}
