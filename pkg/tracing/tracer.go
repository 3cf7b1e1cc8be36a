// Package tracing provides a shared OTel tracer helper for every component.
//
// When no TracerProvider is registered (tests, local dev without a collector)
// the global no-op provider is used automatically and every call is inert.
// Components call tracing.Start rather than using the OTel API directly.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"

	"log/slog"

	"github.com/loomwork/transcribe-core/internal/config"
)

const tracerName = "transcribe-core"

// Module installs the global TracerProvider (OTLP or no-op) and shuts it
// down on OnStop.
var Module = fx.Module("tracing",
	fx.Provide(newTracerProvider),
	fx.Invoke(registerLifecycle),
)

// Start creates a span as a child of ctx's active span, or a root span if
// ctx carries none. Callers must call span.End(), typically via defer.
func Start(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// provider wraps the SDK provider, nil when tracing is disabled.
type provider struct {
	sdk *sdktrace.TracerProvider
}

// newTracerProvider builds and globally registers a TracerProvider. When
// tracing is disabled it installs a no-op provider with zero overhead.
func newTracerProvider(cfg *config.Config, log *slog.Logger) (*provider, error) {
	oc := cfg.Otel
	if !oc.Enabled() {
		log.Info("otel tracing disabled (OTEL_EXPORTER_OTLP_ENDPOINT not set)")
		otel.SetTracerProvider(noop.NewTracerProvider())
		return &provider{}, nil
	}

	log.Info("otel tracing enabled",
		slog.String("endpoint", oc.ExporterEndpoint),
		slog.String("service", oc.ServiceName),
		slog.Float64("sampling_rate", oc.SamplingRate))

	exp, err := otlptracehttp.New(context.Background(),
		otlptracehttp.WithEndpointURL(oc.ExporterEndpoint),
		otlptracehttp.WithInsecure())
	if err != nil {
		return nil, err
	}

	res, err := resource.New(context.Background(),
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(semconv.ServiceName(oc.ServiceName)),
		resource.WithFromEnv(),
		resource.WithProcess())
	if err != nil {
		log.Warn("otel resource detection failed", slog.String("error", err.Error()))
		res = resource.Empty()
	}

	sampler := sdktrace.TraceIDRatioBased(oc.SamplingRate)
	if oc.SamplingRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)

	return &provider{sdk: tp}, nil
}

func registerLifecycle(lc fx.Lifecycle, p *provider, log *slog.Logger) {
	if p.sdk == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down otel tracer provider")
			return p.sdk.Shutdown(ctx)
		},
	})
}
