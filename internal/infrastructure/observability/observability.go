// Package observability wires OpenTelemetry export for the bridge. Prometheus
// scraping on /metrics is independent of it.
package observability

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"line-dify-bridge/internal/config"
)

type Shutdown func(ctx context.Context) error

// Setup installs the W3C propagator and, when an OTLP endpoint is set, the
// trace and metric providers that cfg enables. The returned Shutdown flushes
// whatever was installed.
func Setup(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Shutdown, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	wantTraces := cfg.EnableTracing && cfg.OTLPEndpoint != ""
	wantMetrics := cfg.OTLPMetrics && cfg.OTLPEndpoint != ""
	if !wantTraces && !wantMetrics {
		log.Info().Msg("otlp export disabled")
		return func(context.Context) error { return nil }, nil
	}

	res := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.DeploymentEnvironment(cfg.Environment),
	)
	log = log.With().Str("endpoint", cfg.OTLPEndpoint).Logger()

	var flush []Shutdown
	shutdown := func(ctx context.Context) error {
		errs := make([]error, 0, len(flush))
		for _, fn := range flush {
			errs = append(errs, fn(ctx))
		}
		return errors.Join(errs...)
	}

	if wantTraces {
		exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint), otlptracehttp.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(exp),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		)
		otel.SetTracerProvider(tp)
		flush = append(flush, tp.Shutdown)
		log.Info().Msg("otlp traces enabled")
	}

	if wantMetrics {
		exp, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint), otlpmetrichttp.WithInsecure())
		if err != nil {
			_ = shutdown(ctx)
			return nil, fmt.Errorf("otlp metric exporter: %w", err)
		}
		reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(cfg.MetricInterval))
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader))
		otel.SetMeterProvider(mp)
		flush = append(flush, mp.Shutdown)
		log.Info().Dur("interval", cfg.MetricInterval).Msg("otlp metrics enabled")
	}

	return shutdown, nil
}
