package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTLP counterparts of the workflow collectors. They stay no-ops until a
// meter provider is installed.
var (
	meter = otel.Meter("line-dify-bridge/workflow")

	otelSteps, _ = meter.Int64Counter("workflow.steps",
		metric.WithDescription("Workflow step executions by result"))
	otelStepDuration, _ = meter.Float64Histogram("workflow.step.duration",
		metric.WithDescription("Workflow step latency including retries"),
		metric.WithUnit("s"))
	otelInstances, _ = meter.Int64Counter("workflow.instances",
		metric.WithDescription("Workflow instances reaching a terminal or retry state"))
)

func exportStep(step, result string, elapsed time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("step", step), attribute.String("result", result))
	otelSteps.Add(ctx, 1, attrs)
	otelStepDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("step", step)))
}

func exportInstance(status string) {
	otelInstances.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}
