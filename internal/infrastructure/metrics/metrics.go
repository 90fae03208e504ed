package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bridge metrics
var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "line_bridge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "line_bridge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "line_bridge",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Inbound LINE events by outcome",
		},
		[]string{"outcome"},
	)

	WorkflowStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "line_bridge",
			Subsystem: "workflow",
			Name:      "steps_total",
			Help:      "Workflow step executions by result",
		},
		[]string{"step", "result"},
	)

	WorkflowStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "line_bridge",
			Subsystem: "workflow",
			Name:      "step_duration_seconds",
			Help:      "Workflow step latency including retries",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"step"},
	)

	WorkflowInstancesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "line_bridge",
			Subsystem: "workflow",
			Name:      "instances_total",
			Help:      "Workflow instances reaching a terminal or retry state",
		},
		[]string{"status"},
	)

	DifyRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "line_bridge",
			Subsystem: "dify",
			Name:      "chat_requests_total",
			Help:      "Dify chat calls by outcome",
		},
		[]string{"outcome"},
	)

	DifyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "line_bridge",
			Subsystem: "dify",
			Name:      "chat_duration_seconds",
			Help:      "Dify chat call latency",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)

	KnowledgeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "line_bridge",
			Subsystem: "dify",
			Name:      "knowledge_requests_total",
			Help:      "Dify knowledge API calls by operation and status",
		},
		[]string{"operation", "status"},
	)

	LinePushTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "line_bridge",
			Subsystem: "line",
			Name:      "push_total",
			Help:      "LINE push message calls by result",
		},
		[]string{"result"},
	)
)

// RecordRequest records one served HTTP request.
func RecordRequest(method, endpoint string, status int, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

func RecordWebhookEvent(outcome string) {
	WebhookEventsTotal.WithLabelValues(outcome).Inc()
}

func RecordStep(step, result string, durationSec float64) {
	WorkflowStepsTotal.WithLabelValues(step, result).Inc()
	WorkflowStepDuration.WithLabelValues(step).Observe(durationSec)
}

func RecordInstance(status string) {
	WorkflowInstancesTotal.WithLabelValues(status).Inc()
}

func RecordDify(outcome string, durationSec float64) {
	DifyRequestsTotal.WithLabelValues(outcome).Inc()
	DifyDuration.Observe(durationSec)
}

func RecordKnowledge(operation string, status int) {
	KnowledgeRequestsTotal.WithLabelValues(operation, strconv.Itoa(status)).Inc()
}

func RecordPush(result string) {
	LinePushTotal.WithLabelValues(result).Inc()
}

// WorkflowObserver feeds workflow step and instance outcomes into the collectors.
type WorkflowObserver struct{}

func (WorkflowObserver) StepFinished(step, result string, elapsed time.Duration) {
	RecordStep(step, result, elapsed.Seconds())
	exportStep(step, result, elapsed)
}

func (WorkflowObserver) InstanceFinished(status string) {
	RecordInstance(status)
	exportInstance(status)
}
