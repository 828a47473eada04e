package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectron_llm_requests_total",
			Help: "Generator calls by model and outcome",
		},
		[]string{"model", "outcome"},
	)

	llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "projectron_llm_request_duration_seconds",
			Help:    "Generator call latency",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"model"},
	)

	planGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectron_plan_generations_total",
			Help: "Plan generation jobs by final status",
		},
		[]string{"status"},
	)

	planStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "projectron_plan_stage_duration_seconds",
			Help:    "Duration of each plan pipeline stage",
			Buckets: prometheus.ExponentialBuckets(1, 2, 9),
		},
		[]string{"stage"},
	)

	rendererCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectron_renderer_calls_total",
			Help: "Sequence renderer calls by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	diagramRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectron_diagram_runs_total",
			Help: "Diagram workflow runs by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	rateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "projectron_rate_limit_rejections_total",
			Help: "Plan generation requests rejected by the quota",
		},
	)
)

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func RecordLLMRequest(model string, ok bool, d time.Duration) {
	llmRequestsTotal.WithLabelValues(model, outcome(ok)).Inc()
	llmRequestDuration.WithLabelValues(model).Observe(d.Seconds())
}

func RecordPlanGeneration(status string) {
	planGenerationsTotal.WithLabelValues(status).Inc()
}

func RecordStage(stage string, d time.Duration) {
	planStageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func RecordRendererCall(op string, ok bool) {
	rendererCallsTotal.WithLabelValues(op, outcome(ok)).Inc()
}

func RecordDiagramRun(kind string, ok bool) {
	diagramRunsTotal.WithLabelValues(kind, outcome(ok)).Inc()
}

func RecordRateLimitRejection() {
	rateLimitRejections.Inc()
}
