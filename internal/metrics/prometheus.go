// Package metrics exposes Prometheus instrumentation for generation work and
// small statistics helpers for run summaries.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricTasksCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitroom",
		Name:      "generation_tasks_total",
		Help:      "Generation tasks finished by a batch run, by kind and final status.",
	}, []string{"kind", "status"})
	metricAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitroom",
		Name:      "generation_attempts_total",
		Help:      "Calls made to the generation provider by the batch runner, by outcome.",
	}, []string{"outcome"})
	metricTaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sitroom",
		Name:      "generation_task_duration_seconds",
		Help:      "Wall time per generation task including retries.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
	}, []string{"kind"})
	metricInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sitroom",
		Name:      "generation_in_flight",
		Help:      "Generation calls currently awaiting the provider.",
	})
	metricBatchRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sitroom",
		Name:      "batch_runs_total",
		Help:      "Completed batch runs.",
	})
	metricChatTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitroom",
		Name:      "chat_turns_total",
		Help:      "Chat exchanges, by advisor and outcome.",
	}, []string{"advisor", "outcome"})
	metricCacheWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitroom",
		Name:      "cache_writes_total",
		Help:      "Report cache writes, by operation and outcome.",
	}, []string{"op", "outcome"})
)

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// RecordTask records a finished batch task.
func RecordTask(kind, status string, d time.Duration) {
	metricTasksCompleted.WithLabelValues(kind, status).Inc()
	metricTaskDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordAttempt records one provider call made by the batch runner.
func RecordAttempt(ok bool) {
	metricAttempts.WithLabelValues(outcome(ok)).Inc()
}

// TrackInFlight marks a provider call as started; call the returned func when it ends.
func TrackInFlight() func() {
	metricInFlight.Inc()
	return metricInFlight.Dec
}

func RecordBatchRun() {
	metricBatchRuns.Inc()
}

func RecordChatTurn(advisor string, ok bool) {
	metricChatTurns.WithLabelValues(advisor, outcome(ok)).Inc()
}

func RecordCacheWrite(op string, ok bool) {
	metricCacheWrites.WithLabelValues(op, outcome(ok)).Inc()
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
