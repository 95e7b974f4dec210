// Package metrics records engine activity for Prometheus scraping.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the engine's metric instruments. A nil Recorder is never
// used; the engine checks before recording.
type Recorder struct {
	runDuration   *prometheus.HistogramVec
	stageDuration *prometheus.HistogramVec
	llmCalls      *prometheus.CounterVec
	searches      *prometheus.CounterVec
	pairsInFlight prometheus.Gauge
}

// NewRecorder creates the instruments and registers them with reg. Pass
// prometheus.DefaultRegisterer outside tests.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "learnpath",
			Name:      "run_duration_seconds",
			Help:      "End-to-end duration of generation runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "learnpath",
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of individual pipeline stages.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"stage"}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "learnpath",
			Name:      "llm_calls_total",
			Help:      "LLM completion calls by prompt template and outcome.",
		}, []string{"template", "outcome"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "learnpath",
			Name:      "searches_total",
			Help:      "Web search calls by outcome.",
		}, []string{"outcome"}),
		pairsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "learnpath",
			Name:      "submodule_pairs_in_flight",
			Help:      "Submodule sub-pipelines currently being developed.",
		}),
	}

	reg.MustRegister(r.runDuration, r.stageDuration, r.llmCalls, r.searches, r.pairsInFlight)
	return r
}

// ObserveStage records one completed pipeline stage.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveRun records one finished run.
func (r *Recorder) ObserveRun(d time.Duration, success bool) {
	r.runDuration.WithLabelValues(outcome(success)).Observe(d.Seconds())
}

// RecordLLMCall records one completion call.
func (r *Recorder) RecordLLMCall(template string, err error) {
	r.llmCalls.WithLabelValues(template, outcome(err == nil)).Inc()
}

// RecordSearch records one search call.
func (r *Recorder) RecordSearch(failed bool) {
	r.searches.WithLabelValues(outcome(!failed)).Inc()
}

// AddPairsInFlight adjusts the in-flight submodule gauge.
func (r *Recorder) AddPairsInFlight(delta float64) {
	r.pairsInFlight.Add(delta)
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
