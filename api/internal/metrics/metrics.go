package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// AnalysesTotal counts finished analysis requests by outcome
	// (ok, cached, timeout, service_unavailable, invalid_response).
	AnalysesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leafdoctor",
		Subsystem: "analyzer",
		Name:      "analyses_total",
		Help:      "Total number of diagnosis requests, labeled by engine and result.",
	}, []string{"engine", "result"})

	AnalysisDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "leafdoctor",
		Subsystem: "analyzer",
		Name:      "analysis_duration_seconds",
		Help:      "Time spent waiting for the inference engine.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"engine"})

	// ValidationRejectionsTotal counts candidates refused before analysis.
	ValidationRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leafdoctor",
		Subsystem: "capture",
		Name:      "validation_rejections_total",
		Help:      "Candidate images rejected by validation, labeled by reason.",
	}, []string{"reason"})

	// StaleCompletionsTotal counts completions dropped because their token was superseded.
	StaleCompletionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "leafdoctor",
		Subsystem: "capture",
		Name:      "stale_completions_total",
		Help:      "Analysis completions discarded because the session moved on.",
	})

	LivePreviews = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "leafdoctor",
		Subsystem: "capture",
		Name:      "live_previews",
		Help:      "Preview handles currently held by sessions.",
	})

	// SpeechSessionsTotal counts dictation sessions by how they ended
	// (completed, errored, stopped).
	SpeechSessionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leafdoctor",
		Subsystem: "speech",
		Name:      "sessions_total",
		Help:      "Dictation sessions, labeled by outcome.",
	}, []string{"outcome"})
)

// Register registers collectors with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			AnalysesTotal,
			AnalysisDurationSeconds,
			ValidationRejectionsTotal,
			StaleCompletionsTotal,
			LivePreviews,
			SpeechSessionsTotal,
		)
	})
}
