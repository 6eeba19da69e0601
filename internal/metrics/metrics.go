package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StageRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "venturelab_stage_runs_total",
			Help: "Pipeline stage runs by outcome",
		},
		[]string{"stage", "outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "venturelab_stage_duration_seconds",
			Help:    "Duration of pipeline stage runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "venturelab_llm_requests_total",
			Help: "Completion requests sent upstream by result",
		},
		[]string{"model", "result"},
	)

	LLMTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "venturelab_llm_tokens_total",
			Help: "Tokens reported by the completion service",
		},
		[]string{"model"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "venturelab_cache_lookups_total",
			Help: "Cache lookups by cache and result",
		},
		[]string{"cache", "result"},
	)

	IdeasByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "venturelab_ideas",
			Help: "Ideas currently in each status",
		},
		[]string{"status"},
	)
)

const (
	OutcomeSuccess  = "success"
	OutcomeFailed   = "failed"
	OutcomeCached   = "cached"
	OutcomeReverted = "reverted"
)

// ObserveStage records one stage run.
func ObserveStage(stage, outcome string, d time.Duration) {
	StageRuns.WithLabelValues(stage, outcome).Inc()
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
