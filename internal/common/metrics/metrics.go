// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	MatchesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matches_generated_total",
			Help: "Matches produced by selection, by match type",
		},
		[]string{"type"},
	)

	MatchCandidatesScored = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_candidates_scored",
			Help:    "Candidate pool size per selection run",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	MatchAverageScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_average_score",
			Help:    "Mean score of each generated match set",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Result cache lookups by backend and result (hit, miss, expired, error)",
		},
		[]string{"backend", "result"},
	)

	EmbeddingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_requests_total",
			Help: "Embedding provider calls by provider and status",
		},
		[]string{"provider", "status"},
	)

	EmbeddingTexts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_texts_total",
			Help: "Texts sent to the embedding provider (memo misses only)",
		},
		[]string{"provider"},
	)
)
