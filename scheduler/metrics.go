package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postflow_sweeps_total",
		Help: "Publishing sweeps by result.",
	}, []string{"result"})

	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "postflow_sweep_duration_seconds",
		Help:    "Wall time of completed publishing sweeps.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	postsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postflow_posts_total",
		Help: "Posts moved out of the scheduled state, by platform, outcome and failure kind.",
	}, []string{"platform", "outcome", "kind"})
)
