package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediastore_uploads_total",
		Help: "Pipeline runs by source kind and outcome.",
	}, []string{"kind", "outcome"})

	uploadBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mediastore_upload_bytes",
		Help:    "Size of stored artifacts.",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
	}, []string{"kind"})

	stageSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mediastore_stage_duration_seconds",
		Help:    "Time spent in each pipeline stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
)
