package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	InputLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kmlviz_input_loads_total",
			Help: "Total number of input loads",
		},
		[]string{"input", "status"},
	)

	InputLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kmlviz_input_load_duration_seconds",
			Help:    "Duration of input loads",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 0.01s to ~20s
		},
		[]string{"input"},
	)

	RecordsRenderedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kmlviz_records_rendered_total",
			Help: "Total number of visual records rendered",
		},
		[]string{"mode"},
	)

	DocumentsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kmlviz_documents_written_total",
			Help: "Total number of KML documents written",
		},
		[]string{"mode", "status"},
	)

	DocumentBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kmlviz_document_bytes",
			Help:    "Size of encoded KML documents",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KiB to ~256MiB
		},
		[]string{"mode"},
	)
)
