package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers the pipeline's operational counters. One instance per
// process, shared by the daemon's handlers and workers.
type Metrics struct {
	DocumentsProcessed *prometheus.CounterVec
	ExtractionTier     *prometheus.CounterVec
	ExtractionSeconds  prometheus.Histogram
	Queries            *prometheus.CounterVec
	ReportsBuilt       prometheus.Counter
	EmailsSent         *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DocumentsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_documents_processed_total",
			Help: "Documents run through the extraction pipeline, by outcome.",
		}, []string{"outcome"}),
		ExtractionTier: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_extraction_tier_total",
			Help: "Which cascade tier produced the accepted result.",
		}, []string{"extractor"}),
		ExtractionSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "accounts_extraction_duration_seconds",
			Help:    "Wall time of the full cascade per document.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		Queries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_queries_total",
			Help: "Natural-language queries routed, by path.",
		}, []string{"path"}),
		ReportsBuilt: factory.NewCounter(prometheus.CounterOpts{
			Name: "accounts_reports_built_total",
			Help: "Spreadsheet reports assembled.",
		}),
		EmailsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_emails_sent_total",
			Help: "Report deliveries attempted, by result.",
		}, []string{"result"}),
	}
}
