package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine observability: which tiers satisfy requests and how often the
// synthetic fallback fires says more about template coverage than any log.
var (
	recommendationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quantdesk",
		Subsystem: "engine",
		Name:      "recommendations_total",
		Help:      "Recommendations served, by template type and resolution tier.",
	}, []string{"type", "tier"})

	fallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quantdesk",
		Subsystem: "engine",
		Name:      "fallbacks_total",
		Help:      "Recommendations that degraded to a synthetic fallback template.",
	})

	recommendationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "quantdesk",
		Subsystem: "engine",
		Name:      "recommendation_duration_seconds",
		Help:      "End-to-end recommendation latency.",
		Buckets:   prometheus.DefBuckets,
	})

	templatesImportedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quantdesk",
		Subsystem: "importer",
		Name:      "templates_imported_total",
		Help:      "Templates successfully imported from the platform folders.",
	})
)
