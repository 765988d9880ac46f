package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the literature assistant.
// Metrics are organized by subsystem: sessions, normalization, searches,
// synthesis, and delivery. All counters and histograms are registered via
// promauto for automatic registration with the default Prometheus registry.
type Metrics struct {
	// SessionsStarted counts the total number of sessions created.
	SessionsStarted prometheus.Counter

	// SessionsCompleted counts sessions that reached Completed.
	SessionsCompleted prometheus.Counter

	// SessionsAbandoned counts sessions abandoned before completion.
	SessionsAbandoned prometheus.Counter

	// TurnsHandled counts user turns handled, labeled by the state they arrived in.
	TurnsHandled *prometheus.CounterVec

	// TurnDuration observes turn handling duration in seconds.
	TurnDuration prometheus.Histogram

	// Normalizations counts query normalizations, labeled by outcome
	// (accepted, empty, off_topic, clarification).
	Normalizations *prometheus.CounterVec

	// SearchesTotal counts searches, labeled by outcome (results, empty, provider_error).
	SearchesTotal *prometheus.CounterVec

	// SearchRetries counts immediate retries after transient search failures.
	SearchRetries prometheus.Counter

	// SearchDuration observes retrieval call duration in seconds.
	SearchDuration prometheus.Histogram

	// ArticlesPerSearch observes the distribution of articles returned per search.
	ArticlesPerSearch prometheus.Histogram

	// SynthesesTotal counts synthesis runs.
	SynthesesTotal prometheus.Counter

	// UnparsedRows counts matrix rows flagged as unparsed.
	UnparsedRows prometheus.Counter

	// DeliveriesTotal counts delivery attempts, labeled by status (sent, failed).
	DeliveriesTotal *prometheus.CounterVec

	// DeliveryDuration observes transport send duration in seconds.
	DeliveryDuration prometheus.Histogram

	// NLURequestsTotal counts NLU API requests, labeled by operation and model.
	NLURequestsTotal *prometheus.CounterVec

	// NLURequestsFailed counts failed NLU API requests, labeled by operation and model.
	NLURequestsFailed *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of conversation sessions created",
		}),
		SessionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Total number of sessions that completed delivery",
		}),
		SessionsAbandoned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_abandoned_total",
			Help:      "Total number of sessions abandoned before completion",
		}),
		TurnsHandled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_handled_total",
			Help:      "Total number of user turns handled by arrival state",
		}, []string{"state"}),
		TurnDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Duration of turn handling in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		Normalizations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "normalizations_total",
			Help:      "Total number of query normalizations by outcome",
		}, []string{"outcome"}),
		SearchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of article searches by outcome",
		}, []string{"outcome"}),
		SearchRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_retries_total",
			Help:      "Total number of immediate retries after transient search failures",
		}),
		SearchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of retrieval calls in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		ArticlesPerSearch: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "articles_per_search",
			Help:      "Number of articles returned per search",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		SynthesesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "syntheses_total",
			Help:      "Total number of evidence synthesis runs",
		}),
		UnparsedRows: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unparsed_rows_total",
			Help:      "Total number of matrix rows flagged as unparsed",
		}),
		DeliveriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Total number of delivery attempts by status",
		}, []string{"status"}),
		DeliveryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Duration of transport sends in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}),
		NLURequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nlu_requests_total",
			Help:      "Total number of NLU API requests by operation and model",
		}, []string{"operation", "model"}),
		NLURequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nlu_requests_failed_total",
			Help:      "Total number of failed NLU API requests by operation and model",
		}, []string{"operation", "model"}),
	}
}
