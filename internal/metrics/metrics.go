package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "memebot"

// Metrics holds the collectors for one process. Tests create their own with a
// fresh registry.
type Metrics struct {
	Cycles         *prometheus.CounterVec
	CycleDuration  prometheus.Histogram
	FetchFallbacks *prometheus.CounterVec
	Signals        *prometheus.CounterVec
	PersistErrors  prometheus.Counter
	Notifications  *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "cycles_total",
				Help:      "Analysis cycles by trigger",
			},
			[]string{"trigger"},
		),
		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "cycle_duration_seconds",
				Help:      "Wall time of one fetch, classify and persist cycle",
				Buckets:   prometheus.DefBuckets,
			},
		),
		FetchFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fetcher",
				Name:      "fallbacks_total",
				Help:      "Cycles that used the static sample set, by failure kind",
			},
			[]string{"kind"},
		),
		Signals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "classifier",
				Name:      "signals_total",
				Help:      "Emitted signals by kind",
			},
			[]string{"kind"},
		),
		PersistErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sink",
				Name:      "persist_errors_total",
				Help:      "Signal batches that could not be stored",
			},
		),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notify",
				Name:      "notifications_total",
				Help:      "Notify attempts by outcome (sent, skipped, failed)",
			},
			[]string{"outcome"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.Cycles,
			m.CycleDuration,
			m.FetchFallbacks,
			m.Signals,
			m.PersistErrors,
			m.Notifications,
			m.HTTPRequests,
		)
	}
	return m
}
