package forecast

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the store's behavior to Prometheus.
type Metrics struct {
	Lookups      *prometheus.CounterVec // label: result = hit|miss|below_floor
	Observations prometheus.Counter
	Verified     *prometheus.CounterVec // label: outcome = correct|incorrect
	Evictions    prometheus.Counter
	Rejected     prometheus.Counter
	Entries      prometheus.Gauge
	Bytes        prometheus.Gauge
}

// NewMetrics registers the store metrics on reg. A nil reg falls back
// to the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "presage",
			Subsystem: "forecast",
			Name:      "lookups_total",
			Help:      "Forecast lookups by result.",
		}, []string{"result"}),
		Observations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "presage",
			Subsystem: "forecast",
			Name:      "observations_total",
			Help:      "Pattern observations recorded.",
		}),
		Verified: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "presage",
			Subsystem: "forecast",
			Name:      "verifications_total",
			Help:      "Forecast verifications by outcome.",
		}, []string{"outcome"}),
		Evictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "presage",
			Subsystem: "forecast",
			Name:      "evictions_total",
			Help:      "Entries evicted to stay under the memory budget.",
		}),
		Rejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "presage",
			Subsystem: "forecast",
			Name:      "rejected_total",
			Help:      "Observations rejected because a single entry exceeded the budget.",
		}),
		Entries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "presage",
			Subsystem: "forecast",
			Name:      "entries",
			Help:      "Current number of pattern entries.",
		}),
		Bytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "presage",
			Subsystem: "forecast",
			Name:      "bytes",
			Help:      "Current tracked size of all entries in bytes.",
		}),
	}
}
