package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	syncedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_sync_records_total",
			Help: "Total records pushed to accounting by entity and outcome",
		},
		[]string{"entity", "outcome"},
	)

	passDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "billing_sync_pass_duration_seconds",
			Help:    "Duration of reconciliation passes",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(syncedTotal)
	prometheus.MustRegister(passDuration)
}
