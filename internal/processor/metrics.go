package processor

import "github.com/prometheus/client_golang/prometheus"

var (
	processedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_installments_processed_total",
			Help: "Installment charge attempts by outcome",
		},
		[]string{"outcome"},
	)

	batchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "billing_collection_batch_duration_seconds",
			Help:    "Duration of collection batch runs",
			Buckets: prometheus.DefBuckets,
		},
	)

	amountCollected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_amount_collected_cents_total",
			Help: "Total amount collected in minor units",
		},
	)

	staleRecovered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_stale_claims_recovered_total",
			Help: "Stuck processing claims resolved by the recovery sweep",
		},
	)
)

func init() {
	prometheus.MustRegister(processedTotal, batchDuration, amountCollected, staleRecovered)
}
