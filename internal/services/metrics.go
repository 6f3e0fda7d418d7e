package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// reconcileTotal counts reconcile calls by outcome: ok | invalid | error.
	reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uploads_reconcile_total",
			Help: "Total number of upload-set reconciliations by result.",
		},
		[]string{"result"},
	)

	// reconcileOps counts applied row operations: create | update | delete.
	reconcileOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uploads_reconcile_ops_total",
			Help: "Row operations applied by upload-set reconciliations.",
		},
		[]string{"op"},
	)

	reconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "uploads_reconcile_duration_seconds",
			Help:    "Duration of upload-set reconciliations in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(reconcileTotal, reconcileOps, reconcileDuration)
}

func observePlan(p Plan) {
	reconcileOps.WithLabelValues("create").Add(float64(len(p.Create)))
	reconcileOps.WithLabelValues("update").Add(float64(len(p.Update)))
	reconcileOps.WithLabelValues("delete").Add(float64(len(p.Delete)))
}
