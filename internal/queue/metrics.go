package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "expensebot",
			Subsystem: "queue",
			Name:      "jobs_total",
			Help:      "Webhook jobs run by a worker, by outcome.",
		},
		[]string{"outcome"},
	)

	queueFullTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "expensebot",
			Subsystem: "queue",
			Name:      "full_total",
			Help:      "Enqueue attempts rejected because the local queue was full.",
		},
	)

	jobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "expensebot",
			Subsystem: "queue",
			Name:      "job_duration_seconds",
			Help:      "Webhook job execution latency.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"
	outcomePanic = "panic"
)
