package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var webhookRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "expensebot",
		Subsystem: "webhook",
		Name:      "requests_total",
		Help:      "Webhook deliveries received, by result.",
	},
	[]string{"result"},
)

const (
	resultAccepted     = "accepted"
	resultTooLarge     = "too_large"
	resultReadError    = "read_error"
	resultBadSignature = "bad_signature"
	resultUnknown      = "unknown_object"
	resultDecodeError  = "decode_error"
	resultEnqueueError = "enqueue_error"
)
