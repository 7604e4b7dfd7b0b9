package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messagesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "expensebot",
		Subsystem: "bot",
		Name:      "messages_total",
		Help:      "Inbound messages handled, by intent and reply delivery.",
	},
	[]string{"intent", "delivery"},
)
