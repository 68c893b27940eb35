package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(chunksSentTotal, alertsTotal) }

var chunksSentTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "delivery_chunks_sent_total",
		Help: "Result chunks delivered to chats.",
	},
)

var alertsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "operator_alerts_total",
		Help: "Operator alerts by disposition (sent/suppressed/dropped).",
	},
	[]string{"disposition"},
)

func IncChunkSent() { chunksSentTotal.Inc() }

func IncAlert(disposition string) {
	alertsTotal.WithLabelValues(norm(disposition)).Inc()
}
