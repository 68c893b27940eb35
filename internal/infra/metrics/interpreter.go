package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(interpreterTokens, interpreterLatencyMs, readingsTotal, readingTokens) }

var interpreterTokens = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "interpreter_tokens_total",
		Help: "Tokens reported by interpreter calls per provider/persona.",
	},
	[]string{"provider", "persona"},
)

var interpreterLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "interpreter_latency_ms",
		Help:    "Interpreter call latency distribution in milliseconds.",
		Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000, 30000},
	},
	[]string{"provider", "persona", "success"},
)

var readingsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "readings_produced_total",
		Help: "Completed readings by kind (analysis/retopic).",
	},
	[]string{"kind"},
)

var readingTokens = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "reading_tokens_total",
		Help: "Tokens spent on completed readings by kind.",
	},
	[]string{"kind"},
)

func ObserveInterpreterCall(provider, persona string, tokens int, latency time.Duration, success bool) {
	interpreterTokens.WithLabelValues(norm(provider), norm(persona)).Add(float64(tokens))
	interpreterLatencyMs.WithLabelValues(norm(provider), norm(persona), strconv.FormatBool(success)).
		Observe(float64(latency.Milliseconds()))
}

func ObserveReading(kind string, tokens int, _ time.Duration) {
	readingsTotal.WithLabelValues(norm(kind)).Inc()
	readingTokens.WithLabelValues(norm(kind)).Add(float64(tokens))
}
