package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(creditOpsTotal, insufficientTotal) }

var creditOpsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "credit_ledger_ops_total",
		Help: "Ledger mutations by operation (consume/refund/grant) and tier.",
	},
	[]string{"op", "tier"},
)

var insufficientTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "credit_insufficient_total",
		Help: "Consume attempts declined for insufficient balance, by tier.",
	},
	[]string{"tier"},
)

func IncCreditOp(op, tier string) {
	creditOpsTotal.WithLabelValues(norm(op), norm(tier)).Inc()
}

func IncInsufficientCredits(tier string) {
	insufficientTotal.WithLabelValues(norm(tier)).Inc()
}
