package service

import "github.com/prometheus/client_golang/prometheus"

var ledgerTransitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ledger_transactions_total",
		Help: "Ledger records by type and reached status",
	},
	[]string{"type", "status"},
)

func init() {
	prometheus.MustRegister(ledgerTransitions)
}

func countTransition(typ, status string) {
	ledgerTransitions.WithLabelValues(typ, status).Inc()
}
