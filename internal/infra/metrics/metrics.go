package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransactionsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockledger_transactions_applied_total",
		Help: "Ledger transactions committed, by type.",
	}, []string{"type"})

	TransactionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockledger_transactions_rejected_total",
		Help: "Ledger transactions rejected before commit, by type and reason.",
	}, []string{"type", "reason"})
)
