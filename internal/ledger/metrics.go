package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	expensesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chipin_expenses_created_total",
		Help: "Number of expenses created, splits included.",
	})

	settlementsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chipin_settlements_total",
		Help: "Number of settle calls that applied a non-zero amount.",
	})

	settlementsEmpty = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chipin_settlements_empty_total",
		Help: "Number of settle calls that found no eligible split.",
	})

	splitsSettled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chipin_splits_settled_total",
		Help: "Number of splits transitioned unsettled to settled.",
	})
)
