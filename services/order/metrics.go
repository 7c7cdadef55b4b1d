package order

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	duplicateCheckoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_duplicate_checkouts_total",
		Help: "Checkout submissions that were received again after their order was created",
	})

	unmatchedPaymentResultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_unmatched_payment_results_total",
		Help: "Payment results for orders that do not exist",
	})

	paymentOverdueTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_payment_overdue_total",
		Help: "Orders still unpaid when their payment watchdog fired",
	})
)
