package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	holdOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatflow_hold_operations_total",
			Help: "Hold operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	ordersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatflow_orders_created_total",
			Help: "Order creation attempts by outcome",
		},
		[]string{"outcome"},
	)

	reconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatflow_reconciliations_total",
			Help: "Payment reconciliations by authoritative outcome and whether the order transitioned",
		},
		[]string{"outcome", "transitioned"},
	)

	paymentAuthorityDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seatflow_payment_authority_duration_seconds",
			Help:    "Latency of payment authority calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)

	sweptHolds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatflow_swept_holds_total",
			Help: "Expired holds rewritten to FREE by the background sweeper",
		},
	)

	deliveryMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatflow_delivery_messages_total",
			Help: "Delivery requests by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)
)

// RecordHold counts a hold manager operation
func RecordHold(operation, outcome string) {
	holdOperations.WithLabelValues(operation, outcome).Inc()
}

// RecordOrder counts an order creation attempt
func RecordOrder(outcome string) {
	ordersCreated.WithLabelValues(outcome).Inc()
}

// RecordReconciliation counts a reconcile call
func RecordReconciliation(outcome string, transitioned bool) {
	t := "false"
	if transitioned {
		t = "true"
	}
	reconciliations.WithLabelValues(outcome, t).Inc()
}

// ObservePaymentCall records the latency of a payment authority call
func ObservePaymentCall(operation string, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	paymentAuthorityDuration.WithLabelValues(operation, status).Observe(time.Since(started).Seconds())
}

// AddSweptHolds counts holds released by the sweeper
func AddSweptHolds(n int64) {
	if n > 0 {
		sweptHolds.Add(float64(n))
	}
}

// RecordDelivery counts a delivery pipeline event
func RecordDelivery(stage, outcome string) {
	deliveryMessages.WithLabelValues(stage, outcome).Inc()
}
