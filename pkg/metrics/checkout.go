package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "grocery"

// CheckoutMetrics records cart and order lifecycle events. A nil receiver is a no-op.
type CheckoutMetrics struct {
	ordersCreated   *prometheus.CounterVec
	orderDuration   *prometheus.HistogramVec
	sessionReplays  prometheus.Counter
	stockRejections *prometheus.CounterVec
	paymentOutcomes *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	ordersCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_created_total",
		Help:      "Orders persisted, by payment method.",
	}, []string{"payment_method"})
	orderDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "order_materialize_duration_seconds",
		Help:      "Time spent persisting an order and its lines.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"payment_method"})
	sessionReplays := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_session_replays_total",
		Help:      "Payment confirmations answered with an already materialized order.",
	})
	stockRejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cart_stock_rejections_total",
		Help:      "Cart mutations rejected or skipped for insufficient stock.",
	}, []string{"operation"})
	paymentOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_confirmations_total",
		Help:      "Payment confirmation attempts, by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(ordersCreated, orderDuration, sessionReplays, stockRejections, paymentOutcomes)
	return &CheckoutMetrics{
		ordersCreated:   ordersCreated,
		orderDuration:   orderDuration,
		sessionReplays:  sessionReplays,
		stockRejections: stockRejections,
		paymentOutcomes: paymentOutcomes,
	}
}

// OrderCreated counts a committed order and records how long the write took.
func (m *CheckoutMetrics) OrderCreated(paymentMethod string, took time.Duration) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	label := normalizeLabel(paymentMethod)
	m.ordersCreated.WithLabelValues(label).Inc()
	m.orderDuration.WithLabelValues(label).Observe(took.Seconds())
}

// SessionReplayed counts an idempotent replay of a payment session.
func (m *CheckoutMetrics) SessionReplayed() {
	if m == nil || m.sessionReplays == nil {
		return
	}
	m.sessionReplays.Inc()
}

// StockRejected counts a cart operation blocked by stock.
func (m *CheckoutMetrics) StockRejected(operation string) {
	if m == nil || m.stockRejections == nil {
		return
	}
	m.stockRejections.WithLabelValues(normalizeLabel(operation)).Inc()
}

// PaymentConfirmation counts a confirmation attempt (paid, unpaid, failed, error).
func (m *CheckoutMetrics) PaymentConfirmation(outcome string) {
	if m == nil || m.paymentOutcomes == nil {
		return
	}
	m.paymentOutcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
