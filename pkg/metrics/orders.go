package metrics

import "github.com/prometheus/client_golang/prometheus"

// OrderMetrics records order lifecycle activity.
type OrderMetrics struct {
	transitions *prometheus.CounterVec
	payments    *prometheus.CounterVec
	refunds     *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Persisted order status changes.",
	}, []string{"from", "to"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_payments_total",
		Help: "Payments recorded against orders.",
	}, []string{"method"})
	refunds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_refund_payments_total",
		Help: "Payment refund attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(transitions, payments, refunds)
	return &OrderMetrics{transitions: transitions, payments: payments, refunds: refunds}
}

func (o *OrderMetrics) IncTransition(from, to string) {
	if o == nil || o.transitions == nil {
		return
	}
	o.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (o *OrderMetrics) IncPayment(method string) {
	if o == nil || o.payments == nil {
		return
	}
	o.payments.WithLabelValues(normalizeLabel(method)).Inc()
}

// AddRefunds adds refunded and failed payment counts from one refund run.
func (o *OrderMetrics) AddRefunds(refunded, failed int) {
	if o == nil || o.refunds == nil {
		return
	}
	o.refunds.WithLabelValues("refunded").Add(float64(refunded))
	o.refunds.WithLabelValues("failed").Add(float64(failed))
}
