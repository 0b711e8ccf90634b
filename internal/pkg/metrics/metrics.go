// Package metrics holds the Prometheus collectors of the fulfillment engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fulfillment"

type Metrics struct {
	ordersCreated       prometheus.Counter
	orderTransitions    *prometheus.CounterVec
	reservations        *prometheus.CounterVec
	paymentResults      *prometheus.CounterVec
	refunds             *prometheus.CounterVec
	dispatchAttempts    *prometheus.CounterVec
	invariantViolations *prometheus.CounterVec
	eventsPublished     *prometheus.CounterVec
	commandDuration     *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "orders_created_total",
			Help: "Orders placed.",
		}),
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "order_transitions_total",
			Help: "Order status transitions.",
		}, []string{"from", "to"}),
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "reservations_total",
			Help: "Inventory reservation operations by result.",
		}, []string{"result"}),
		paymentResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "payment_results_total",
			Help: "Payments reaching a status, by method.",
		}, []string{"method", "status"}),
		refunds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "refunds_total",
			Help: "Refunds by destination and result.",
		}, []string{"destination", "result"}),
		dispatchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "dispatch_attempts_total",
			Help: "Agent assignment attempts by result.",
		}, []string{"result"}),
		invariantViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "invariant_violations_total",
			Help: "Corrupted rows detected, by entity.",
		}, []string{"entity"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_published_total",
			Help: "Domain events delivered to the in-process bus.",
		}, []string{"event"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "command_duration_seconds",
			Help:    "Command handler latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"command", "result"}),
	}
	reg.MustRegister(
		m.ordersCreated,
		m.orderTransitions,
		m.reservations,
		m.paymentResults,
		m.refunds,
		m.dispatchAttempts,
		m.invariantViolations,
		m.eventsPublished,
		m.commandDuration,
	)
	return m
}

func (m *Metrics) OrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *Metrics) OrderTransition(from, to string) {
	if m == nil {
		return
	}
	m.orderTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) Reservation(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reservations.WithLabelValues(result).Add(float64(n))
}

func (m *Metrics) PaymentResult(method, status string) {
	if m == nil {
		return
	}
	m.paymentResults.WithLabelValues(method, status).Inc()
}

func (m *Metrics) Refund(destination, result string) {
	if m == nil {
		return
	}
	m.refunds.WithLabelValues(destination, result).Inc()
}

func (m *Metrics) DispatchAttempt(result string) {
	if m == nil {
		return
	}
	m.dispatchAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) InvariantViolation(entity string) {
	if m == nil {
		return
	}
	m.invariantViolations.WithLabelValues(entity).Inc()
}

func (m *Metrics) EventPublished(name string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(name).Inc()
}

// ObserveCommand records how long command took; use with defer:
//
//	defer m.ObserveCommand("create_order", time.Now(), &err)
func (m *Metrics) ObserveCommand(command string, started time.Time, err *error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil && *err != nil {
		result = "error"
	}
	m.commandDuration.WithLabelValues(command, result).Observe(time.Since(started).Seconds())
}
