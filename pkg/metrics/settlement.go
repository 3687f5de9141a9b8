package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hydromart"

// SettlementMetrics counts the side effects applied by the settlement engine.
type SettlementMetrics struct {
	transitions   *prometheus.CounterVec
	credits       prometheus.Counter
	creditedCents prometheus.Counter
	restoredUnits prometheus.Counter
	cancellations *prometheus.CounterVec
	failures      *prometheus.CounterVec
}

// NewSettlementMetrics registers the settlement collectors on reg. A nil
// registerer yields a no-op recorder.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	m := &SettlementMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Applied order and order item status transitions.",
		}, []string{"kind", "status"}),
		credits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vendor_credits_total",
			Help:      "Delivery credits applied to vendor balances.",
		}),
		creditedCents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vendor_credited_cents_total",
			Help:      "Sum of delivery credits in cents.",
		}),
		restoredUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_restored_units_total",
			Help:      "Units returned to product stock by cancellations.",
		}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_cancellations_total",
			Help:      "Cancelled orders by source.",
		}, []string{"source"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_failures_total",
			Help:      "Settlement operations that returned an error, by operation and code.",
		}, []string{"operation", "code"}),
	}
	reg.MustRegister(m.transitions, m.credits, m.creditedCents, m.restoredUnits, m.cancellations, m.failures)
	return m
}

// IncTransition records one applied status change. kind is "order" or "item".
func (m *SettlementMetrics) IncTransition(kind, status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(kind), normalizeLabel(status)).Inc()
}

// ObserveCredit records a vendor credit of amountCents.
func (m *SettlementMetrics) ObserveCredit(amountCents int) {
	if m == nil || m.credits == nil {
		return
	}
	m.credits.Inc()
	if amountCents > 0 {
		m.creditedCents.Add(float64(amountCents))
	}
}

// ObserveRestock records units added back to stock.
func (m *SettlementMetrics) ObserveRestock(units int) {
	if m == nil || m.restoredUnits == nil || units <= 0 {
		return
	}
	m.restoredUnits.Add(float64(units))
}

func (m *SettlementMetrics) IncCancellation(source string) {
	if m == nil || m.cancellations == nil {
		return
	}
	m.cancellations.WithLabelValues(normalizeLabel(source)).Inc()
}

func (m *SettlementMetrics) IncFailure(operation, code string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(operation), normalizeLabel(code)).Inc()
}
