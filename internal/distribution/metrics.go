package distribution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Delivery results.
const (
	ResultDelivered   = "delivered"
	ResultFailed      = "failed"
	ResultCircuitOpen = "circuit_open"
	ResultDropped     = "dropped"
)

// Metrics holds Prometheus metrics for distribution. A nil *Metrics records nothing.
type Metrics struct {
	Deliveries   *prometheus.CounterVec
	BreakerState *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance with distribution metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Deliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wordhub_distribution_deliveries_total",
			Help: "Payload deliveries to sibling services, by receiver, action and result",
		}, []string{"receiver", "action", "result"}),
		BreakerState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wordhub_distribution_circuit_breaker_state",
			Help: "Per-receiver circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}, []string{"receiver"}),
	}
}

// IncDelivery counts one delivery outcome.
func (m *Metrics) IncDelivery(receiver, action, result string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(receiver, action, result).Inc()
}

// SetBreakerState sets the circuit breaker state gauge.
func (m *Metrics) SetBreakerState(receiver string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.BreakerState.WithLabelValues(receiver).Set(v)
}
