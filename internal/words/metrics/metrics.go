package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the word registry.
type Metrics struct {
	// Mutations by operation ("add", "remove", "reset", "replace") and type
	Mutations *prometheus.CounterVec

	// Propagation outcomes by result ("applied", "failed", "aborted")
	Propagations *prometheus.CounterVec

	// Matches by type and channel
	Matches *prometheus.CounterVec

	// Flush failures by table
	FlushFailures *prometheus.CounterVec

	// Entries per type, refreshed after each mutation
	Entries *prometheus.GaugeVec
}

// New creates a new Metrics instance with all registry metrics registered.
func New() *Metrics {
	return &Metrics{
		Mutations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wordhub_registry_mutations_total",
			Help: "Registry mutations by operation and word type",
		}, []string{"op", "type"}),
		Propagations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wordhub_registry_propagations_total",
			Help: "Propagation outcomes per sibling type",
		}, []string{"result"}),
		Matches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wordhub_registry_matches_total",
			Help: "Pattern matches by word type and content channel",
		}, []string{"type", "channel"}),
		FlushFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wordhub_registry_flush_failures_total",
			Help: "Failed table flushes by table name",
		}, []string{"table"}),
		Entries: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wordhub_registry_entries",
			Help: "Number of patterns per word type",
		}, []string{"type"}),
	}
}

// IncrementMutation records a successful mutation.
func (m *Metrics) IncrementMutation(op, wordType string) {
	if m != nil {
		m.Mutations.WithLabelValues(op, wordType).Inc()
	}
}

// IncrementPropagation records one propagation outcome.
func (m *Metrics) IncrementPropagation(result string) {
	if m != nil {
		m.Propagations.WithLabelValues(result).Inc()
	}
}

// IncrementMatch records a pattern hit.
func (m *Metrics) IncrementMatch(wordType, channel string) {
	if m != nil {
		m.Matches.WithLabelValues(wordType, channel).Inc()
	}
}

// IncrementFlushFailure records a failed save.
func (m *Metrics) IncrementFlushFailure(table string) {
	if m != nil {
		m.FlushFailures.WithLabelValues(table).Inc()
	}
}

// SetEntries records the current size of a type.
func (m *Metrics) SetEntries(wordType string, n int) {
	if m != nil {
		m.Entries.WithLabelValues(wordType).Set(float64(n))
	}
}
