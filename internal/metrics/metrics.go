// Package metrics exposes operational counters for the bot on a Prometheus
// endpoint.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics aggregates the bot's operational instrumentation.
type Metrics struct {
	EventsTotal    *prometheus.CounterVec // by event kind and name
	RepliesTotal   *prometheus.CounterVec // by delivery mode (send | edit)
	BalanceQueries *prometheus.CounterVec // by outcome (ok | unreachable)
	QueryDuration  prometheus.Summary
}

// New registers the bot metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solbot",
			Name:      "events_total",
			Help:      "Inbound events processed, by kind and name",
		}, []string{"kind", "name"}),
		RepliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solbot",
			Name:      "replies_total",
			Help:      "Outbound replies produced, by delivery mode",
		}, []string{"mode"}),
		BalanceQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solbot",
			Name:      "balance_queries_total",
			Help:      "Balance oracle calls, by outcome",
		}, []string{"outcome"}),
		QueryDuration: prometheus.NewSummary(prometheus.SummaryOpts{
			Namespace: "solbot",
			Name:      "balance_query_duration_seconds",
			Help:      "Time spent in balance oracle calls",
		}),
	}
	reg.MustRegister(m.EventsTotal, m.RepliesTotal, m.BalanceQueries, m.QueryDuration)
	return m
}

// NewNop returns metrics bound to a throwaway registry, for tests and for
// runs with metrics disabled.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
