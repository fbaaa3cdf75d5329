// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ledger_bot"

// Extraction outcomes.
const (
	OutcomeAccounting    = "accounting"
	OutcomeNotAccounting = "not_accounting"
	OutcomeFailed        = "failed"
	OutcomeInvalid       = "invalid"
)

var (
	// Events counts inbound chat events by result: handled, skipped, failed.
	Events = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Inbound chat events by processing result.",
	}, []string{"result"})

	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_total",
		Help:      "Chat commands handled, by command.",
	}, []string{"command"})

	Extractions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extractions_total",
		Help:      "Generative extraction calls by outcome.",
	}, []string{"outcome"})

	TransactionsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transactions_recorded_total",
		Help:      "Transactions persisted, by kind.",
	}, []string{"kind"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
