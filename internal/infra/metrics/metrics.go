// Package metrics registers the service's Prometheus collectors on the
// default registry, exposed by the /metrics handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediaforge_jobs_submitted_total",
		Help: "Jobs accepted by kind.",
	}, []string{"kind"})

	JobsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediaforge_jobs_finalized_total",
		Help: "Jobs reaching a terminal state by kind and status.",
	}, []string{"kind", "status"})

	CreditsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediaforge_credits_consumed_total",
		Help: "Credits reserved for jobs.",
	})

	CreditsRefunded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediaforge_credits_refunded_total",
		Help: "Credits returned by compensating refunds.",
	})

	LedgerConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediaforge_ledger_conflicts_total",
		Help: "Optimistic-concurrency conflicts on balance writes.",
	})

	StrategyAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediaforge_strategy_attempts_total",
		Help: "Fallback chain attempts by chain, strategy and outcome.",
	}, []string{"chain", "strategy", "outcome"})
)
