// Package metrics exposes Prometheus counters for challenge protocol
// outcomes. Lost advance races and duplicate answers are expected events,
// so they are counted rather than logged as errors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the challenge service collectors.
type Metrics struct {
	AdvancesWon      prometheus.Counter
	AdvancesLost     prometheus.Counter
	AnswersAccepted  prometheus.Counter
	AnswersDuplicate prometheus.Counter
	AnswersRejected  prometheus.Counter
	SessionsStarted  prometheus.Counter
	BroadcastsFailed prometheus.Counter
}

// New registers challenge collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AdvancesWon: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardclash_advances_won_total",
			Help: "Card advances where this instance's conditional write landed first.",
		}),
		AdvancesLost: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardclash_advances_lost_total",
			Help: "Card advance attempts that lost the conditional-write race.",
		}),
		AnswersAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardclash_answers_accepted_total",
			Help: "Answers recorded in the ledger.",
		}),
		AnswersDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardclash_answers_duplicate_total",
			Help: "Answer submissions suppressed by the at-most-once guard.",
		}),
		AnswersRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardclash_answers_rejected_total",
			Help: "Answer submissions rejected for an expired card or deadline.",
		}),
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardclash_sessions_started_total",
			Help: "Challenge sessions transitioned from waiting to running.",
		}),
		BroadcastsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardclash_broadcasts_failed_total",
			Help: "Best-effort broadcasts that could not be published.",
		}),
	}
}
