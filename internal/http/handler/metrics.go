package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	votesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyvote_votes_total",
			Help: "Vote attempts by kind (free, coin) and result.",
		},
		[]string{"kind", "result"},
	)

	chaptersPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storyvote_chapters_published_total",
		Help: "Total number of published chapters.",
	})

	paymentIntentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyvote_payment_intents_total",
			Help: "Payment intent requests by result.",
		},
		[]string{"result"},
	)

	webhookOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyvote_webhook_outcomes_total",
			Help: "Gateway notifications by outcome.",
		},
		[]string{"outcome"},
	)
)

// result labels a counter: ok, rejected (client error) or error.
func result(err error) string {
	if err == nil {
		return "ok"
	}
	if statusFor(err) >= 500 {
		return "error"
	}
	return "rejected"
}
