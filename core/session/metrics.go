package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sessionkit",
		Name:      "sessions_created_total",
		Help:      "Number of sessions created, by realm.",
	}, []string{"realm"})

	sessionsPruned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sessionkit",
		Name:      "sessions_pruned_total",
		Help:      "Number of expired sessions removed by pruning, by realm.",
	}, []string{"realm"})

	cookieDecodeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sessionkit",
		Name:      "cookie_decode_failures_total",
		Help:      "Number of session cookies rejected as malformed or badly signed, by realm.",
	}, []string{"realm"})
)
