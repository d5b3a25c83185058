package leaderboard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leaderboard_loads_total",
		Help: "Leaderboard loads by scope and window.",
	}, []string{"scope", "window"})

	loadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leaderboard_load_failures_total",
		Help: "Leaderboard loads that failed and rendered as an empty board.",
	})

	staleLoadsDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leaderboard_stale_loads_discarded_total",
		Help: "In-flight loads discarded because a newer load superseded them.",
	})
)
