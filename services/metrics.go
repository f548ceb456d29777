package services

import "github.com/prometheus/client_golang/prometheus"

var (
	xpAwardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_xp_awarded_total",
			Help: "XP granted by the reward engine, labeled by reason",
		},
		[]string{"reason"},
	)
	levelUpsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reward_level_ups_total",
			Help: "Number of level-up events",
		},
	)
	medalsAwardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_daily_medals_total",
			Help: "Daily medals awarded, labeled by tier",
		},
		[]string{"tier"},
	)
)

// InitMetrics registers the engine counters. Call this from main.go
func InitMetrics() {
	prometheus.MustRegister(xpAwardedTotal)
	prometheus.MustRegister(levelUpsTotal)
	prometheus.MustRegister(medalsAwardedTotal)
}
