package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	AchievementsUnlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nyra_achievements_unlocked_total",
			Help: "Achievements unlocked, by achievement id",
		},
		[]string{"achievement_id"},
	)
	ChatExchanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nyra_chat_exchanges_total",
			Help: "Chat exchanges by outcome",
		},
		[]string{"outcome"},
	)
	InferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nyra_inference_duration_seconds",
			Help:    "Time to stream a full reply from the inference provider",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"provider"},
	)
	FuelCredits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nyra_fuel_credits_total",
			Help: "Fuel purchases credited, by payment provider and package",
		},
		[]string{"provider", "package"},
	)
	CheckIns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nyra_checkins_total",
			Help: "Daily check-ins recorded",
		},
	)
)

var once sync.Once

// Register adds the domain collectors to the default registry.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(AchievementsUnlocked, ChatExchanges, InferenceDuration, FuelCredits, CheckIns)
	})
}
