package questioner

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Games *prometheus.CounterVec
	Moves *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Games: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "questioner_games_total",
			Help: "Games played, by questioner and outcome.",
		}, []string{"questioner", "outcome"}),
		Moves: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "questioner_game_moves",
			Help:    "Moves per finished game.",
			Buckets: prometheus.LinearBuckets(1, 2, 10),
		}, []string{"questioner"}),
	}
	if reg != nil {
		reg.MustRegister(m.Games, m.Moves)
	}
	return m
}
