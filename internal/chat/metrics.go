package chat

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memochat_turns_total",
		Help: "Turns processed, labelled by the terminal state.",
	}, []string{"state"})

	turnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "memochat_turn_duration_seconds",
		Help:    "Wall-clock duration of a full turn.",
		Buckets: prometheus.DefBuckets,
	})
)

func observeTurn(state string, d time.Duration) {
	turnsTotal.WithLabelValues(state).Inc()
	turnDuration.Observe(d.Seconds())
}
