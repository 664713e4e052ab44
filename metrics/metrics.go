package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volarix_decisions_total",
			Help: "Total pipeline decisions by outcome (BUY/SELL/HOLD).",
		},
		[]string{"decision"},
	)

	Holds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volarix_holds_total",
			Help: "HOLD outcomes by the pipeline stage that produced them.",
		},
		[]string{"stage"},
	)

	InvalidBars = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "volarix_invalid_bars_total",
			Help: "Requests rejected by bar-window validation.",
		},
	)

	BrokenLevels = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "volarix_broken_levels",
			Help: "Active broken S/R levels currently in cooldown, per symbol.",
		},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(Decisions, Holds, InvalidBars, BrokenLevels)
}
