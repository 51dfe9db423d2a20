package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	signalsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "evemo_signals",
			Help: "Candidates found by the last analysis run, by direction",
		},
		[]string{"direction"},
	)
	seriesCollected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evemo_series_collected_total",
			Help: "History series fetched per outcome (stored, failed)",
		},
		[]string{"outcome"},
	)
	lastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "evemo_last_run_timestamp_seconds",
			Help: "Unix time of the last completed analysis run",
		},
	)
)
