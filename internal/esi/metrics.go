package esi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evemo_esi_requests_total",
			Help: "ESI requests by final outcome (ok, definitive, exhausted, malformed)",
		},
		[]string{"outcome"},
	)
	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evemo_esi_retries_total",
			Help: "Transient ESI failures by class (network, rate_limited, server_error)",
		},
		[]string{"class"},
	)
	requestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "evemo_esi_request_duration_seconds",
			Help:    "Duration of single ESI HTTP attempts",
			Buckets: prometheus.DefBuckets,
		},
	)
)
