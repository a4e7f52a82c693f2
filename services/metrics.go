package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	boardFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "businfo_board_fetches_total",
		Help: "Departures board fetches by result (ok, error).",
	}, []string{"result"})
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "businfo_cache_lookups_total",
		Help: "Cache lookups by key family and result (hit, miss, error).",
	}, []string{"key", "result"})
	predictionsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "businfo_predictions_failed_total",
		Help: "Per-service bay predictions that returned an error.",
	})
	predictionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "businfo_prediction_duration_seconds",
		Help:    "Time spent predicting bays for one service.",
		Buckets: prometheus.DefBuckets,
	})
)
