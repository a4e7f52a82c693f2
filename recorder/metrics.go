package recorder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "businfo_recorder_ticks_total",
		Help: "Recorder ticks by outcome (ok, error, reset, skipped).",
	}, []string{"result"})
	arrivalsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "businfo_recorder_arrivals_recorded_total",
		Help: "Total number of arrivals inserted into the historical store.",
	})
	recordFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "businfo_recorder_arrivals_failed_total",
		Help: "Total number of arrivals that failed to check or store.",
	})
	publishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "businfo_recorder_publish_failed_total",
		Help: "Total number of board or arrival events that failed to publish.",
	})
)
