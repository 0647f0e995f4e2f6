package erasure_code

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stepsPlanned = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "erasure_code",
		Name:      "steps_planned_total",
		Help:      "Coding steps planned, by codec and step kind.",
	}, []string{"codec", "kind"})
	planFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "erasure_code",
		Name:      "plan_failures_total",
		Help:      "Block groups that could not be planned, by error code.",
	}, []string{"code"})
	planLatencies = promauto.NewSummary(prometheus.SummaryOpts{
		Subsystem:  "erasure_code",
		Name:       "plan_latency_seconds",
		Help:       "Time spent planning one block group.",
		Objectives: map[float64]float64{0.5: 0.05, 0.99: 0.001},
	})
)
