package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_runs_total",
			Help: "Total number of finished scenario runs.",
		},
		[]string{"status"},
	)

	actVerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_act_verdicts_total",
			Help: "Total number of act verdicts by outcome.",
		},
		[]string{"verdict"},
	)

	faultsRaisedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "faultline_faults_raised_total",
			Help: "Total number of injected faults delivered to applications.",
		},
	)

	runsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "faultline_runs_in_flight",
			Help: "Number of scenario runs currently executing.",
		},
	)

	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "faultline_run_duration_seconds",
			Help:    "Scenario run duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entry_point"},
	)
)

func init() {
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(actVerdictsTotal)
	prometheus.MustRegister(faultsRaisedTotal)
	prometheus.MustRegister(runsInFlight)
	prometheus.MustRegister(runDuration)
}
