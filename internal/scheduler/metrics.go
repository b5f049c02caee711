package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	pending prometheus.Gauge
	runs    *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer, queue string) *metrics {
	labels := prometheus.Labels{"queue": queue}
	f := promauto.With(reg)
	return &metrics{
		pending: f.NewGauge(prometheus.GaugeOpts{
			Name:        "scheduler_pending_jobs",
			Help:        "Jobs scheduled but not yet started.",
			ConstLabels: labels,
		}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "scheduler_job_runs_total",
			Help:        "Executed jobs by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
	}
}

func (m *metrics) ran(err error) {
	if err != nil {
		m.runs.WithLabelValues("error").Inc()
		return
	}
	m.runs.WithLabelValues("success").Inc()
}
