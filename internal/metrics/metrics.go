// Package metrics exports parser and sweep counters to Prometheus.
package metrics

import (
	"time"

	"phitsreport/internal/report"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	PagesParsed   *prometheus.CounterVec
	PagesFailed   *prometheus.CounterVec
	ParseDuration prometheus.Histogram
	RunsTotal     *prometheus.CounterVec
	RunDuration   prometheus.Histogram
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// in binaries and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PagesParsed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "phitsreport_pages_parsed_total",
			Help: "Report pages decoded successfully.",
		}, []string{"kind"}),
		PagesFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "phitsreport_pages_failed_total",
			Help: "Report pages or sections skipped, by error code.",
		}, []string{"kind", "code"}),
		ParseDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "phitsreport_parse_duration_seconds",
			Help:    "Duration of one parse call.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "phitsreport_simulation_runs_total",
			Help: "PHITS runs started by the worker, by outcome.",
		}, []string{"status"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "phitsreport_simulation_run_duration_seconds",
			Help:    "Wall time of PHITS runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
	}
}

func (m *Metrics) PageParsed(kind report.Kind) {
	m.PagesParsed.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) PageFailed(kind report.Kind, code string) {
	m.PagesFailed.WithLabelValues(string(kind), code).Inc()
}

func (m *Metrics) ParseFinished(d time.Duration) {
	m.ParseDuration.Observe(d.Seconds())
}

func (m *Metrics) RunFinished(d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(d.Seconds())
}

var _ report.Observer = (*Metrics)(nil)
