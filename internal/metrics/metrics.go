// Package metrics exposes the Prometheus counters/histograms named in the
// (DOMAIN STACK) Metrics section: ims_jobs_total, ims_job_duration_seconds,
// and ims_remote_node_probe_total, registered on their own
// prometheus.Registry and served on /metrics, mirroring the
// cluster-operator convention of exposing health and metrics endpoints
// side by side.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Cray-HPE/ims-sub000/internal/model"
)

// Metrics wraps the registry and instruments jobcontroller.Controller
// drives through, satisfying jobcontroller.Metrics.
type Metrics struct {
	registry *prometheus.Registry

	jobsTotal        *prometheus.CounterVec
	jobDuration      prometheus.Histogram
	remoteProbeTotal *prometheus.CounterVec
}

// New builds a Metrics instance with its own registry, so a test can
// construct one without colliding with prometheus' global default
// registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ims_jobs_total",
			Help: "Total image build/customize jobs, by terminal status.",
		}, []string{"status"}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ims_job_duration_seconds",
			Help:    "Wall-clock duration of jobs from creation to terminal status.",
			Buckets: prometheus.ExponentialBuckets(30, 2, 12),
		}),
		remoteProbeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ims_remote_node_probe_total",
			Help: "Remote build node probes, by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.jobsTotal, m.jobDuration, m.remoteProbeTotal)
	return m
}

// Handler returns the /metrics HTTP handler for this Metrics' registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveJobCreated satisfies jobcontroller.Metrics. It records nothing;
// a job's duration reaches ObserveJobDuration from its caller instead.
func (m *Metrics) ObserveJobCreated(jobType model.JobType) {
	_ = jobType
}

// ObserveJobTerminal satisfies jobcontroller.Metrics: increments the
// terminal-status counter.
func (m *Metrics) ObserveJobTerminal(status model.JobStatus) {
	m.jobsTotal.WithLabelValues(string(status)).Inc()
}

// ObserveRemoteProbe records the outcome of one remote-node SSH/podman
// probe cycle (§4.E), keyed by a coarse result label ("ok", "unreachable").
func (m *Metrics) ObserveRemoteProbe(result string) {
	m.remoteProbeTotal.WithLabelValues(result).Inc()
}

// ObserveJobDuration records the wall-clock span of one completed job.
func (m *Metrics) ObserveJobDuration(d time.Duration) {
	m.jobDuration.Observe(d.Seconds())
}
