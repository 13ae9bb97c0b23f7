package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs         *prometheus.CounterVec
	failures     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	archives     prometheus.Counter
	archiveBytes prometheus.Counter
	expired      prometheus.Counter
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddArchived counts one stored document of the given size.
func (m *Metrics) AddArchived(sizeBytes int64) {
	if m == nil {
		return
	}
	m.archives.Inc()
	m.archiveBytes.Add(float64(max(sizeBytes, 0)))
}

// AddExpired counts quotes moved to EXPIRED by the sweep.
func (m *Metrics) AddExpired(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.expired.Add(float64(count))
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hvacdesk_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hvacdesk_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hvacdesk_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	archives := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hvacdesk_quote_archives_total",
		Help: "Quote PDFs written to object storage.",
	})
	archiveBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hvacdesk_quote_archive_bytes_total",
		Help: "Bytes of quote PDFs written to object storage.",
	})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hvacdesk_quotes_expired_total",
		Help: "Sent quotes moved to EXPIRED by the validity sweep.",
	})
	registerer.MustRegister(runs, failures, duration, archives, archiveBytes, expired)
	return &Metrics{runs: runs, failures: failures, duration: duration, archives: archives, archiveBytes: archiveBytes, expired: expired}
}
