package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	FailuresRecordedTotal  prometheus.Counter
	BlocksCreatedTotal     *prometheus.CounterVec
	CheckDeniedTotal       *prometheus.CounterVec
	CleanupRunsTotal       *prometheus.CounterVec
	CleanupDeletedTotal    prometheus.Counter
	CleanupDurationSeconds prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		FailuresRecordedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bureau_ratelimit_failures_recorded_total",
			Help: "Total number of failed login attempts recorded",
		}),
		BlocksCreatedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bureau_ratelimit_blocks_created_total",
			Help: "Total number of login blocks created, by scope",
		}, []string{"scope"}),
		CheckDeniedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bureau_ratelimit_check_denied_total",
			Help: "Total number of login attempts denied by an active block, by scope",
		}, []string{"scope"}),
		CleanupRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bureau_ratelimit_cleanup_runs_total",
			Help: "Total number of cleanup runs",
		}, []string{"status"}),
		CleanupDeletedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bureau_ratelimit_cleanup_deleted_total",
			Help: "Total number of rows deleted by the cleanup sweep",
		}),
		CleanupDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "bureau_ratelimit_cleanup_duration_seconds",
			Help: "Duration of cleanup runs in seconds",
		}),
	}
}

func (m *Metrics) IncrementFailuresRecorded() {
	m.FailuresRecordedTotal.Inc()
}

func (m *Metrics) IncrementBlocksCreated(scope string) {
	m.BlocksCreatedTotal.WithLabelValues(scope).Inc()
}

func (m *Metrics) IncrementCheckDenied(scope string) {
	m.CheckDeniedTotal.WithLabelValues(scope).Inc()
}

func (m *Metrics) IncrementCleanupRuns(status string) {
	m.CleanupRunsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) AddCleanupDeleted(count int) {
	m.CleanupDeletedTotal.Add(float64(count))
}

func (m *Metrics) ObserveCleanupDuration(seconds float64) {
	m.CleanupDurationSeconds.Observe(seconds)
}
