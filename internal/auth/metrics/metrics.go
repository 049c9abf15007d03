package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	LoginAttemptsTotal   *prometheus.CounterVec
	TokensIssuedTotal    *prometheus.CounterVec
	TokensVerifiedTotal  *prometheus.CounterVec
	LogoutsTotal         prometheus.Counter
	LoginDurationSeconds prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		LoginAttemptsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bureau_auth_login_attempts_total",
			Help: "Total number of login attempts, by result",
		}, []string{"result"}),
		TokensIssuedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bureau_auth_tokens_issued_total",
			Help: "Total number of tokens issued, by type",
		}, []string{"type"}),
		TokensVerifiedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bureau_auth_tokens_verified_total",
			Help: "Total number of token verifications, by result",
		}, []string{"result"}),
		LogoutsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bureau_auth_logouts_total",
			Help: "Total number of logouts",
		}),
		LoginDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "bureau_auth_login_duration_seconds",
			Help: "Duration of login processing in seconds",
		}),
	}
}

func (m *Metrics) IncrementLoginAttempts(result string) {
	m.LoginAttemptsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementTokensIssued(tokenType string) {
	m.TokensIssuedTotal.WithLabelValues(tokenType).Inc()
}

func (m *Metrics) IncrementTokensVerified(result string) {
	m.TokensVerifiedTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementLogouts() {
	m.LogoutsTotal.Inc()
}

func (m *Metrics) ObserveLoginDuration(seconds float64) {
	m.LoginDurationSeconds.Observe(seconds)
}
