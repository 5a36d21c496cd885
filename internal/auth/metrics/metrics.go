// Package metrics holds the prometheus collectors of the auth service. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Operation outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeMFA      = "mfa_required"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

type Metrics struct {
	Registry *prometheus.Registry

	operations       *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	tokensIssued     *prometheus.CounterVec
	tokensRevoked    prometheus.Counter
	rotationRetries  prometheus.Counter
	tokensExpired    prometheus.Counter
	challengesPurged prometheus.Counter
	httpRequests     *prometheus.CounterVec
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		Registry: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clientauth_operations_total",
			Help: "Authentication operations by outcome",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clientauth_operation_duration_seconds",
			Help:    "Authentication operation latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clientauth_tokens_issued_total",
			Help: "Signed tokens handed to clients",
		}, []string{"use"}),
		tokensRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clientauth_tokens_revoked_total",
			Help: "Token records marked expired and revoked",
		}),
		rotationRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clientauth_rotation_retries_total",
			Help: "Token rotations retried after a transient store conflict",
		}),
		tokensExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clientauth_housekeeping_tokens_expired_total",
			Help: "Token records marked expired by housekeeping",
		}),
		challengesPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clientauth_housekeeping_challenges_deleted_total",
			Help: "Expired MFA challenges deleted by housekeeping",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clientauth_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}
	reg.MustRegister(
		m.operations, m.duration, m.tokensIssued, m.tokensRevoked,
		m.rotationRetries, m.tokensExpired, m.challengesPurged, m.httpRequests,
	)
	return m
}

// ObserveOperation records one finished operation.
func (m *Metrics) ObserveOperation(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) TokenIssued(use string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(use).Inc()
}

func (m *Metrics) TokensRevoked(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.tokensRevoked.Add(float64(n))
}

func (m *Metrics) RotationRetried() {
	if m == nil {
		return
	}
	m.rotationRetries.Inc()
}

func (m *Metrics) Housekeeping(tokensExpired, challengesDeleted int64) {
	if m == nil {
		return
	}
	m.tokensExpired.Add(float64(tokensExpired))
	m.challengesPurged.Add(float64(challengesDeleted))
}
