// Package observability provides the Prometheus metrics of the server
// and the HTTP endpoints that expose them.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcomes, used as the outcome label of the login counter.
const (
	LoginVerified     = "verified"
	LoginUnverified   = "unverified"
	LoginInvalidInput = "invalid_input"
	LoginRejected     = "rejected"
	LoginThrottled    = "throttled"
	LoginError        = "error"
)

// Metrics contains the application metrics. A nil *Metrics records nothing.
type Metrics struct {
	LoginAttempts  *prometheus.CounterVec
	Registrations  prometheus.Counter
	PasswordResets prometheus.Counter
}

// NewMetrics creates the application metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verification_login_attempts_total",
				Help: "Total number of login form submissions by outcome",
			},
			[]string{"outcome"},
		),
		Registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "verification_registrations_total",
			Help: "Total number of accepted registration form submissions",
		}),
		PasswordResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "verification_password_resets_total",
			Help: "Total number of accepted password reset requests",
		}),
	}

	reg.MustRegister(m.LoginAttempts, m.Registrations, m.PasswordResets)

	return m
}

// RecordLogin counts a login attempt with one of the Login* outcomes.
func (m *Metrics) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordRegistration() {
	if m == nil {
		return
	}
	m.Registrations.Inc()
}

func (m *Metrics) RecordPasswordReset() {
	if m == nil {
		return
	}
	m.PasswordResets.Inc()
}

// NewRegistry returns a registry with the standard Go and process
// collectors. A separate registry keeps the global one clean.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler serves /metrics for reg and a /healthz/liveness probe.
func Handler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	mux.HandleFunc("GET /healthz/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	return mux
}
