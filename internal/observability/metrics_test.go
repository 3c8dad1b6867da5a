package observability_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capabusiness/verification/internal/observability"
)

func TestMetrics_Record(t *testing.T) {
	reg := observability.NewRegistry()
	m := observability.NewMetrics(reg)

	m.RecordLogin(observability.LoginVerified)
	m.RecordLogin(observability.LoginVerified)
	m.RecordLogin(observability.LoginUnverified)
	m.RecordRegistration()
	m.RecordPasswordReset()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.LoginAttempts.WithLabelValues(observability.LoginVerified)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LoginAttempts.WithLabelValues(observability.LoginUnverified)))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.LoginAttempts.WithLabelValues(observability.LoginError)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Registrations))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PasswordResets))
}

func TestMetrics_Nil(t *testing.T) {
	var m *observability.Metrics

	assert.NotPanics(t, func() {
		m.RecordLogin(observability.LoginError)
		m.RecordRegistration()
		m.RecordPasswordReset()
	})
}

func TestHandler(t *testing.T) {
	reg := observability.NewRegistry()
	m := observability.NewMetrics(reg)
	m.RecordLogin(observability.LoginRejected)

	srv := httptest.NewServer(observability.Handler(reg))
	t.Cleanup(srv.Close)

	tests := map[string]struct {
		path       string
		wantStatus int
		wantBody   []string
	}{
		"metrics": {
			path:       "/metrics",
			wantStatus: http.StatusOK,
			wantBody: []string{
				"# HELP",
				"go_goroutines",
				`verification_login_attempts_total{outcome="rejected"} 1`,
			},
		},
		"liveness": {
			path:       "/healthz/liveness",
			wantStatus: http.StatusOK,
			wantBody:   []string{"ok"},
		},
		"unknown path": {
			path:       "/other",
			wantStatus: http.StatusNotFound,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			res, err := srv.Client().Get(srv.URL + tc.path)
			require.NoError(t, err)
			defer func() { _ = res.Body.Close() }()

			assert.Equal(t, tc.wantStatus, res.StatusCode)

			body, err := io.ReadAll(res.Body)
			require.NoError(t, err)
			for _, want := range tc.wantBody {
				assert.Contains(t, string(body), want)
			}
		})
	}
}
