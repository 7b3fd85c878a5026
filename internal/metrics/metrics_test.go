package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-pm-server/internal/metrics"
)

func TestCollector_CountsAuthAttempts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.RecordAuthAttempt(metrics.MethodLocal, metrics.OutcomeSuccess)
	c.RecordAuthAttempt(metrics.MethodLocal, metrics.OutcomeFailure)
	c.RecordAuthAttempt(metrics.MethodLocal, metrics.OutcomeFailure)
	c.RecordGateRejection("no_token")

	count, err := testutil.GatherAndCount(reg, "pm_auth_attempts_total")
	require.NoError(t, err)
	require.Equal(t, 2, count, "one series per label pair")

	count, err = testutil.GatherAndCount(reg, "pm_gate_rejections_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestHandler_ExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)
	c.RecordNotificationFailure("welcome")
	c.RecordRateLimited("/api/auth/login")
	c.RecordRequest(http.MethodPost, "/api/auth/login", http.StatusOK, 20*time.Millisecond)

	srv := httptest.NewServer(metrics.Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `pm_notification_failures_total{kind="welcome"} 1`)
	require.Contains(t, string(body), `pm_rate_limited_total{route="/api/auth/login"} 1`)
	require.Contains(t, string(body), "pm_http_request_duration_seconds_bucket")
}
