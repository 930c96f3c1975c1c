package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsANoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RequestStarted()
		m.RequestFinished("GET", "/api/stats", "200", 0.01)
		m.RateLimited("/api/login")
		m.Transition("waste report", "scheduled")
		m.PointsAwarded("waste_report_completed", 10)
		m.ConnectionOpened()
		m.ConnectionClosed()
		m.JobRun("event-sweep", nil)
	})
}

func TestCounters(t *testing.T) {
	m := New()

	m.Transition("donation", "requested")
	m.Transition("donation", "requested")
	m.PointsAwarded("donation_completed", 20)
	m.PointsAwarded("donation_completed", 0)
	m.JobRun("event-sweep", errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("donation", "requested")))
	assert.Equal(t, 20.0, testutil.ToFloat64(m.pointsAwarded.WithLabelValues("donation_completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("event-sweep", "false")))
}

func TestHTTPInFlightBalances(t *testing.T) {
	m := New()
	m.RequestStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpInFlight))
	m.RequestFinished("GET", "/api/events", "200", 0.002)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInFlight))
}

func TestHandlerServesTextFormat(t *testing.T) {
	m := New()
	m.Transition("event", "completed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `greenpath_domain_status_transitions_total{resource="event",status="completed"} 1`))
}
