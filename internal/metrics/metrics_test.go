package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/cardwise/internal/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	m := New()

	m.ObserveRun(model.RunStatusCompleted, 2*time.Second, 7)
	m.ObserveRun(model.RunStatusCompleted, time.Second, 3)
	m.ObserveRun(model.RunStatusFailed, time.Millisecond, 0)

	assert.InDelta(t, 2, testutil.ToFloat64(m.RunsTotal.WithLabelValues("completed")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RunsTotal.WithLabelValues("failed")), 1e-9)
	assert.Equal(t, 2, testutil.CollectAndCount(m.RunsTotal))
}

func TestObserveRecommendationsAndImports(t *testing.T) {
	m := New()

	m.ObserveRecommendations(3)
	m.ObserveRecommendations(0)
	m.ObserveImport("customers", 10, 2)

	assert.InDelta(t, 3, testutil.ToFloat64(m.Recommendations), 1e-9)
	assert.InDelta(t, 10, testutil.ToFloat64(m.ImportedRows.WithLabelValues("customers")), 1e-9)
	assert.InDelta(t, 2, testutil.ToFloat64(m.RejectedRows.WithLabelValues("customers")), 1e-9)
}

func TestHandler_Exposition(t *testing.T) {
	m := New()
	m.ObserveRun(model.RunStatusCompleted, time.Second, 4)
	m.ObserveRequest(http.MethodGet, "/api/segments", http.StatusOK, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `cardwise_analysis_runs_total{status="completed"} 1`))
	assert.Contains(t, body, "cardwise_http_request_duration_seconds")
}

func TestNew_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		_ = New()
		_ = New()
	})
}
