package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceScheduleGauges(t *testing.T) {
	metrics := NewMetricsService()

	metrics.ObserveSchedule(3, 1)
	metrics.RecordCellMutation("select_teacher")
	metrics.RecordCellMutation("select_teacher")
	metrics.RecordTeacherFetch("stale")

	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.routinesOpen))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.teacherConflicts))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.cellMutations.WithLabelValues("select_teacher")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.teacherFetches.WithLabelValues("stale")))

	snapshot := metrics.Snapshot()
	assert.Equal(t, 3, snapshot.RoutinesOpen)
	assert.Equal(t, 1, snapshot.TeacherConflicts)
	assert.Equal(t, uint64(2), snapshot.CellMutations)
}

func TestMetricsServiceCacheRatio(t *testing.T) {
	metrics := NewMetricsService()
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.RecordCacheOperation(false, time.Millisecond)
	metrics.RecordCacheOperation(true, time.Millisecond)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(2), snapshot.CacheHits)
	assert.InDelta(t, 2.0/3.0, snapshot.CacheHitRatio, 0.0001)
}

func TestMetricsServiceHandlerServesRegistry(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/routines", http.StatusOK, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "http_requests_total"))
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	metrics.ObserveSchedule(1, 1)
	metrics.RecordCellMutation("clear_cell")
	metrics.RecordTeacherFetch("loaded")
	assert.Equal(t, 0, metrics.Snapshot().RoutinesOpen)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
