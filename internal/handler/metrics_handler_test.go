package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/routine-builder/internal/middleware"
	"github.com/noah-isme/routine-builder/internal/models"
	"github.com/noah-isme/routine-builder/internal/service"
)

func TestMetricsHandlerSummaryAndPrometheus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	h := NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(middleware.Metrics(metrics))
	r.GET("/health", h.Health)
	r.GET("/metrics", h.Prometheus)
	r.GET("/metrics/summary", h.Summary)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	w, env := perform(r, http.MethodGet, "/metrics/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	var summary models.SystemMetrics
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, uint64(2), summary.RequestsTotal)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `path="unmatched"`)
	assert.Contains(t, w.Body.String(), `path="/health"`)
}

func TestMetricsHandlerWithoutService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewMetricsHandler(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/metrics", nil)

	h.Prometheus(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewMetricsHandler(nil)
	var redisErr error
	h.AddReadinessCheck("postgres", func(ctx context.Context) error { return nil })
	h.AddReadinessCheck("redis", func(ctx context.Context) error { return redisErr })
	h.AddQueue("teacher_fetch", func() int { return 3 })

	r := gin.New()
	r.GET("/ready", h.Ready)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
		Queues map[string]int    `json:"queues"`
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, map[string]string{"postgres": "ok", "redis": "ok"}, body.Checks)
	assert.Equal(t, 3, body.Queues["teacher_fetch"])

	redisErr = errors.New("connection refused")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "connection refused", body.Checks["redis"])
	assert.Equal(t, "ok", body.Checks["postgres"])
}
