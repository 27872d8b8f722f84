package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-portal/internal/service"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
)

type readinessStub struct {
	err error
}

func (s readinessStub) Ready(context.Context) error { return s.err }

func serveRequest(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func newMetricsRouter(monitor readinessChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	metrics.ObserveAuthEvent("login", "success")
	h := NewMetricsHandler(metrics, monitor)
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/metrics", h.Prometheus)
	return r
}

func TestHealth(t *testing.T) {
	w := serveRequest(newMetricsRouter(nil), http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestReadyReportsDependencyFailure(t *testing.T) {
	down := appErrors.Clone(appErrors.ErrServiceUnavailable, "database unreachable")

	w := serveRequest(newMetricsRouter(readinessStub{err: down}), http.MethodGet, "/ready")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "database unreachable")
}

func TestReadyWhenDependenciesUp(t *testing.T) {
	w := serveRequest(newMetricsRouter(readinessStub{}), http.MethodGet, "/ready")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPrometheusExposesPortalMetrics(t *testing.T) {
	w := serveRequest(newMetricsRouter(nil), http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sma_portal_auth_events_total")
}
