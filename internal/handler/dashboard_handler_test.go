package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-portal/internal/middleware"
	"github.com/noah-isme/sma-portal/internal/models"
)

type dashboardStub struct {
	hit       bool
	statsRuns int
}

func (s *dashboardStub) Stats(context.Context) (*models.DashboardStats, bool, error) {
	s.statsRuns++
	return &models.DashboardStats{TotalStudents: 412, PendingApprovals: 3}, s.hit, nil
}

func (s *dashboardStub) Student(_ context.Context, userID string) (*models.StudentDashboard, error) {
	return &models.StudentDashboard{Student: &models.Student{UserID: userID, StudentCode: "STD20240007"}}, nil
}

func TestDashboardPageForStaff(t *testing.T) {
	h := newHarness(t)
	svc := &dashboardStub{}
	handler := NewDashboardHandler(svc, h.pages)
	h.engine.GET("/dashboard", h.signIn(&models.User{ID: "t1", Role: models.RoleTeacher}), handler.Page)

	w := h.get("/dashboard")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "students=412", w.Body.String())
	assert.Equal(t, 1, svc.statsRuns)
}

func TestDashboardPageForStudent(t *testing.T) {
	h := newHarness(t)
	svc := &dashboardStub{}
	handler := NewDashboardHandler(svc, h.pages)
	h.engine.GET("/dashboard", h.signIn(&models.User{ID: "s1", Role: models.RoleStudent}), handler.Page)

	w := h.get("/dashboard")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "code=STD20240007", w.Body.String())
	assert.Zero(t, svc.statsRuns)
}

func TestDashboardStatsReportsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&dashboardStub{hit: true}, nil)
	r := gin.New()
	r.GET("/api/v1/dashboard/stats", middleware.WithResponseMeta(), handler.Stats)

	w := serveRequest(r, http.MethodGet, "/api/v1/dashboard/stats")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data models.DashboardStats  `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 412, body.Data.TotalStudents)
	assert.Equal(t, true, body.Meta["cache_hit"])
	assert.Contains(t, body.Meta, "processing_time_ms")
}
