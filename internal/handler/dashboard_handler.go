package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-portal/internal/middleware"
	"github.com/noah-isme/sma-portal/internal/models"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
	"github.com/noah-isme/sma-portal/pkg/response"
)

type dashboardService interface {
	Stats(ctx context.Context) (*models.DashboardStats, bool, error)
	Student(ctx context.Context, userID string) (*models.StudentDashboard, error)
}

// DashboardHandler serves the dashboard page and its JSON variant.
type DashboardHandler struct {
	service dashboardService
	pages   *Pages
}

// NewDashboardHandler creates a new handler.
func NewDashboardHandler(svc dashboardService, pages *Pages) *DashboardHandler {
	return &DashboardHandler{service: svc, pages: pages}
}

type dashboardPage struct {
	Stats   *models.DashboardStats
	Student *models.StudentDashboard
}

// Page renders the staff summary, or the own-record view for students.
func (h *DashboardHandler) Page(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		middleware.Deny(c, appErrors.ErrUnauthorized)
		return
	}
	var data dashboardPage
	if user.Role == models.RoleStudent {
		student, err := h.service.Student(c.Request.Context(), user.ID)
		if err != nil {
			middleware.Deny(c, err)
			return
		}
		data.Student = student
	} else {
		stats, _, err := h.service.Stats(c.Request.Context())
		if err != nil {
			middleware.Deny(c, err)
			return
		}
		data.Stats = stats
	}
	page := h.pages.New(c, "dashboard.title", "")
	page.Data = data
	h.pages.Render(c, "dashboard", page)
}

// Stats godoc
// @Summary Dashboard statistics
// @Description Totals, pending approvals, active sessions and recent activity. meta.cache_hit tells whether the figures came from cache.
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /dashboard/stats [get]
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, hit, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, stats, nil, middleware.ResponseMeta(c))
}
