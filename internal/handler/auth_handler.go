package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-portal/internal/dto"
	"github.com/noah-isme/sma-portal/internal/middleware"
	"github.com/noah-isme/sma-portal/internal/models"
	"github.com/noah-isme/sma-portal/internal/service"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
	"github.com/noah-isme/sma-portal/pkg/response"
	"github.com/noah-isme/sma-portal/pkg/session"
)

const loginForm = "login"

type authService interface {
	Authenticate(ctx context.Context, req dto.LoginRequest, ip, userAgent string) (*models.User, error)
	OpenSession(ctx context.Context, user *models.User, sessionKey, ip, userAgent string) (*models.UserSession, error)
	Logout(ctx context.Context, actor models.Actor) error
	IssueAPIToken(ctx context.Context, req dto.APITokenRequest, ip, userAgent string) (*dto.APITokenResponse, error)
}

type sessionManager interface {
	Regenerate(c *gin.Context) *session.Session
	Destroy(c *gin.Context)
}

type authMetrics interface {
	ObserveAuthEvent(event, outcome string)
}

// AuthHandler serves the login page, logout and the API token exchange.
type AuthHandler struct {
	service  authService
	sessions sessionManager
	pages    *Pages
	metrics  authMetrics
}

// NewAuthHandler creates a new handler. metrics may be nil.
func NewAuthHandler(svc authService, sessions sessionManager, pages *Pages, metrics authMetrics) *AuthHandler {
	return &AuthHandler{service: svc, sessions: sessions, pages: pages, metrics: metrics}
}

type loginPage struct {
	Identifier string
	Next       string
}

// LoginPage renders the sign-in form.
func (h *AuthHandler) LoginPage(c *gin.Context) {
	page := h.pages.New(c, "login.title", loginForm)
	if c.Query("logged_out") != "" {
		page.Success = h.pages.T(c, "login.logged_out")
	}
	page.Data = loginPage{Next: c.Query("next")}
	h.pages.Render(c, "login", page)
}

// Login checks the credentials and starts a fresh session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	_ = c.ShouldBind(&req)
	next := c.PostForm("next")
	ip, ua := c.ClientIP(), c.GetHeader("User-Agent")

	user, err := h.service.Authenticate(c.Request.Context(), req, ip, ua)
	if err != nil {
		h.observe(outcomeOf(err))
		page := h.pages.New(c, "login.title", loginForm)
		h.pages.Fail(c, &page, err)
		page.Data = loginPage{Identifier: req.Identifier, Next: next}
		h.pages.Render(c, "login", page)
		return
	}

	sess := h.sessions.Regenerate(c)
	record, err := h.service.OpenSession(c.Request.Context(), user, sess.Key(), ip, ua)
	if err != nil {
		h.observe(service.OutcomeFailure)
		page := h.pages.New(c, "login.title", loginForm)
		h.pages.Fail(c, &page, err)
		page.Data = loginPage{Identifier: req.Identifier, Next: next}
		h.pages.Render(c, "login", page)
		return
	}
	sess.SetUser(user.ID, record.ID)
	if user.Language != "" && h.pages.bundle.Supported(user.Language) {
		sess.SetLang(user.Language)
	}
	h.observe(service.OutcomeSuccess)
	c.Redirect(http.StatusSeeOther, safeRedirect(next, "/dashboard"))
}

// Logout ends the login record and the browser session.
func (h *AuthHandler) Logout(c *gin.Context) {
	if sess := session.From(c); sess != nil && sess.UserID() != "" {
		actor := models.Actor{
			UserID:    sess.UserID(),
			SessionID: sess.RecordID(),
			IP:        c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		}
		if err := h.service.Logout(c.Request.Context(), actor); err != nil {
			h.pages.logger.Warn("failed to revoke session record on logout", zap.Error(err))
		}
	}
	h.sessions.Destroy(c)
	c.Redirect(http.StatusSeeOther, middleware.LoginPath+"?logged_out=1")
}

// IssueToken godoc
// @Summary Exchange API credentials for an access token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body dto.APITokenRequest true "API credentials"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /auth/token [post]
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req dto.APITokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid token payload"))
		return
	}

	res, err := h.service.IssueAPIToken(c.Request.Context(), req, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		h.observeEvent("api_token", outcomeOf(err))
		response.Error(c, err)
		return
	}
	h.observeEvent("api_token", service.OutcomeSuccess)
	response.JSON(c, http.StatusOK, res, nil)
}

// Me godoc
// @Summary Current API principal
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, models.UserInfo{
		ID:       claims.UserID,
		Email:    claims.Email,
		FullName: claims.FullName,
		Role:     claims.Role,
	}, nil)
}

func (h *AuthHandler) observe(outcome string) {
	h.observeEvent("login", outcome)
}

func (h *AuthHandler) observeEvent(event, outcome string) {
	if h.metrics != nil {
		h.metrics.ObserveAuthEvent(event, outcome)
	}
}

func outcomeOf(err error) string {
	if appErrors.FromError(err).Status == http.StatusTooManyRequests {
		return service.OutcomeBlocked
	}
	return service.OutcomeFailure
}
