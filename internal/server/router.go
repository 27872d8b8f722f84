// Package server assembles the gin engine: global middleware, the HTML pages,
// their AJAX endpoints and the JSON API.
package server

import (
	"context"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-portal/api/swagger"
	"github.com/noah-isme/sma-portal/internal/handler"
	"github.com/noah-isme/sma-portal/internal/middleware"
	"github.com/noah-isme/sma-portal/internal/models"
	"github.com/noah-isme/sma-portal/internal/service"
	"github.com/noah-isme/sma-portal/pkg/config"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
	"github.com/noah-isme/sma-portal/pkg/i18n"
	"github.com/noah-isme/sma-portal/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-portal/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-portal/pkg/middleware/requestid"
	"github.com/noah-isme/sma-portal/pkg/session"
	"github.com/noah-isme/sma-portal/pkg/view"
)

type sessionResolver interface {
	ResolveSession(ctx context.Context, userID, recordID string) (*models.User, *models.UserSession, error)
}

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

type maintenanceSwitch interface {
	MaintenanceMode(ctx context.Context) bool
}

type activityRecorder interface {
	Record(ctx context.Context, actor models.Actor, entry service.ActivityEntry)
}

// Handlers are the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Auth         *handler.AuthHandler
	Registration *handler.RegistrationHandler
	Recovery     *handler.RecoveryHandler
	Profile      *handler.ProfileHandler
	Dashboard    *handler.DashboardHandler
	Settings     *handler.SettingsHandler
	Language     *handler.LanguageHandler
	Metrics      *handler.MetricsHandler
}

// Dependencies groups what the router needs besides the handlers.
type Dependencies struct {
	Config    *config.Config
	Logger    *zap.Logger
	Renderer  render.HTMLRender
	Static    fs.FS
	Sessions  *session.Manager
	Languages *i18n.Bundle
	Metrics   *service.MetricsService
	Resolver  sessionResolver
	Tokens    tokenValidator
	Settings  maintenanceSwitch
	Activity  activityRecorder
	Handlers  Handlers
}

// NewRouter builds the engine.
func NewRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	h := deps.Handlers

	r := gin.New()
	r.HTMLRender = deps.Renderer
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	if deps.Static != nil {
		r.StaticFS("/static", http.FS(deps.Static))
	}

	registerAPI(r.Group(cfg.APIPrefix, middleware.WithResponseMeta()), deps)

	web := r.Group("", deps.Sessions.Middleware(), middleware.Language(deps.Languages))
	web.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/dashboard")
	})
	web.POST("/change-language", h.Language.Change)
	web.GET("/logout", h.Auth.Logout)

	guest := web.Group("", middleware.GuestOnly())
	guest.GET("/login", h.Auth.LoginPage)
	guest.POST("/login", middleware.CSRF("login"), h.Auth.Login)
	guest.GET("/register", h.Registration.Page)
	guest.POST("/register", middleware.CSRF("register"), h.Registration.Submit)
	guest.GET("/forgot-password", h.Recovery.Page)
	guest.POST("/forgot-password", middleware.CSRF("recovery"), h.Recovery.Submit)
	guest.GET("/forgot-password/verify", h.Recovery.VerifyLink)

	member := web.Group("",
		middleware.RequireLogin(deps.Resolver, cfg.Session.TouchInterval),
		middleware.Maintenance(deps.Settings),
	)
	member.GET("/dashboard", h.Dashboard.Page)
	member.GET("/profile", h.Profile.Page)
	member.POST("/profile/actions", view.ForceJSON(), middleware.CSRF("profile"), h.Profile.Actions)

	admin := member.Group("/settings", middleware.RequireAdmin())
	admin.GET("", h.Settings.Page)
	admin.POST("", view.ForceJSON(), middleware.CSRF("settings"), h.Settings.Actions)
	admin.GET("/backups/download/:token",
		middleware.Audit(deps.Activity, models.AuditActionBackupDownload, "backup", ""),
		h.Settings.DownloadBackup,
	)
	admin.GET("/reports/:type", h.Settings.Report)

	r.NoRoute(func(c *gin.Context) {
		middleware.Deny(c, appErrors.Clone(appErrors.ErrNotFound, "page not found"))
	})

	return r
}

func registerAPI(api *gin.RouterGroup, deps Dependencies) {
	h := deps.Handlers

	api.POST("/auth/token", h.Auth.IssueToken)

	secured := api.Group("", middleware.JWT(deps.Tokens))
	secured.GET("/me", h.Auth.Me)
	secured.GET("/dashboard/stats",
		middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleStaff, models.RoleTeacher),
		h.Dashboard.Stats,
	)
}
