package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-portal/internal/dto"
	"github.com/noah-isme/sma-portal/internal/middleware"
	"github.com/noah-isme/sma-portal/internal/models"
	"github.com/noah-isme/sma-portal/internal/service"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
)

const (
	settingsForm        = "settings"
	defaultActivityPage = 25
)

type settingsStore interface {
	List(ctx context.Context) ([]dto.ConfigurationItem, error)
	BulkUpdate(ctx context.Context, actor models.Actor, req dto.BulkUpdateConfigurationRequest) ([]dto.ConfigurationItem, error)
	ItemsPerPage(ctx context.Context) int
}

type accountModerator interface {
	ListPending(ctx context.Context, page, pageSize int) ([]models.User, *models.Pagination, error)
	Approve(ctx context.Context, actor models.Actor, id string) (*models.User, error)
	Reject(ctx context.Context, actor models.Actor, id string) (*models.User, error)
	Suspend(ctx context.Context, actor models.Actor, id string) (*models.User, error)
}

type backupManager interface {
	Create(ctx context.Context, actor models.Actor) (*models.Backup, error)
	List(ctx context.Context) ([]models.Backup, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
	Open(ctx context.Context, token string) (*models.Backup, *os.File, error)
}

type systemMonitor interface {
	Status(ctx context.Context) models.SystemStatus
}

type cacheClearer interface {
	Clear(ctx context.Context) ([]string, error)
}

type activityTrail interface {
	Record(ctx context.Context, actor models.Actor, entry service.ActivityEntry)
	List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, *models.Pagination, error)
}

type reportGenerator interface {
	Generate(ctx context.Context, actor models.Actor, reportType, rawFormat string, filter service.ReportFilter) (*service.ReportFile, error)
}

// SettingsHandlerParams groups the collaborators of the settings panel.
type SettingsHandlerParams struct {
	Settings settingsStore
	Users    accountModerator
	Backups  backupManager
	Monitor  systemMonitor
	Cache    cacheClearer
	Activity activityTrail
	Reports  reportGenerator
	Pages    *Pages
	Logger   *zap.Logger
}

// SettingsHandler serves the administrative settings panel.
type SettingsHandler struct {
	settings settingsStore
	users    accountModerator
	backups  backupManager
	monitor  systemMonitor
	cache    cacheClearer
	activity activityTrail
	reports  reportGenerator
	pages    *Pages
	logger   *zap.Logger
	actions  map[string]actionFunc
}

// NewSettingsHandler creates a new handler.
func NewSettingsHandler(params SettingsHandlerParams) *SettingsHandler {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &SettingsHandler{
		settings: params.Settings,
		users:    params.Users,
		backups:  params.Backups,
		monitor:  params.Monitor,
		cache:    params.Cache,
		activity: params.Activity,
		reports:  params.Reports,
		pages:    params.Pages,
		logger:   logger,
	}
	h.actions = map[string]actionFunc{
		"get_settings":       h.getSettings,
		"save_settings":      h.saveSettings,
		"list_pending_users": h.listPendingUsers,
		"approve_user":       h.moderate(h.users.Approve, "account approved"),
		"reject_user":        h.moderate(h.users.Reject, "account rejected"),
		"suspend_user":       h.moderate(h.users.Suspend, "account suspended"),
		"create_backup":      h.createBackup,
		"list_backups":       h.listBackups,
		"delete_backup":      h.deleteBackup,
		"system_status":      h.systemStatus,
		"clear_cache":        h.clearCache,
		"list_activity":      h.listActivity,
	}
	return h
}

type settingsPage struct {
	Settings []dto.ConfigurationItem
	Pending  []models.User
	Backups  []models.Backup
	Reports  []string
}

// Page renders the panel with settings, pending accounts and backups.
func (h *SettingsHandler) Page(c *gin.Context) {
	ctx := c.Request.Context()
	items, err := h.settings.List(ctx)
	if err != nil {
		middleware.Deny(c, err)
		return
	}
	data := settingsPage{Settings: items, Reports: []string{service.ReportTypeActivity, service.ReportTypeUsers}}
	if pending, _, err := h.users.ListPending(ctx, 1, h.settings.ItemsPerPage(ctx)); err != nil {
		h.logger.Warn("failed to list pending accounts", zap.Error(err))
	} else {
		data.Pending = pending
	}
	if backups, err := h.backups.List(ctx); err != nil {
		h.logger.Warn("failed to list backups", zap.Error(err))
	} else {
		data.Backups = backups
	}
	page := h.pages.New(c, "settings.title", settingsForm)
	page.Data = data
	h.pages.Render(c, "settings", page)
}

// Actions dispatches POST /settings.
func (h *SettingsHandler) Actions(c *gin.Context) {
	h.pages.Dispatch(c, h.actions)
}

// DownloadBackup streams a finished backup addressed by a signed token.
func (h *SettingsHandler) DownloadBackup(c *gin.Context) {
	backup, file, err := h.backups.Open(c.Request.Context(), c.Param("token"))
	if err != nil {
		middleware.Deny(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		middleware.Deny(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read backup"))
		return
	}
	c.DataFromReader(http.StatusOK, info.Size(), "application/gzip", file, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, backup.Filename),
		"Cache-Control":       "no-store",
	})
}

// Report exports the activity trail or the user list as CSV or PDF.
func (h *SettingsHandler) Report(c *gin.Context) {
	filter := service.ReportFilter{
		Action: c.Query("filter_action"),
		Status: c.Query("status"),
		Role:   c.Query("role"),
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse("2006-01-02", raw)
		if err != nil {
			middleware.Deny(c, appErrors.Field("since", "since must use the YYYY-MM-DD format"))
			return
		}
		filter.Since = &since
	}

	file, err := h.reports.Generate(c.Request.Context(), middleware.Actor(c), c.Param("type"), c.Query("format"), filter)
	if err != nil {
		middleware.Deny(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Header("X-Report-Rows", strconv.Itoa(file.Rows))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

func (h *SettingsHandler) getSettings(c *gin.Context, _ []byte) ActionResult {
	items, err := h.settings.List(c.Request.Context())
	if err != nil {
		return h.pages.Failed(c, err)
	}
	return OK("", items)
}

func (h *SettingsHandler) saveSettings(c *gin.Context, body []byte) ActionResult {
	var req dto.BulkUpdateConfigurationRequest
	if err := bind(body, &req); err != nil {
		return h.pages.Failed(c, err)
	}
	items, err := h.settings.BulkUpdate(c.Request.Context(), middleware.Actor(c), req)
	if err != nil {
		return h.pages.Failed(c, err)
	}
	return OK("settings saved", items)
}

func (h *SettingsHandler) listPendingUsers(c *gin.Context, body []byte) ActionResult {
	var req struct {
		Page     int `json:"page"`
		PageSize int `json:"page_size"`
	}
	if err := bind(body, &req); err != nil {
		return h.pages.Failed(c, err)
	}
	if req.PageSize <= 0 {
		req.PageSize = h.settings.ItemsPerPage(c.Request.Context())
	}
	users, pagination, err := h.users.ListPending(c.Request.Context(), req.Page, req.PageSize)
	if err != nil {
		return h.pages.Failed(c, err)
	}
	return OK("", gin.H{"users": users, "pagination": pagination})
}

type moderation func(ctx context.Context, actor models.Actor, id string) (*models.User, error)

func (h *SettingsHandler) moderate(apply moderation, message string) actionFunc {
	return func(c *gin.Context, body []byte) ActionResult {
		var req dto.UserActionRequest
		if err := bind(body, &req); err != nil {
			return h.pages.Failed(c, err)
		}
		if req.UserID == "" {
			return h.pages.Failed(c, appErrors.Field("user_id", "user_id is required"))
		}
		user, err := apply(c.Request.Context(), middleware.Actor(c), req.UserID)
		if err != nil {
			return h.pages.Failed(c, err)
		}
		return OK(message, user)
	}
}

func (h *SettingsHandler) createBackup(c *gin.Context, _ []byte) ActionResult {
	backup, err := h.backups.Create(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		return h.pages.Failed(c, err)
	}
	return OK("backup queued", backup)
}

func (h *SettingsHandler) listBackups(c *gin.Context, _ []byte) ActionResult {
	backups, err := h.backups.List(c.Request.Context())
	if err != nil {
		return h.pages.Failed(c, err)
	}
	return OK("", backups)
}

func (h *SettingsHandler) deleteBackup(c *gin.Context, body []byte) ActionResult {
	var req dto.BackupActionRequest
	if err := bind(body, &req); err != nil {
		return h.pages.Failed(c, err)
	}
	if req.BackupID == "" {
		return h.pages.Failed(c, appErrors.Field("backup_id", "backup_id is required"))
	}
	if err := h.backups.Delete(c.Request.Context(), middleware.Actor(c), req.BackupID); err != nil {
		return h.pages.Failed(c, err)
	}
	return OK("backup deleted", nil)
}

func (h *SettingsHandler) systemStatus(c *gin.Context, _ []byte) ActionResult {
	return OK("", h.monitor.Status(c.Request.Context()))
}

func (h *SettingsHandler) clearCache(c *gin.Context, _ []byte) ActionResult {
	patterns, err := h.cache.Clear(c.Request.Context())
	if err != nil {
		return h.pages.Failed(c, err)
	}
	h.activity.Record(c.Request.Context(), middleware.Actor(c), service.ActivityEntry{
		Action:   models.AuditActionCacheClear,
		Resource: "cache",
		New:      map[string]interface{}{"patterns": patterns},
	})
	return OK("cache cleared", gin.H{"patterns": patterns})
}

func (h *SettingsHandler) listActivity(c *gin.Context, body []byte) ActionResult {
	var req dto.ActivityListRequest
	if err := bind(body, &req); err != nil {
		return h.pages.Failed(c, err)
	}
	if req.PageSize <= 0 || req.PageSize > 200 {
		req.PageSize = defaultActivityPage
	}
	logs, pagination, err := h.activity.List(c.Request.Context(), models.AuditLogFilter{
		UserID:   req.UserID,
		Action:   req.Action,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		return h.pages.Failed(c, err)
	}
	return OK("", gin.H{"logs": logs, "pagination": pagination})
}
