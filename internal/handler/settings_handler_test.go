package handler

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-portal/internal/dto"
	"github.com/noah-isme/sma-portal/internal/middleware"
	"github.com/noah-isme/sma-portal/internal/models"
	"github.com/noah-isme/sma-portal/internal/service"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
)

type settingsStoreStub struct{}

func (settingsStoreStub) List(context.Context) ([]dto.ConfigurationItem, error) {
	return []dto.ConfigurationItem{{Key: "site_name", Value: "SMA Negeri 1", Type: "string"}}, nil
}

func (settingsStoreStub) BulkUpdate(_ context.Context, _ models.Actor, req dto.BulkUpdateConfigurationRequest) ([]dto.ConfigurationItem, error) {
	items := make([]dto.ConfigurationItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, dto.ConfigurationItem{Key: item.Key, Value: item.Value})
	}
	return items, nil
}

func (settingsStoreStub) ItemsPerPage(context.Context) int { return 20 }

type moderatorStub struct {
	approved []string
}

func (m *moderatorStub) ListPending(context.Context, int, int) ([]models.User, *models.Pagination, error) {
	return []models.User{{ID: "p1", Status: models.UserStatusPending}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *moderatorStub) Approve(_ context.Context, actor models.Actor, id string) (*models.User, error) {
	if id == actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot moderate your own account")
	}
	m.approved = append(m.approved, id)
	return &models.User{ID: id, Status: models.UserStatusActive}, nil
}

func (m *moderatorStub) Reject(_ context.Context, _ models.Actor, id string) (*models.User, error) {
	return &models.User{ID: id, Status: models.UserStatusRejected}, nil
}

func (m *moderatorStub) Suspend(_ context.Context, _ models.Actor, id string) (*models.User, error) {
	return &models.User{ID: id, Status: models.UserStatusSuspended}, nil
}

type backupStub struct {
	path string
}

func (b *backupStub) Create(context.Context, models.Actor) (*models.Backup, error) {
	return &models.Backup{ID: "b1", Status: models.BackupStatusQueued}, nil
}

func (b *backupStub) List(context.Context) ([]models.Backup, error) {
	return []models.Backup{{ID: "b1", Filename: "backup.json.gz"}}, nil
}

func (b *backupStub) Delete(context.Context, models.Actor, string) error { return nil }

func (b *backupStub) Open(_ context.Context, token string) (*models.Backup, *os.File, error) {
	if token != "good" {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "download link is invalid or expired")
	}
	file, err := os.Open(b.path)
	if err != nil {
		return nil, nil, err
	}
	return &models.Backup{ID: "b1", Filename: "backup.json.gz"}, file, nil
}

type monitorStub struct{}

func (monitorStub) Status(context.Context) models.SystemStatus {
	return models.SystemStatus{GoVersion: "go1.21", ActiveUsers: 3}
}

type cacheStub struct {
	err error
}

func (s cacheStub) Clear(context.Context) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []string{"dash:*"}, nil
}

type trailStub struct {
	entries []service.ActivityEntry
	filter  models.AuditLogFilter
}

func (s *trailStub) Record(_ context.Context, _ models.Actor, entry service.ActivityEntry) {
	s.entries = append(s.entries, entry)
}

func (s *trailStub) List(_ context.Context, filter models.AuditLogFilter) ([]models.AuditLog, *models.Pagination, error) {
	s.filter = filter
	return nil, &models.Pagination{Page: 1, PageSize: filter.PageSize}, nil
}

type reportStub struct {
	filter service.ReportFilter
}

func (s *reportStub) Generate(_ context.Context, _ models.Actor, reportType, format string, filter service.ReportFilter) (*service.ReportFile, error) {
	if reportType != service.ReportTypeUsers {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown report type")
	}
	s.filter = filter
	return &service.ReportFile{Filename: "users.csv", ContentType: "text/csv", Data: []byte("id,name\n"), Rows: 7}, nil
}

type settingsFixture struct {
	*harness
	users   *moderatorStub
	trail   *trailStub
	reports *reportStub
	cache   *cacheStub
}

func newSettingsRoutes(t *testing.T) *settingsFixture {
	h := newHarness(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "backup.json.gz")
	require.NoError(t, os.WriteFile(path, []byte("gzip-bytes"), 0o600))

	f := &settingsFixture{harness: h, users: &moderatorStub{}, trail: &trailStub{}, reports: &reportStub{}, cache: &cacheStub{}}
	handler := NewSettingsHandler(SettingsHandlerParams{
		Settings: settingsStoreStub{},
		Users:    f.users,
		Backups:  &backupStub{path: path},
		Monitor:  monitorStub{},
		Cache:    f.cache,
		Activity: f.trail,
		Reports:  f.reports,
		Pages:    h.pages,
	})
	auth := h.signIn(&models.User{ID: "admin-1", Role: models.RoleAdmin})
	admin := h.engine.Group("/settings", auth, middleware.RequireAdmin())
	admin.GET("", handler.Page)
	admin.POST("", middleware.CSRF(settingsForm), handler.Actions)
	admin.GET("/backups/download/:token", handler.DownloadBackup)
	admin.GET("/reports/:type", handler.Report)
	return f
}

func TestSettingsPageRendersForAdmin(t *testing.T) {
	f := newSettingsRoutes(t)

	w := f.get("/settings")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "status=200")
}

func TestSettingsApproveUser(t *testing.T) {
	f := newSettingsRoutes(t)
	token := f.csrf(settingsForm)

	w := f.postJSONWithToken("/settings", token, gin.H{"action": "approve_user", "user_id": "p1"})

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeAction(t, w)
	assert.True(t, body.Success)
	assert.Equal(t, "account approved", body.Message)
	assert.Equal(t, []string{"p1"}, f.users.approved)
}

func TestSettingsModerationNeedsUserID(t *testing.T) {
	f := newSettingsRoutes(t)
	token := f.csrf(settingsForm)

	w := f.postJSONWithToken("/settings", token, gin.H{"action": "suspend_user"})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decodeAction(t, w).Errors, "user_id")
}

func TestSettingsSelfModerationRefused(t *testing.T) {
	f := newSettingsRoutes(t)
	token := f.csrf(settingsForm)

	w := f.postJSONWithToken("/settings", token, gin.H{"action": "approve_user", "user_id": "admin-1"})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, f.users.approved)
}

func TestSettingsClearCacheRecordsActivity(t *testing.T) {
	f := newSettingsRoutes(t)
	token := f.csrf(settingsForm)

	w := f.postJSONWithToken("/settings", token, gin.H{"action": "clear_cache"})

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.trail.entries, 1)
	assert.Equal(t, models.AuditActionCacheClear, f.trail.entries[0].Action)
}

func TestSettingsClearCacheFailureIsFatal(t *testing.T) {
	f := newSettingsRoutes(t)
	f.cache.err = appErrors.Wrap(assert.AnError, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "redis down")
	token := f.csrf(settingsForm)

	w := f.postJSONWithToken("/settings", token, gin.H{"action": "clear_cache"})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeAction(t, w)
	assert.False(t, body.Success)
	assert.NotContains(t, body.Message, "redis")
	assert.Empty(t, f.trail.entries)
}

func TestSettingsListActivityDefaultsPageSize(t *testing.T) {
	f := newSettingsRoutes(t)
	token := f.csrf(settingsForm)

	w := f.postJSONWithToken("/settings", token, gin.H{"action": "list_activity", "filter_action": "LOGIN"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, defaultActivityPage, f.trail.filter.PageSize)
	assert.Equal(t, "LOGIN", f.trail.filter.Action)
}

func TestSettingsSystemStatus(t *testing.T) {
	f := newSettingsRoutes(t)
	token := f.csrf(settingsForm)

	w := f.postJSONWithToken("/settings", token, gin.H{"action": "system_status"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"active_sessions":3`)
}

func TestSettingsReportHeaders(t *testing.T) {
	f := newSettingsRoutes(t)

	w := f.get("/settings/reports/users?format=csv&status=active&since=2024-01-31")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "7", w.Header().Get("X-Report-Rows"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="users.csv"`)
	assert.Equal(t, "active", f.reports.filter.Status)
	require.NotNil(t, f.reports.filter.Since)
	assert.Equal(t, 31, f.reports.filter.Since.Day())
}

func TestSettingsReportRejectsBadDate(t *testing.T) {
	f := newSettingsRoutes(t)

	w := f.get("/settings/reports/users?since=31-01-2024")

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSettingsDownloadBackup(t *testing.T) {
	f := newSettingsRoutes(t)

	w := f.get("/settings/backups/download/good")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/gzip", w.Header().Get("Content-Type"))
	assert.Equal(t, "gzip-bytes", w.Body.String())
}

func TestSettingsDownloadBackupBadToken(t *testing.T) {
	f := newSettingsRoutes(t)

	w := f.get("/settings/backups/download/forged")

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "download link is invalid or expired")
}

func TestSettingsRequiresAdmin(t *testing.T) {
	h := newHarness(t)
	handler := NewSettingsHandler(SettingsHandlerParams{Settings: settingsStoreStub{}, Users: &moderatorStub{}, Backups: &backupStub{}, Pages: h.pages})
	auth := h.signIn(&models.User{ID: "s1", Role: models.RoleStudent})
	h.engine.GET("/settings", auth, middleware.RequireAdmin(), handler.Page)

	w := h.get("/settings")

	assert.Equal(t, http.StatusForbidden, w.Code)
}
