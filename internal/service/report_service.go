package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-portal/internal/models"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
	"github.com/noah-isme/sma-portal/pkg/export"
	"github.com/noah-isme/sma-portal/pkg/storage"
)

// Report types served by the settings panel.
const (
	ReportTypeActivity = "activity"
	ReportTypeUsers    = "users"
)

const (
	reportPageSize = 500
	reportMaxRows  = 10000
)

type reportActivitySource interface {
	List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, int, error)
}

type reportUserSource interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
}

type reportArchive interface {
	Save(name string, data []byte) (storage.FileInfo, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ReportFilter narrows a report. Empty fields select everything.
type ReportFilter struct {
	Action string
	Status string
	Role   string
	Since  *time.Time
}

// ReportFile is a rendered export ready to be sent to the browser.
type ReportFile struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

// ReportServiceParams groups constructor dependencies.
type ReportServiceParams struct {
	Activity reportActivitySource
	Users    reportUserSource
	Archive  reportArchive
	Recorder activityRecorder
	Logger   *zap.Logger
}

// ReportService renders activity and user exports as CSV or PDF.
type ReportService struct {
	activity reportActivitySource
	users    reportUserSource
	archive  reportArchive
	recorder activityRecorder
	logger   *zap.Logger
	now      func() time.Time
}

// NewReportService constructs a ReportService.
func NewReportService(params ReportServiceParams) *ReportService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		activity: params.Activity,
		users:    params.Users,
		archive:  params.Archive,
		recorder: params.Recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Generate renders report reportType in the requested format and keeps a copy in the archive.
func (s *ReportService) Generate(ctx context.Context, actor models.Actor, reportType, rawFormat string, filter ReportFilter) (*ReportFile, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Field("format", "format must be csv or pdf")
	}

	var dataset export.Dataset
	switch reportType {
	case ReportTypeActivity:
		dataset, err = s.activityDataset(ctx, filter)
	case ReportTypeUsers:
		dataset, err = s.userDataset(ctx, filter)
	default:
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown report type")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build report")
	}

	data, err := export.Render(format, dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	file := &ReportFile{
		Filename:    fmt.Sprintf("%s_%s.%s", reportType, s.now().UTC().Format("20060102_150405"), format),
		ContentType: format.ContentType(),
		Data:        data,
		Rows:        len(dataset.Rows),
	}
	if s.archive != nil {
		if _, err := s.archive.Save(reportType+"/"+file.Filename, data); err != nil {
			s.logger.Warn("failed to archive report", zap.String("filename", file.Filename), zap.Error(err))
		}
	}
	s.recorder.Record(ctx, actor, ActivityEntry{
		Action:   models.AuditActionReportExport,
		Resource: "reports",
		New:      map[string]interface{}{"type": reportType, "format": format, "rows": file.Rows},
	})
	return file, nil
}

// Cleanup removes archived reports older than ttl.
func (s *ReportService) Cleanup(ttl time.Duration) (int, error) {
	if s.archive == nil {
		return 0, nil
	}
	removed, err := s.archive.CleanupOlderThan(ttl)
	return len(removed), err
}

func (s *ReportService) activityDataset(ctx context.Context, filter ReportFilter) (export.Dataset, error) {
	dataset := export.Dataset{
		Title:   "Activity log",
		Headers: []string{"time", "user_id", "action", "resource", "resource_id", "ip_address"},
	}
	query := models.AuditLogFilter{Action: filter.Action, Since: filter.Since, PageSize: reportPageSize}
	for page := 1; len(dataset.Rows) < reportMaxRows; page++ {
		query.Page = page
		logs, total, err := s.activity.List(ctx, query)
		if err != nil {
			return dataset, err
		}
		for _, log := range logs {
			dataset.Rows = append(dataset.Rows, map[string]string{
				"time":        log.CreatedAt.UTC().Format(time.RFC3339),
				"user_id":     deref(log.UserID),
				"action":      log.Action,
				"resource":    log.Resource,
				"resource_id": deref(log.ResourceID),
				"ip_address":  deref(log.IPAddress),
			})
		}
		if len(logs) < reportPageSize || page*reportPageSize >= total {
			break
		}
	}
	return dataset, nil
}

func (s *ReportService) userDataset(ctx context.Context, filter ReportFilter) (export.Dataset, error) {
	dataset := export.Dataset{
		Title:   "Users",
		Headers: []string{"username", "full_name", "email", "role", "status", "last_login", "created_at"},
	}
	query := models.UserFilter{PageSize: reportPageSize, SortBy: "created_at", SortOrder: "asc"}
	if filter.Status != "" {
		status := models.UserStatus(filter.Status)
		query.Status = &status
	}
	if filter.Role != "" {
		role := models.UserRole(filter.Role)
		query.Role = &role
	}
	for page := 1; len(dataset.Rows) < reportMaxRows; page++ {
		query.Page = page
		users, total, err := s.users.List(ctx, query)
		if err != nil {
			return dataset, err
		}
		for _, user := range users {
			lastLogin := ""
			if user.LastLogin != nil {
				lastLogin = user.LastLogin.UTC().Format(time.RFC3339)
			}
			dataset.Rows = append(dataset.Rows, map[string]string{
				"username":   user.Username,
				"full_name":  user.FullName,
				"email":      user.Email,
				"role":       string(user.Role),
				"status":     string(user.Status),
				"last_login": lastLogin,
				"created_at": user.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		if len(users) < reportPageSize || page*reportPageSize >= total {
			break
		}
	}
	return dataset, nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
