package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-portal/internal/models"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
)

type auditRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, int, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ActivityEntry describes one event for the activity trail.
type ActivityEntry struct {
	Action     string
	Resource   string
	ResourceID string
	Old        interface{}
	New        interface{}
}

// ActivityService is the append-only activity logger.
type ActivityService struct {
	repo   auditRepository
	logger *zap.Logger
}

// NewActivityService constructs an ActivityService.
func NewActivityService(repo auditRepository, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{repo: repo, logger: logger}
}

// Record appends an entry. Failures are logged and never reach the caller.
func (s *ActivityService) Record(ctx context.Context, actor models.Actor, entry ActivityEntry) {
	if s == nil || s.repo == nil {
		return
	}
	log := &models.AuditLog{
		Action:    entry.Action,
		Resource:  entry.Resource,
		OldValues: marshalActivity(entry.Old),
		NewValues: marshalActivity(entry.New),
		IPAddress: optionalString(actor.IP),
		UserAgent: optionalString(actor.UserAgent),
	}
	if actor.UserID != "" {
		id := actor.UserID
		log.UserID = &id
	}
	log.ResourceID = optionalString(entry.ResourceID)
	if err := s.repo.Create(ctx, log); err != nil {
		s.logger.Warn("failed to record activity", zap.String("action", entry.Action), zap.Error(err))
	}
}

// List returns a page of activity entries.
func (s *ActivityService) List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, *models.Pagination, error) {
	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activity")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	return logs, &models.Pagination{Page: page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Recent returns the latest limit entries of userID, or of everyone when userID is empty.
func (s *ActivityService) Recent(ctx context.Context, userID string, limit int) ([]models.AuditLog, error) {
	logs, _, err := s.repo.List(ctx, models.AuditLogFilter{UserID: userID, Page: 1, PageSize: limit})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent activity")
	}
	return logs, nil
}

func marshalActivity(v interface{}) []byte {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// Purge deletes entries older than retention. A zero retention keeps everything.
func (s *ActivityService) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	n, err := s.repo.PurgeBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge activity")
	}
	if n > 0 {
		s.logger.Info("activity entries purged", zap.Int64("count", n))
	}
	return n, nil
}
