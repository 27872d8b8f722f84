package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-portal/internal/models"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
)

// DashboardStatsKey caches the staff dashboard summary. DashboardCachePattern matches every dashboard entry.
const (
	DashboardStatsKey     = "dash:stats"
	DashboardCachePattern = "dash:*"
	recentDashboardItems  = 10
	registrationWindow    = 7 * 24 * time.Hour
)

type dashboardRepository interface {
	CountUsersByRole(ctx context.Context) (map[models.UserRole]int, error)
	CountUsersByStatus(ctx context.Context) (map[models.UserStatus]int, error)
	CountRegistrationsSince(ctx context.Context, since time.Time) (int, error)
	StudentsByGrade(ctx context.Context) ([]models.GradeCount, error)
}

type activeSessionCounter interface {
	CountActive(ctx context.Context, now time.Time) (int, error)
}

type recentActivityReader interface {
	Recent(ctx context.Context, userID string, limit int) ([]models.AuditLog, error)
}

type dashboardUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindStudentByUserID(ctx context.Context, userID string) (*models.Student, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardService composes the role dependent dashboard payloads.
type DashboardService struct {
	repo     dashboardRepository
	sessions activeSessionCounter
	activity recentActivityReader
	users    dashboardUserRepository
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
	cfg      DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Repo     dashboardRepository
	Sessions activeSessionCounter
	Activity recentActivityReader
	Users    dashboardUserRepository
	Cache    *CacheService
	Metrics  *MetricsService
	Logger   *zap.Logger
	Config   DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		repo:     params.Repo,
		sessions: params.Sessions,
		activity: params.Activity,
		users:    params.Users,
		cache:    params.Cache,
		metrics:  params.Metrics,
		logger:   logger,
		now:      time.Now,
		cfg:      cfg,
	}
}

// Stats returns the staff summary and reports whether it came from cache.
func (s *DashboardService) Stats(ctx context.Context) (*models.DashboardStats, bool, error) {
	if cached, hit := s.tryCache(ctx, DashboardStatsKey); hit {
		return cached, true, nil
	}

	start := s.now()
	stats, err := s.composeStats(ctx)
	if err != nil {
		return nil, false, err
	}
	s.metrics.ObserveDBQuery("dashboard.stats", s.now().Sub(start))
	s.persistCache(ctx, DashboardStatsKey, stats)
	return stats, false, nil
}

// Student returns the dashboard of a student account.
func (s *DashboardService) Student(ctx context.Context, userID string) (*models.StudentDashboard, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "user not found")
	}
	view := &models.StudentDashboard{LastLogin: user.LastLogin, RecentActivity: []models.AuditLog{}}
	if student, err := s.users.FindStudentByUserID(ctx, userID); err == nil {
		view.Student = student
	} else {
		s.logger.Debug("student record missing", zap.String("user_id", userID), zap.Error(err))
	}
	if s.activity != nil {
		logs, err := s.activity.Recent(ctx, userID, recentDashboardItems)
		if err != nil {
			return nil, err
		}
		view.RecentActivity = logs
	}
	return view, nil
}

// Invalidate drops every cached dashboard entry.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, DashboardCachePattern); err != nil {
		s.logger.Warn("dashboard cache invalidate failed", zap.Error(err))
	}
}

// tryCache treats cache errors as misses; the dashboard is always computable from the database.
func (s *DashboardService) tryCache(ctx context.Context, key string) (*models.DashboardStats, bool) {
	if s.cache == nil {
		return nil, false
	}
	var cached models.DashboardStats
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil || !hit {
		return nil, false
	}
	return &cached, true
}

func (s *DashboardService) persistCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *DashboardService) composeStats(ctx context.Context) (*models.DashboardStats, error) {
	now := s.now().UTC()

	roles, err := s.repo.CountUsersByRole(ctx)
	if err != nil {
		return nil, s.internal(err)
	}
	statuses, err := s.repo.CountUsersByStatus(ctx)
	if err != nil {
		return nil, s.internal(err)
	}
	recent, err := s.repo.CountRegistrationsSince(ctx, now.Add(-registrationWindow))
	if err != nil {
		return nil, s.internal(err)
	}
	grades, err := s.repo.StudentsByGrade(ctx)
	if err != nil {
		return nil, s.internal(err)
	}

	stats := &models.DashboardStats{
		TotalStudents:       roles[models.RoleStudent],
		TotalTeachers:       roles[models.RoleTeacher],
		TotalStaff:          roles[models.RoleStaff],
		TotalAdmins:         roles[models.RoleAdmin] + roles[models.RoleSuperAdmin],
		UsersByStatus:       statuses,
		PendingApprovals:    statuses[models.UserStatusPending],
		RecentRegistrations: recent,
		StudentsByGrade:     grades,
		RecentActivity:      []models.AuditLog{},
		GeneratedAt:         now,
	}
	if stats.StudentsByGrade == nil {
		stats.StudentsByGrade = []models.GradeCount{}
	}

	if s.sessions != nil {
		active, err := s.sessions.CountActive(ctx, now)
		if err != nil {
			s.logger.Warn("active session count failed", zap.Error(err))
		}
		stats.ActiveSessions = active
	}
	if s.activity != nil {
		logs, err := s.activity.Recent(ctx, "", recentDashboardItems)
		if err != nil {
			s.logger.Warn("recent activity failed", zap.Error(err))
		} else {
			stats.RecentActivity = logs
		}
	}
	return stats, nil
}

func (s *DashboardService) internal(err error) error {
	s.logger.Error("dashboard query failed", zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dashboard")
}
