package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-portal/internal/models"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateStatus(ctx context.Context, id string, status models.UserStatus) error
}

type dashboardInvalidator interface {
	Invalidate(ctx context.Context)
}

// Errors returned by account moderation.
var (
	ErrUserNotFound     = appErrors.Clone(appErrors.ErrNotFound, "user not found")
	ErrSelfModeration   = appErrors.Clone(appErrors.ErrForbidden, "you cannot change the status of your own account")
	ErrProtectedAccount = appErrors.Clone(appErrors.ErrForbidden, "only a super administrator can change this account")
	ErrStatusTransition = appErrors.Clone(appErrors.ErrInvalidStep, "the account is not in a state that allows this change")
)

// statusTransitions lists, per target status, the statuses an account may move from.
var statusTransitions = map[models.UserStatus][]models.UserStatus{
	models.UserStatusActive:    {models.UserStatusPending, models.UserStatusSuspended},
	models.UserStatusRejected:  {models.UserStatusPending},
	models.UserStatusSuspended: {models.UserStatusActive},
}

// UserServiceParams groups constructor dependencies.
type UserServiceParams struct {
	Users        userRepository
	Sessions     userSessionRevoker
	SessionState sessionStateRevoker
	Notifier     notifier
	Activity     activityRecorder
	Dashboard    dashboardInvalidator
	Logger       *zap.Logger
}

// UserService moderates accounts from the settings panel.
type UserService struct {
	repo      userRepository
	sessions  userSessionRevoker
	state     sessionStateRevoker
	notifier  notifier
	activity  activityRecorder
	dashboard dashboardInvalidator
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(params UserServiceParams) *UserService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		repo:      params.Users,
		sessions:  params.Sessions,
		state:     params.SessionState,
		notifier:  params.Notifier,
		activity:  params.Activity,
		dashboard: params.Dashboard,
		logger:    logger,
	}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// ListPending returns the accounts awaiting approval, oldest first.
func (s *UserService) ListPending(ctx context.Context, page, pageSize int) ([]models.User, *models.Pagination, error) {
	status := models.UserStatusPending
	return s.List(ctx, models.UserFilter{Status: &status, Page: page, PageSize: pageSize, SortBy: "created_at", SortOrder: "asc"})
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Approve activates a pending or suspended account and emails its owner.
func (s *UserService) Approve(ctx context.Context, actor models.Actor, id string) (*models.User, error) {
	user, err := s.transition(ctx, actor, id, models.UserStatusActive, models.AuditActionUserApprove)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, user, NotifyAccountApproved, NotificationData{})
	return user, nil
}

// Reject closes a pending registration and emails its owner.
func (s *UserService) Reject(ctx context.Context, actor models.Actor, id string) (*models.User, error) {
	user, err := s.transition(ctx, actor, id, models.UserStatusRejected, models.AuditActionUserReject)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, user, NotifyAccountRejected, NotificationData{})
	return user, nil
}

// Suspend blocks an active account and ends all of its sessions.
func (s *UserService) Suspend(ctx context.Context, actor models.Actor, id string) (*models.User, error) {
	user, err := s.transition(ctx, actor, id, models.UserStatusSuspended, models.AuditActionUserSuspend)
	if err != nil {
		return nil, err
	}
	if s.sessions != nil {
		keys, err := s.sessions.RevokeAllForUser(ctx, user.ID, "")
		if err != nil {
			s.logger.Warn("failed to revoke sessions of suspended user", zap.String("user_id", user.ID), zap.Error(err))
		}
		dropSessionState(ctx, s.state, keys, s.logger)
	}
	return user, nil
}

func (s *UserService) transition(ctx context.Context, actor models.Actor, id string, target models.UserStatus, action string) (*models.User, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user_id is required")
	}
	if id == actor.UserID {
		return nil, ErrSelfModeration
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role.IsAdministrative() && actor.Role != models.RoleSuperAdmin {
		return nil, ErrProtectedAccount
	}
	if !transitionAllowed(user.Status, target) {
		return nil, ErrStatusTransition
	}

	previous := user.Status
	if err := s.repo.UpdateStatus(ctx, user.ID, target); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user status")
	}
	user.Status = target

	s.activity.Record(ctx, actor, ActivityEntry{
		Action:     action,
		Resource:   "users",
		ResourceID: user.ID,
		Old:        map[string]interface{}{"status": previous},
		New:        map[string]interface{}{"status": target},
	})
	if s.dashboard != nil {
		s.dashboard.Invalidate(ctx)
	}
	s.logger.Info("user status changed",
		zap.String("user_id", user.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(target)),
		zap.String("by", actor.UserID),
	)
	return user, nil
}

func transitionAllowed(from, to models.UserStatus) bool {
	for _, allowed := range statusTransitions[to] {
		if allowed == from {
			return true
		}
	}
	return false
}
