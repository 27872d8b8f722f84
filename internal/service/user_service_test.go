package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-portal/internal/models"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
)

type dashboardInvalidatorStub struct{ calls int }

func (d *dashboardInvalidatorStub) Invalidate(context.Context) { d.calls++ }

type userAdminFixture struct {
	svc       *UserService
	users     *userRepoStub
	sessions  *sessionRevokerStub
	notifier  *notifierStub
	activity  *activityStub
	dashboard *dashboardInvalidatorStub
}

func newUserAdminFixture(t *testing.T, accounts ...*models.User) userAdminFixture {
	t.Helper()
	f := userAdminFixture{
		users:     newUserRepoStub(nil),
		sessions:  &sessionRevokerStub{keys: []string{"state-1"}},
		notifier:  &notifierStub{},
		activity:  &activityStub{},
		dashboard: &dashboardInvalidatorStub{},
	}
	for _, account := range accounts {
		f.users.users[account.ID] = account
	}
	f.svc = NewUserService(UserServiceParams{
		Users:        f.users,
		Sessions:     f.sessions,
		SessionState: f.sessions,
		Notifier:     f.notifier,
		Activity:     f.activity,
		Dashboard:    f.dashboard,
	})
	return f
}

func pendingStudent() *models.User {
	return &models.User{ID: "u-pending", Username: "budi", Email: "budi@example.com", Role: models.RoleStudent, Status: models.UserStatusPending}
}

func TestApprovePendingUser(t *testing.T) {
	f := newUserAdminFixture(t, pendingStudent())

	user, err := f.svc.Approve(context.Background(), adminActor, "u-pending")
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusActive, user.Status)
	assert.Equal(t, models.UserStatusActive, f.users.statuses["u-pending"])
	assert.Equal(t, []string{NotifyAccountApproved}, f.notifier.sent)
	assert.Equal(t, []string{models.AuditActionUserApprove}, f.activity.actions())
	assert.Equal(t, 1, f.dashboard.calls)
}

func TestRejectPendingUser(t *testing.T) {
	f := newUserAdminFixture(t, pendingStudent())

	user, err := f.svc.Reject(context.Background(), adminActor, "u-pending")
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusRejected, user.Status)
	assert.Equal(t, []string{NotifyAccountRejected}, f.notifier.sent)
	assert.Equal(t, []string{models.AuditActionUserReject}, f.activity.actions())
}

func TestSuspendRevokesSessions(t *testing.T) {
	active := pendingStudent()
	active.Status = models.UserStatusActive
	f := newUserAdminFixture(t, active)

	_, err := f.svc.Suspend(context.Background(), adminActor, active.ID)
	require.NoError(t, err)
	assert.Equal(t, active.ID, f.sessions.userID)
	assert.Equal(t, []string{"state-1"}, f.sessions.dropped)
	assert.Empty(t, f.notifier.sent)
}

func TestModerationRejectsInvalidTransitions(t *testing.T) {
	f := newUserAdminFixture(t, pendingStudent())

	_, err := f.svc.Suspend(context.Background(), adminActor, "u-pending")
	assert.ErrorIs(t, err, appErrors.ErrInvalidStep)

	f.users.users["u-pending"].Status = models.UserStatusRejected
	_, err = f.svc.Approve(context.Background(), adminActor, "u-pending")
	assert.ErrorIs(t, err, appErrors.ErrInvalidStep)
	assert.Empty(t, f.activity.actions())
	assert.Zero(t, f.dashboard.calls)
}

func TestModerationGuards(t *testing.T) {
	admin := &models.User{ID: "admin-2", Role: models.RoleAdmin, Status: models.UserStatusActive}
	f := newUserAdminFixture(t, admin, &models.User{ID: "admin-1", Role: models.RoleAdmin, Status: models.UserStatusActive})

	_, err := f.svc.Suspend(context.Background(), adminActor, "admin-1")
	assert.ErrorIs(t, err, ErrSelfModeration)

	_, err = f.svc.Suspend(context.Background(), adminActor, "admin-2")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	super := models.Actor{UserID: "root", Role: models.RoleSuperAdmin}
	_, err = f.svc.Suspend(context.Background(), super, "admin-2")
	require.NoError(t, err)

	_, err = f.svc.Approve(context.Background(), adminActor, "ghost")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestListPending(t *testing.T) {
	other := &models.User{ID: "u-active", Status: models.UserStatusActive}
	f := newUserAdminFixture(t, pendingStudent(), other)

	users, page, err := f.svc.ListPending(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "u-pending", users[0].ID)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	require.NotNil(t, f.users.listed.Status)
	assert.Equal(t, models.UserStatusPending, *f.users.listed.Status)
}
