package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-portal/internal/dto"
	"github.com/noah-isme/sma-portal/internal/models"
	"github.com/noah-isme/sma-portal/internal/repository"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
	"github.com/noah-isme/sma-portal/pkg/i18n"
)

type notifierStub struct {
	sent []string
	to   []*models.User
	data []NotificationData
}

func (n *notifierStub) Notify(_ context.Context, user *models.User, name string, data NotificationData) {
	n.sent = append(n.sent, name)
	n.to = append(n.to, user)
	n.data = append(n.data, data)
}

type registrationFixture struct {
	svc      *RegistrationService
	users    *userRepoStub
	activity *activityStub
	notifier *notifierStub
}

func newRegistrationFixture(t *testing.T, settings settingsStub) registrationFixture {
	t.Helper()
	bundle, err := i18n.New("en", []string{"en", "id"})
	require.NoError(t, err)

	f := registrationFixture{users: newUserRepoStub(nil), activity: &activityStub{}, notifier: &notifierStub{}}
	f.svc = NewRegistrationService(RegistrationServiceParams{
		Users:     f.users,
		Settings:  settings,
		Limiter:   NewRateLimiter(repository.NewMemoryRateLimitRepository(), 10, time.Hour, nil),
		Notifier:  f.notifier,
		Activity:  f.activity,
		Validator: bundle.Validator(),
		Logger:    zap.NewNop(),
	})
	f.svc.now = func() time.Time { return time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC) }
	return f
}

func validRegistration() dto.RegisterRequest {
	return dto.RegisterRequest{
		Username:        "budi_s",
		Email:           " Budi@Example.com ",
		Password:        "Kopi#Tubruk9",
		ConfirmPassword: "Kopi#Tubruk9",
		FullName:        "Budi Santoso",
		Phone:           "+62 812 3456 7890",
		DateOfBirth:     "2008-03-14",
		Gender:          "male",
		Address:         "Jl. Merdeka 1, Bandung",
		GradeLevel:      10,
		GuardianName:    "Sri Santoso",
		GuardianPhone:   "0812-1111-2222",
		AcceptTerms:     true,
	}
}

func TestRegisterCreatesPendingStudent(t *testing.T) {
	f := newRegistrationFixture(t, settingsStub{registration: true})

	user, student, err := f.svc.Register(context.Background(), validRegistration(), "10.0.0.1", "test")
	require.NoError(t, err)

	assert.Equal(t, models.RoleStudent, user.Role)
	assert.Equal(t, models.UserStatusPending, user.Status)
	assert.Equal(t, "budi@example.com", user.Email)
	assert.Equal(t, "id", user.Language)
	assert.NotEqual(t, "Kopi#Tubruk9", user.PasswordHash)
	assert.Equal(t, 10, student.GradeLevel)
	assert.Equal(t, user.ID, student.UserID)
	assert.Equal(t, []string{models.AuditActionRegister}, f.activity.actions())
	assert.Equal(t, []string{NotifyRegistrationReceived}, f.notifier.sent)
}

func TestRegisterDuplicateUsernameAndEmail(t *testing.T) {
	f := newRegistrationFixture(t, settingsStub{registration: true})
	f.users.taken["username:budi_s"] = true
	f.users.taken["email:budi@example.com"] = true

	_, _, err := f.svc.Register(context.Background(), validRegistration(), "ip", "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Fields, "username")
	assert.Contains(t, appErr.Fields, "email")
	assert.Nil(t, f.users.created)
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	f := newRegistrationFixture(t, settingsStub{registration: true})
	req := validRegistration()
	req.Password, req.ConfirmPassword = "kopitubruk9#", "kopitubruk9#"

	_, _, err := f.svc.Register(context.Background(), req, "ip", "")
	require.Error(t, err)
	assert.Equal(t, string(RuleUppercase), appErrors.FromError(err).Fields["rule"])
	assert.Nil(t, f.users.created)
}

func TestRegisterValidationErrors(t *testing.T) {
	f := newRegistrationFixture(t, settingsStub{registration: true})
	req := validRegistration()
	req.Username = "no spaces"
	req.ConfirmPassword = "different"
	req.GradeLevel = 9
	req.AcceptTerms = false

	_, _, err := f.svc.Register(context.Background(), req, "ip", "")
	require.ErrorIs(t, err, appErrors.ErrValidation)

	bundle, _ := i18n.New("en", []string{"en"})
	fields := bundle.ValidationErrors("en", err)
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "confirm_password")
	assert.Contains(t, fields, "grade_level")
	assert.Contains(t, fields, "accept_terms")
}

func TestRegisterAgeBounds(t *testing.T) {
	f := newRegistrationFixture(t, settingsStub{registration: true})
	req := validRegistration()
	req.DateOfBirth = "2016-01-01"

	_, _, err := f.svc.Register(context.Background(), req, "ip", "")
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Fields, "date_of_birth")
}

func TestRegisterClosed(t *testing.T) {
	f := newRegistrationFixture(t, settingsStub{registration: false})

	_, _, err := f.svc.Register(context.Background(), validRegistration(), "ip", "")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestRegisterRollbackIsGeneric(t *testing.T) {
	f := newRegistrationFixture(t, settingsStub{registration: true})
	f.users.createErr = assert.AnError

	_, _, err := f.svc.Register(context.Background(), validRegistration(), "ip", "")
	require.ErrorIs(t, err, appErrors.ErrInternal)
	assert.Empty(t, f.activity.actions())
	assert.Empty(t, f.notifier.sent)
}

func TestRegisterLostUniquenessRaceIsFieldError(t *testing.T) {
	f := newRegistrationFixture(t, settingsStub{registration: true})
	f.users.createErr = appErrors.WithFields(appErrors.ErrConflict, map[string]string{"email": "email is already registered"})

	_, _, err := f.svc.Register(context.Background(), validRegistration(), "ip", "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "email is already registered", appErr.Fields["email"])
	assert.Empty(t, f.activity.actions())
}

func TestRegisterEleventhAttemptIsThrottled(t *testing.T) {
	f := newRegistrationFixture(t, settingsStub{registration: true})
	f.users.taken["username:budi_s"] = true

	for i := 0; i < 10; i++ {
		_, _, err := f.svc.Register(context.Background(), validRegistration(), "10.1.1.1", "")
		require.ErrorIs(t, err, appErrors.ErrConflict)
	}
	_, _, err := f.svc.Register(context.Background(), validRegistration(), "10.1.1.1", "")
	assert.ErrorIs(t, err, appErrors.ErrTooManyAttempts)
}

func TestAgeOn(t *testing.T) {
	now := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 16, ageOn(time.Date(2008, 3, 14, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, 15, ageOn(time.Date(2008, 3, 15, 0, 0, 0, 0, time.UTC), now))
}
