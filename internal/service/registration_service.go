package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-portal/internal/dto"
	"github.com/noah-isme/sma-portal/internal/models"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
)

// Accepted student age range at registration time.
const (
	MinStudentAge = 10
	MaxStudentAge = 25
)

type registrationRepository interface {
	UsernameTaken(ctx context.Context, username, excludeID string) (bool, error)
	EmailTaken(ctx context.Context, email, excludeID string) (bool, error)
	CreateStudentAccount(ctx context.Context, user *models.User, student *models.Student) error
}

type registrationSettings interface {
	RegistrationEnabled(ctx context.Context) bool
	String(ctx context.Context, key string) string
}

type notifier interface {
	Notify(ctx context.Context, user *models.User, name string, data NotificationData)
}

// ErrRegistrationClosed is returned while self-registration is switched off.
var ErrRegistrationClosed = appErrors.Clone(appErrors.ErrForbidden, "registration is currently closed")

// RegistrationService handles student self-registration.
type RegistrationService struct {
	users     registrationRepository
	settings  registrationSettings
	limiter   *RateLimiter
	policy    *PasswordPolicy
	notifier  notifier
	activity  activityRecorder
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// RegistrationServiceParams groups constructor dependencies.
type RegistrationServiceParams struct {
	Users     registrationRepository
	Settings  registrationSettings
	Limiter   *RateLimiter
	Policy    *PasswordPolicy
	Notifier  notifier
	Activity  activityRecorder
	Validator *validator.Validate
	Logger    *zap.Logger
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(params RegistrationServiceParams) *RegistrationService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	policy := params.Policy
	if policy == nil {
		policy = NewPasswordPolicy(nil, 0, logger)
	}
	return &RegistrationService{
		users:     params.Users,
		settings:  params.Settings,
		limiter:   params.Limiter,
		policy:    policy,
		notifier:  params.Notifier,
		activity:  params.Activity,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Enabled reports whether the registration form is open.
func (s *RegistrationService) Enabled(ctx context.Context) bool {
	return s.settings == nil || s.settings.RegistrationEnabled(ctx)
}

// Register creates a pending STUDENT account together with its student record.
func (s *RegistrationService) Register(ctx context.Context, req dto.RegisterRequest, ip, userAgent string) (*models.User, *models.Student, error) {
	if !s.Enabled(ctx) {
		return nil, nil, ErrRegistrationClosed
	}
	if err := s.limiter.Allow(ctx, ScopeRegistration, ip); err != nil {
		return nil, nil, err
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}

	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		return nil, nil, appErrors.Field("date_of_birth", "date of birth must use the YYYY-MM-DD format")
	}
	if age := ageOn(dob, s.now()); age < MinStudentAge || age > MaxStudentAge {
		return nil, nil, appErrors.Field("date_of_birth", "students must be between 10 and 25 years old")
	}

	if err := s.policy.Validate(ctx, "", "password", req.Password, req.Username, req.Email, req.FullName); err != nil {
		return nil, nil, err
	}

	if err := s.ensureUnique(ctx, req.Username, req.Email); err != nil {
		return nil, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to secure password")
	}

	lang := "en"
	if s.settings != nil {
		if configured := s.settings.String(ctx, SettingDefaultLanguage); configured != "" {
			lang = configured
		}
	}
	user := &models.User{
		Username:           req.Username,
		Email:              req.Email,
		PasswordHash:       string(hash),
		FullName:           req.FullName,
		Phone:              strings.TrimSpace(req.Phone),
		Role:               models.RoleStudent,
		Status:             models.UserStatusPending,
		Theme:              models.ThemeLight,
		Language:           lang,
		EmailNotifications: true,
	}
	student := &models.Student{
		DateOfBirth:   dob,
		Gender:        req.Gender,
		Address:       strings.TrimSpace(req.Address),
		GradeLevel:    req.GradeLevel,
		GuardianName:  strings.TrimSpace(req.GuardianName),
		GuardianPhone: strings.TrimSpace(req.GuardianPhone),
		GuardianEmail: strings.ToLower(strings.TrimSpace(req.GuardianEmail)),
	}

	if err := s.users.CreateStudentAccount(ctx, user, student); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Code == appErrors.ErrConflict.Code {
			return nil, nil, appErr
		}
		s.logger.Error("registration failed", zap.String("username", user.Username), zap.Error(err))
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "registration failed, please try again")
	}

	s.activity.Record(ctx, models.ActorFor(user, "", ip, userAgent), ActivityEntry{
		Action:     models.AuditActionRegister,
		Resource:   "user",
		ResourceID: user.ID,
		New:        map[string]interface{}{"username": user.Username, "student_code": student.StudentCode, "grade_level": student.GradeLevel},
	})
	if s.notifier != nil {
		s.notifier.Notify(ctx, user, NotifyRegistrationReceived, NotificationData{})
	}
	return user, student, nil
}

func (s *RegistrationService) ensureUnique(ctx context.Context, username, email string) error {
	fields := map[string]string{}
	taken, err := s.users.UsernameTaken(ctx, username, "")
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check username")
	}
	if taken {
		fields["username"] = "username is already taken"
	}
	taken, err = s.users.EmailTaken(ctx, email, "")
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if taken {
		fields["email"] = "email is already registered"
	}
	if len(fields) > 0 {
		return appErrors.WithFields(appErrors.Clone(appErrors.ErrConflict, "account already exists"), fields)
	}
	return nil
}

func ageOn(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}
