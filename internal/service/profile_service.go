package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-portal/internal/dto"
	"github.com/noah-isme/sma-portal/internal/models"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
)

// BackupCodeCount is the number of codes issued per generation.
const BackupCodeCount = 10

const recentProfileActivity = 20

type profileUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	EmailTaken(ctx context.Context, email, excludeID string) (bool, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdatePreferences(ctx context.Context, user *models.User) error
	UpdateLanguage(ctx context.Context, id, lang string) error
	UpdateTwoFactor(ctx context.Context, id string, secret *string, enabled bool) error
	ClaimTwoFactorStep(ctx context.Context, id string, step int64) (bool, error)
	UpdateAPICredentials(ctx context.Context, id, apiKey, secretHash string) error
	FindStudentByUserID(ctx context.Context, userID string) (*models.Student, error)
}

type profileCredentialRepository interface {
	ReplaceBackupCodes(ctx context.Context, userID string, hashes []string) error
	ListUnusedBackupCodes(ctx context.Context, userID string) ([]models.BackupCode, error)
	ReplaceSecurityQuestions(ctx context.Context, userID string, questions []models.SecurityQuestion) error
	ListSecurityQuestions(ctx context.Context, userID string) ([]models.SecurityQuestion, error)
	RecentPasswordHashes(ctx context.Context, userID string, limit int) ([]string, error)
	ChangePassword(ctx context.Context, userID, hash string) error
}

type profileSessionRepository interface {
	ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]models.UserSession, error)
	Revoke(ctx context.Context, userID, id string) (string, error)
	RevokeAllForUser(ctx context.Context, userID, exceptID string) ([]string, error)
}

type activityLog interface {
	activityRecorder
	Recent(ctx context.Context, userID string, limit int) ([]models.AuditLog, error)
}

// Profile errors.
var (
	ErrWrongPassword      = appErrors.Field("current_password", "current password is incorrect")
	ErrTwoFactorNotSetUp  = appErrors.Clone(appErrors.ErrPreconditionFailed, "start two-factor setup first")
	ErrCurrentSession     = appErrors.Clone(appErrors.ErrValidation, "use logout to end the current session")
	ErrSessionNotFound    = appErrors.Clone(appErrors.ErrNotFound, "session not found")
	ErrDuplicateQuestions = appErrors.Field("questions", "choose three different questions")
)

// ProfileService implements the profile actions of the signed-in user.
type ProfileService struct {
	users       profileUserRepository
	credentials profileCredentialRepository
	sessions    profileSessionRepository
	state       sessionStateRevoker
	policy      *PasswordPolicy
	activity    activityLog
	notifier    notifier
	validator   *validator.Validate
	logger      *zap.Logger
	issuer      string
	languages   map[string]bool
	now         func() time.Time
}

// ProfileServiceParams groups constructor dependencies.
type ProfileServiceParams struct {
	Users        profileUserRepository
	Credentials  profileCredentialRepository
	Sessions     profileSessionRepository
	SessionState sessionStateRevoker
	Policy       *PasswordPolicy
	Activity     activityLog
	Notifier     notifier
	Validator    *validator.Validate
	Logger       *zap.Logger
	Issuer       string
	Languages    []string
}

// NewProfileService constructs a ProfileService.
func NewProfileService(params ProfileServiceParams) *ProfileService {
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
		policy = NewPasswordPolicy(params.Credentials, 5, logger)
	}
	languages := make(map[string]bool, len(params.Languages))
	for _, lang := range params.Languages {
		languages[lang] = true
	}
	issuer := params.Issuer
	if issuer == "" {
		issuer = "SMA Portal"
	}
	return &ProfileService{
		users:       params.Users,
		credentials: params.Credentials,
		sessions:    params.Sessions,
		state:       params.SessionState,
		policy:      policy,
		activity:    params.Activity,
		notifier:    params.Notifier,
		validator:   validate,
		logger:      logger,
		issuer:      issuer,
		languages:   languages,
		now:         time.Now,
	}
}

// View assembles the profile page.
func (s *ProfileService) View(ctx context.Context, actor models.Actor) (*dto.ProfileView, error) {
	user, err := s.user(ctx, actor)
	if err != nil {
		return nil, err
	}
	view := &dto.ProfileView{User: user}

	if user.Role == models.RoleStudent {
		student, err := s.users.FindStudentByUserID(ctx, user.ID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, s.internal(err, "failed to load student record")
		}
		view.Student = student
	}

	sessions, err := s.sessions.ListActiveByUser(ctx, user.ID, s.now().UTC())
	if err != nil {
		return nil, s.internal(err, "failed to load sessions")
	}
	for i := range sessions {
		sessions[i].Current = sessions[i].ID == actor.SessionID
	}
	view.Sessions = sessions

	activity, err := s.activity.Recent(ctx, user.ID, recentProfileActivity)
	if err != nil {
		s.logger.Warn("failed to load recent activity", zap.Error(err))
	}
	view.Activity = activity

	questions, err := s.credentials.ListSecurityQuestions(ctx, user.ID)
	if err != nil {
		return nil, s.internal(err, "failed to load security questions")
	}
	for _, q := range questions {
		view.SecurityQuestions = append(view.SecurityQuestions, q.Question)
	}

	codes, err := s.credentials.ListUnusedBackupCodes(ctx, user.ID)
	if err != nil {
		return nil, s.internal(err, "failed to load backup codes")
	}
	view.BackupCodesLeft = len(codes)
	return view, nil
}

// UpdateProfile changes name, email and phone.
func (s *ProfileService) UpdateProfile(ctx context.Context, actor models.Actor, req dto.UpdateProfileRequest) (*models.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	req.Phone = strings.TrimSpace(req.Phone)
	if err := s.validate(req); err != nil {
		return nil, err
	}
	user, err := s.user(ctx, actor)
	if err != nil {
		return nil, err
	}
	if req.Email != user.Email {
		taken, err := s.users.EmailTaken(ctx, req.Email, user.ID)
		if err != nil {
			return nil, s.internal(err, "failed to check email")
		}
		if taken {
			return nil, appErrors.WithFields(appErrors.Clone(appErrors.ErrConflict, "email is already registered"), map[string]string{"email": "email is already registered"})
		}
	}

	old := map[string]string{"full_name": user.FullName, "email": user.Email, "phone": user.Phone}
	user.FullName, user.Email, user.Phone = req.FullName, req.Email, req.Phone
	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, s.internal(err, "failed to update profile")
	}
	s.activity.Record(ctx, actor, ActivityEntry{
		Action:     models.AuditActionProfileUpdate,
		Resource:   "user",
		ResourceID: user.ID,
		Old:        old,
		New:        map[string]string{"full_name": user.FullName, "email": user.Email, "phone": user.Phone},
	})
	return user, nil
}

// ChangePassword replaces the password and ends every other session.
func (s *ProfileService) ChangePassword(ctx context.Context, actor models.Actor, req dto.ChangePasswordRequest) error {
	if err := s.validate(req); err != nil {
		return err
	}
	user, err := s.user(ctx, actor)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)) != nil {
		return ErrWrongPassword
	}
	if err := s.policy.Validate(ctx, user.ID, "new_password", req.NewPassword, user.Username, user.Email, user.FullName); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return s.internal(err, "failed to secure password")
	}
	if err := s.credentials.ChangePassword(ctx, user.ID, string(hash)); err != nil {
		return s.internal(err, "failed to change password")
	}
	s.revokeOthers(ctx, actor)
	s.activity.Record(ctx, actor, ActivityEntry{Action: models.AuditActionPasswordChange, Resource: "user", ResourceID: user.ID})
	if s.notifier != nil && user.EmailNotifications {
		s.notifier.Notify(ctx, user, NotifyPasswordChanged, NotificationData{})
	}
	return nil
}

// UpdatePreferences stores theme, language and notification choices.
func (s *ProfileService) UpdatePreferences(ctx context.Context, actor models.Actor, req dto.UpdatePreferencesRequest) (*models.User, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	if len(s.languages) > 0 && !s.languages[req.Language] {
		return nil, appErrors.Field("language", "language is not supported")
	}
	user, err := s.user(ctx, actor)
	if err != nil {
		return nil, err
	}
	old := map[string]interface{}{"theme": user.Theme, "language": user.Language, "email_notifications": user.EmailNotifications}
	user.Theme, user.Language, user.EmailNotifications = req.Theme, req.Language, req.EmailNotifications
	if err := s.users.UpdatePreferences(ctx, user); err != nil {
		return nil, s.internal(err, "failed to save preferences")
	}
	s.activity.Record(ctx, actor, ActivityEntry{
		Action:     models.AuditActionPreferencesUpdate,
		Resource:   "user",
		ResourceID: user.ID,
		Old:        old,
		New:        req,
	})
	return user, nil
}

// ChangeLanguage stores the interface language chosen from the language switcher.
func (s *ProfileService) ChangeLanguage(ctx context.Context, actor models.Actor, lang string) error {
	if len(s.languages) > 0 && !s.languages[lang] {
		return appErrors.Field("lang", "language is not supported")
	}
	if err := s.users.UpdateLanguage(ctx, actor.UserID, lang); err != nil {
		return s.internal(err, "failed to save language")
	}
	s.activity.Record(ctx, actor, ActivityEntry{
		Action:     models.AuditActionLanguageChange,
		Resource:   "user",
		ResourceID: actor.UserID,
		New:        map[string]string{"language": lang},
	})
	return nil
}

// SetupTwoFactor generates a TOTP secret and stores it unconfirmed.
func (s *ProfileService) SetupTwoFactor(ctx context.Context, actor models.Actor) (*dto.TwoFactorSetup, error) {
	user, err := s.user(ctx, actor)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "two-factor authentication is already enabled")
	}
	key, err := totp.Generate(totp.GenerateOpts{Issuer: s.issuer, AccountName: user.Email})
	if err != nil {
		return nil, s.internal(err, "failed to generate two-factor secret")
	}
	secret := key.Secret()
	if err := s.users.UpdateTwoFactor(ctx, user.ID, &secret, false); err != nil {
		return nil, s.internal(err, "failed to store two-factor secret")
	}
	return &dto.TwoFactorSetup{Secret: secret, OTPAuthURL: key.URL()}, nil
}

// ConfirmTwoFactor enables 2FA once the user proves the authenticator works.
func (s *ProfileService) ConfirmTwoFactor(ctx context.Context, actor models.Actor, req dto.TwoFactorCodeRequest) error {
	if err := s.validate(req); err != nil {
		return err
	}
	user, err := s.user(ctx, actor)
	if err != nil {
		return err
	}
	if user.TwoFactorSecret == nil || user.TwoFactorEnabled {
		return ErrTwoFactorNotSetUp
	}
	ok, err := acceptTOTP(ctx, s.users, user, req.Code, s.now())
	if err != nil {
		return s.internal(err, "failed to verify two-factor code")
	}
	if !ok {
		return appErrors.Field("code", "the code is not valid, check your authenticator clock")
	}
	if err := s.users.UpdateTwoFactor(ctx, user.ID, user.TwoFactorSecret, true); err != nil {
		return s.internal(err, "failed to enable two-factor authentication")
	}
	s.activity.Record(ctx, actor, ActivityEntry{Action: models.AuditActionTwoFactorEnable, Resource: "user", ResourceID: user.ID})
	return nil
}

// DisableTwoFactor turns 2FA off after re-entering the password.
func (s *ProfileService) DisableTwoFactor(ctx context.Context, actor models.Actor, req dto.PasswordConfirmRequest) error {
	if err := s.validate(req); err != nil {
		return err
	}
	user, err := s.user(ctx, actor)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return appErrors.Field("password", "password is incorrect")
	}
	if err := s.users.UpdateTwoFactor(ctx, user.ID, nil, false); err != nil {
		return s.internal(err, "failed to disable two-factor authentication")
	}
	s.activity.Record(ctx, actor, ActivityEntry{Action: models.AuditActionTwoFactorDisable, Resource: "user", ResourceID: user.ID})
	return nil
}

// GenerateBackupCodes replaces all backup codes. The plain codes are only
// returned here.
func (s *ProfileService) GenerateBackupCodes(ctx context.Context, actor models.Actor) ([]string, error) {
	codes := make([]string, 0, BackupCodeCount)
	hashes := make([]string, 0, BackupCodeCount)
	for len(codes) < BackupCodeCount {
		code, err := backupCode()
		if err != nil {
			return nil, s.internal(err, "failed to generate backup codes")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
		if err != nil {
			return nil, s.internal(err, "failed to secure backup codes")
		}
		codes = append(codes, code)
		hashes = append(hashes, string(hash))
	}
	if err := s.credentials.ReplaceBackupCodes(ctx, actor.UserID, hashes); err != nil {
		return nil, s.internal(err, "failed to store backup codes")
	}
	s.activity.Record(ctx, actor, ActivityEntry{Action: models.AuditActionBackupCodes, Resource: "user", ResourceID: actor.UserID})
	return codes, nil
}

// SaveSecurityQuestions replaces the three security questions.
func (s *ProfileService) SaveSecurityQuestions(ctx context.Context, actor models.Actor, req dto.SecurityQuestionsRequest) error {
	if err := s.validate(req); err != nil {
		return err
	}
	seen := map[string]bool{}
	questions := make([]models.SecurityQuestion, 0, len(req.Questions))
	for _, in := range req.Questions {
		key := normalizeAnswer(in.Question)
		if seen[key] {
			return ErrDuplicateQuestions
		}
		seen[key] = true
		hash, err := bcrypt.GenerateFromPassword([]byte(normalizeAnswer(in.Answer)), bcrypt.DefaultCost)
		if err != nil {
			return s.internal(err, "failed to secure answers")
		}
		questions = append(questions, models.SecurityQuestion{Question: strings.TrimSpace(in.Question), AnswerHash: string(hash)})
	}
	if err := s.credentials.ReplaceSecurityQuestions(ctx, actor.UserID, questions); err != nil {
		return s.internal(err, "failed to save security questions")
	}
	s.activity.Record(ctx, actor, ActivityEntry{Action: models.AuditActionSecurityQuestions, Resource: "user", ResourceID: actor.UserID})
	return nil
}

// RegenerateAPICredentials issues a new key pair. The secret is only
// returned here.
func (s *ProfileService) RegenerateAPICredentials(ctx context.Context, actor models.Actor) (*dto.APICredentials, error) {
	secret, err := randomToken(32)
	if err != nil {
		return nil, s.internal(err, "failed to generate api secret")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, s.internal(err, "failed to secure api secret")
	}
	key := "sma_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := s.users.UpdateAPICredentials(ctx, actor.UserID, key, string(hash)); err != nil {
		return nil, s.internal(err, "failed to store api credentials")
	}
	s.activity.Record(ctx, actor, ActivityEntry{Action: models.AuditActionAPICredentials, Resource: "user", ResourceID: actor.UserID})
	return &dto.APICredentials{APIKey: key, APISecret: secret}, nil
}

// TerminateSession ends another session of the same user.
func (s *ProfileService) TerminateSession(ctx context.Context, actor models.Actor, req dto.SessionRequest) error {
	if err := s.validate(req); err != nil {
		return err
	}
	if req.SessionID == actor.SessionID {
		return ErrCurrentSession
	}
	key, err := s.sessions.Revoke(ctx, actor.UserID, req.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSessionNotFound
		}
		return s.internal(err, "failed to terminate session")
	}
	dropSessionState(ctx, s.state, []string{key}, s.logger)
	s.activity.Record(ctx, actor, ActivityEntry{Action: models.AuditActionSessionTerminate, Resource: "session", ResourceID: req.SessionID})
	return nil
}

// TerminateOtherSessions ends every session but the current one and
// returns how many were ended.
func (s *ProfileService) TerminateOtherSessions(ctx context.Context, actor models.Actor) (int, error) {
	keys, err := s.sessions.RevokeAllForUser(ctx, actor.UserID, actor.SessionID)
	if err != nil {
		return 0, s.internal(err, "failed to terminate sessions")
	}
	dropSessionState(ctx, s.state, keys, s.logger)
	s.activity.Record(ctx, actor, ActivityEntry{
		Action:   models.AuditActionSessionTerminate,
		Resource: "session",
		New:      map[string]int{"terminated": len(keys)},
	})
	return len(keys), nil
}

func (s *ProfileService) revokeOthers(ctx context.Context, actor models.Actor) {
	keys, err := s.sessions.RevokeAllForUser(ctx, actor.UserID, actor.SessionID)
	if err != nil {
		s.logger.Warn("failed to revoke other sessions", zap.String("user_id", actor.UserID), zap.Error(err))
		return
	}
	dropSessionState(ctx, s.state, keys, s.logger)
}

func (s *ProfileService) user(ctx context.Context, actor models.Actor) (*models.User, error) {
	user, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrUnauthorized
		}
		return nil, s.internal(err, "failed to load user")
	}
	return user, nil
}

func (s *ProfileService) validate(v interface{}) error {
	if err := s.validator.Struct(v); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}
	return nil
}

func (s *ProfileService) internal(err error, message string) error {
	s.logger.Error(message, zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
