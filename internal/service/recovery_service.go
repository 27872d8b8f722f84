package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-portal/internal/dto"
	"github.com/noah-isme/sma-portal/internal/models"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
	"github.com/noah-isme/sma-portal/pkg/sms"
)

type recoveryRepository interface {
	Create(ctx context.Context, req *models.RecoveryRequest) error
	FindByID(ctx context.Context, id string) (*models.RecoveryRequest, error)
	Update(ctx context.Context, req *models.RecoveryRequest) error
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

type recoveryUserRepository interface {
	FindByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindStudentByUserID(ctx context.Context, userID string) (*models.Student, error)
	ClaimTwoFactorStep(ctx context.Context, id string, step int64) (bool, error)
}

type recoveryCredentialRepository interface {
	ListUnusedBackupCodes(ctx context.Context, userID string) ([]models.BackupCode, error)
	MarkBackupCodeUsed(ctx context.Context, id string) (bool, error)
	ListSecurityQuestions(ctx context.Context, userID string) ([]models.SecurityQuestion, error)
	RecentPasswordHashes(ctx context.Context, userID string, limit int) ([]string, error)
	ChangePassword(ctx context.Context, userID, hash string) error
}

type userSessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID, exceptID string) ([]string, error)
}

type recoveryNotifier interface {
	Email(ctx context.Context, user *models.User, name string, data NotificationData) error
	Notify(ctx context.Context, user *models.User, name string, data NotificationData)
	SMS(ctx context.Context, phone, text string) error
}

// Recovery errors shown on the wizard.
var (
	ErrRecoveryUnknownAccount = appErrors.Clone(appErrors.ErrNotFound, "no active account matches that username or email")
	ErrRecoveryNotFound       = appErrors.Clone(appErrors.ErrNotFound, "recovery request not found, please start again")
	ErrRecoveryLocked         = appErrors.Clone(appErrors.ErrTooManyAttempts, "too many failed attempts, please start again")
)

// RecoveryConfig tunes the recovery wizard.
type RecoveryConfig struct {
	RequestTTL  time.Duration
	MaxAttempts int
	CodeLength  int
	BaseURL     string
}

// RecoveryService drives the password recovery wizard. Every transition is
// checked against the persisted request, never against client input.
type RecoveryService struct {
	requests    recoveryRepository
	users       recoveryUserRepository
	credentials recoveryCredentialRepository
	sessions    userSessionRevoker
	state       sessionStateRevoker
	limiter     *RateLimiter
	policy      *PasswordPolicy
	notifier    recoveryNotifier
	activity    activityRecorder
	validator   *validator.Validate
	logger      *zap.Logger
	config      RecoveryConfig
	now         func() time.Time
}

// RecoveryServiceParams groups constructor dependencies.
type RecoveryServiceParams struct {
	Requests     recoveryRepository
	Users        recoveryUserRepository
	Credentials  recoveryCredentialRepository
	Sessions     userSessionRevoker
	SessionState sessionStateRevoker
	Limiter      *RateLimiter
	Policy       *PasswordPolicy
	Notifier     recoveryNotifier
	Activity     activityRecorder
	Validator    *validator.Validate
	Logger       *zap.Logger
	Config       RecoveryConfig
}

// NewRecoveryService constructs a RecoveryService.
func NewRecoveryService(params RecoveryServiceParams) *RecoveryService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	cfg := params.Config
	if cfg.RequestTTL <= 0 {
		cfg.RequestTTL = time.Hour
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = 6
	}
	policy := params.Policy
	if policy == nil {
		policy = NewPasswordPolicy(params.Credentials, 5, logger)
	}
	return &RecoveryService{
		requests:    params.Requests,
		users:       params.Users,
		credentials: params.Credentials,
		sessions:    params.Sessions,
		state:       params.SessionState,
		limiter:     params.Limiter,
		policy:      policy,
		notifier:    params.Notifier,
		activity:    params.Activity,
		validator:   validate,
		logger:      logger,
		config:      cfg,
		now:         time.Now,
	}
}

// Start identifies the account, opens a request and moves it to the
// verification step of the chosen method.
func (s *RecoveryService) Start(ctx context.Context, in dto.RecoveryStartRequest, ip, userAgent string) (*dto.RecoveryView, error) {
	if err := s.limiter.Allow(ctx, ScopeRecovery, ip); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(in); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}
	if !in.Method.Valid() {
		return nil, appErrors.Field("method", "choose a recovery method")
	}

	user, err := s.users.FindByIdentifier(ctx, strings.TrimSpace(in.Identifier))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecoveryUnknownAccount
		}
		return nil, s.internal(err, "failed to look up account")
	}
	if !user.IsActive() {
		return nil, ErrRecoveryUnknownAccount
	}

	available, err := s.methodAvailable(ctx, user, in.Method)
	if err != nil {
		return nil, s.internal(err, "failed to load recovery options")
	}
	if !available {
		return nil, appErrors.Field("method", "this recovery method is not set up for your account")
	}

	now := s.now().UTC()
	req := &models.RecoveryRequest{
		UserID:    user.ID,
		Method:    in.Method,
		Step:      in.Method.VerificationStep(),
		Status:    models.RecoveryStatusPending,
		IPAddress: ip,
		ExpiresAt: now.Add(s.config.RequestTTL),
		CreatedAt: now,
	}

	var secret string
	switch in.Method {
	case models.RecoveryMethodEmail:
		secret, err = randomToken(32)
	case models.RecoveryMethodSMS:
		secret, err = numericCode(s.config.CodeLength)
	}
	if err != nil {
		return nil, s.internal(err, "failed to generate verification code")
	}
	if secret != "" {
		hash := sha256Hex(secret)
		req.TokenHash = &hash
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, s.internal(err, "failed to start recovery")
	}

	switch in.Method {
	case models.RecoveryMethodEmail:
		link := fmt.Sprintf("%s/forgot-password/verify?rid=%s&token=%s", s.config.BaseURL, url.QueryEscape(req.ID), url.QueryEscape(secret))
		if err := s.notifier.Email(ctx, user, NotifyRecoveryLink, NotificationData{URL: link, Expires: s.config.RequestTTL.String()}); err != nil {
			return nil, s.internal(err, "failed to send recovery email")
		}
	case models.RecoveryMethodSMS:
		text := fmt.Sprintf("Your password recovery code is %s. It expires in %s.", secret, s.config.RequestTTL)
		if err := s.notifier.SMS(ctx, user.Phone, text); err != nil {
			return nil, s.internal(err, "failed to send recovery code")
		}
	}

	s.activity.Record(ctx, models.ActorFor(user, "", ip, userAgent), ActivityEntry{
		Action:     models.AuditActionRecoveryStart,
		Resource:   "recovery_request",
		ResourceID: req.ID,
		New:        map[string]string{"method": string(req.Method)},
	})
	return s.view(ctx, req, user)
}

// Verify checks the secret for the request's current verification step.
// A failed check returns the refreshed view together with the error.
func (s *RecoveryService) Verify(ctx context.Context, id string, in dto.RecoveryVerifyRequest, ip, userAgent string) (*dto.RecoveryView, error) {
	if err := s.limiter.Allow(ctx, ScopeRecovery, ip); err != nil {
		return nil, err
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != models.RecoveryStatusPending || req.Step != req.Method.VerificationStep() {
		return nil, appErrors.ErrInvalidStep
	}
	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		return nil, s.internal(err, "failed to load account")
	}

	ok, err := s.check(ctx, req, user, in)
	if err != nil {
		return nil, s.internal(err, "failed to verify")
	}
	actor := models.ActorFor(user, "", ip, userAgent)
	now := s.now().UTC()

	if !ok {
		req.Attempts++
		if req.Attempts >= s.config.MaxAttempts {
			req.Status = models.RecoveryStatusLocked
		}
		if err := s.requests.Update(ctx, req); err != nil {
			return nil, s.internal(err, "failed to update recovery request")
		}
		s.activity.Record(ctx, actor, ActivityEntry{
			Action:     models.AuditActionRecoveryFailed,
			Resource:   "recovery_request",
			ResourceID: req.ID,
			New:        map[string]interface{}{"attempts": req.Attempts, "status": req.Status},
		})
		if req.Status == models.RecoveryStatusLocked {
			return nil, ErrRecoveryLocked
		}
		view, viewErr := s.view(ctx, req, user)
		if viewErr != nil {
			return nil, viewErr
		}
		return view, appErrors.Field(verifyField(req.Method), "the details you entered are incorrect")
	}

	req.Status = models.RecoveryStatusVerified
	req.Step = models.RecoveryStepReset
	req.VerifiedAt = &now
	req.TokenHash = nil
	if err := s.requests.Update(ctx, req); err != nil {
		return nil, s.internal(err, "failed to update recovery request")
	}
	s.activity.Record(ctx, actor, ActivityEntry{
		Action:     models.AuditActionRecoveryVerify,
		Resource:   "recovery_request",
		ResourceID: req.ID,
		New:        map[string]string{"method": string(req.Method)},
	})
	return s.view(ctx, req, user)
}

// Reset sets the new password of a verified request and closes it.
func (s *RecoveryService) Reset(ctx context.Context, id string, in dto.RecoveryResetRequest, ip, userAgent string) error {
	req, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if req.Status != models.RecoveryStatusVerified || req.Step != models.RecoveryStepReset {
		return appErrors.ErrInvalidStep
	}
	if err := s.validator.Struct(in); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}
	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		return s.internal(err, "failed to load account")
	}
	if err := s.policy.Validate(ctx, user.ID, "password", in.Password, user.Username, user.Email, user.FullName); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return s.internal(err, "failed to secure password")
	}
	if err := s.credentials.ChangePassword(ctx, user.ID, string(hash)); err != nil {
		return s.internal(err, "failed to update password")
	}

	now := s.now().UTC()
	req.Status = models.RecoveryStatusConsumed
	req.Step = models.RecoveryStepDone
	req.ConsumedAt = &now
	if err := s.requests.Update(ctx, req); err != nil {
		s.logger.Warn("failed to close recovery request", zap.String("recovery_id", req.ID), zap.Error(err))
	}

	if s.sessions != nil {
		keys, err := s.sessions.RevokeAllForUser(ctx, user.ID, "")
		if err != nil {
			s.logger.Warn("failed to revoke sessions after reset", zap.String("user_id", user.ID), zap.Error(err))
		}
		dropSessionState(ctx, s.state, keys, s.logger)
	}

	s.activity.Record(ctx, models.ActorFor(user, "", ip, userAgent), ActivityEntry{
		Action:     models.AuditActionPasswordReset,
		Resource:   "user",
		ResourceID: user.ID,
		New:        map[string]string{"method": string(req.Method)},
	})
	s.notifier.Notify(ctx, user, NotifyPasswordChanged, NotificationData{})
	return nil
}

// Current returns the view of a live request.
func (s *RecoveryService) Current(ctx context.Context, id string) (*dto.RecoveryView, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status.Terminal() && req.Status != models.RecoveryStatusConsumed {
		return nil, appErrors.ErrInvalidStep
	}
	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		return nil, s.internal(err, "failed to load account")
	}
	return s.view(ctx, req, user)
}

// Cancel abandons a live request.
func (s *RecoveryService) Cancel(ctx context.Context, id string) error {
	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return s.internal(err, "failed to load recovery request")
	}
	if req.Status.Terminal() {
		return nil
	}
	req.Status = models.RecoveryStatusCancelled
	if err := s.requests.Update(ctx, req); err != nil {
		return s.internal(err, "failed to cancel recovery request")
	}
	return nil
}

// ExpireStale moves live requests past their deadline to expired.
func (s *RecoveryService) ExpireStale(ctx context.Context) (int64, error) {
	n, err := s.requests.ExpireStale(ctx, s.now().UTC())
	if err != nil {
		return 0, s.internal(err, "failed to expire recovery requests")
	}
	if n > 0 {
		s.logger.Info("recovery requests expired", zap.Int64("count", n))
	}
	return n, nil
}

// load fetches a request and expires it when its deadline passed.
func (s *RecoveryService) load(ctx context.Context, id string) (*models.RecoveryRequest, error) {
	if id == "" {
		return nil, ErrRecoveryNotFound
	}
	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecoveryNotFound
		}
		return nil, s.internal(err, "failed to load recovery request")
	}
	switch req.Status {
	case models.RecoveryStatusExpired:
		return nil, appErrors.ErrExpired
	case models.RecoveryStatusLocked:
		return nil, ErrRecoveryLocked
	case models.RecoveryStatusCancelled:
		return nil, ErrRecoveryNotFound
	}
	if !req.Status.Terminal() && !s.now().Before(req.ExpiresAt) {
		req.Status = models.RecoveryStatusExpired
		if err := s.requests.Update(ctx, req); err != nil {
			s.logger.Warn("failed to expire recovery request", zap.String("recovery_id", req.ID), zap.Error(err))
		}
		return nil, appErrors.ErrExpired
	}
	return req, nil
}

func (s *RecoveryService) methodAvailable(ctx context.Context, user *models.User, method models.RecoveryMethod) (bool, error) {
	switch method {
	case models.RecoveryMethodEmail:
		return user.Email != "", nil
	case models.RecoveryMethodSMS:
		return strings.TrimSpace(user.Phone) != "", nil
	case models.RecoveryMethodBackupCode:
		codes, err := s.credentials.ListUnusedBackupCodes(ctx, user.ID)
		return len(codes) > 0, err
	case models.RecoveryMethodSecurityQuestions:
		questions, err := s.credentials.ListSecurityQuestions(ctx, user.ID)
		return len(questions) > 0, err
	case models.RecoveryMethodTwoFactor:
		return user.TwoFactorEnabled && user.TwoFactorSecret != nil, nil
	case models.RecoveryMethodIdentity:
		return true, nil
	}
	return false, nil
}

func (s *RecoveryService) check(ctx context.Context, req *models.RecoveryRequest, user *models.User, in dto.RecoveryVerifyRequest) (bool, error) {
	switch req.Method {
	case models.RecoveryMethodEmail, models.RecoveryMethodSMS:
		return hashMatches(req.TokenHash, strings.TrimSpace(in.Code)), nil
	case models.RecoveryMethodBackupCode:
		return s.consumeBackupCode(ctx, user.ID, in.Code)
	case models.RecoveryMethodSecurityQuestions:
		return s.checkAnswers(ctx, user.ID, in.Answers)
	case models.RecoveryMethodTwoFactor:
		return acceptTOTP(ctx, s.users, user, in.Code, s.now())
	case models.RecoveryMethodIdentity:
		return s.checkIdentity(ctx, user, in)
	}
	return false, nil
}

func (s *RecoveryService) consumeBackupCode(ctx context.Context, userID, supplied string) (bool, error) {
	supplied = normalizeBackupCode(supplied)
	if supplied == "" {
		return false, nil
	}
	codes, err := s.credentials.ListUnusedBackupCodes(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, code := range codes {
		if bcrypt.CompareHashAndPassword([]byte(code.CodeHash), []byte(supplied)) == nil {
			return s.credentials.MarkBackupCodeUsed(ctx, code.ID)
		}
	}
	return false, nil
}

func (s *RecoveryService) checkAnswers(ctx context.Context, userID string, answers []string) (bool, error) {
	questions, err := s.credentials.ListSecurityQuestions(ctx, userID)
	if err != nil {
		return false, err
	}
	if len(questions) == 0 || len(answers) != len(questions) {
		return false, nil
	}
	ok := true
	for i, q := range questions {
		if bcrypt.CompareHashAndPassword([]byte(q.AnswerHash), []byte(normalizeAnswer(answers[i]))) != nil {
			ok = false
		}
	}
	return ok, nil
}

func (s *RecoveryService) checkIdentity(ctx context.Context, user *models.User, in dto.RecoveryVerifyRequest) (bool, error) {
	if normalizeAnswer(in.FullName) != normalizeAnswer(user.FullName) ||
		!strings.EqualFold(strings.TrimSpace(in.Email), user.Email) ||
		digitsOnly(in.Phone) == "" || digitsOnly(in.Phone) != digitsOnly(user.Phone) {
		return false, nil
	}
	if user.Role != models.RoleStudent {
		return true, nil
	}
	student, err := s.users.FindStudentByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return strings.TrimSpace(in.DateOfBirth) == student.DateOfBirth.Format("2006-01-02"), nil
}

func (s *RecoveryService) view(ctx context.Context, req *models.RecoveryRequest, user *models.User) (*dto.RecoveryView, error) {
	view := &dto.RecoveryView{
		ID:           req.ID,
		Step:         req.Step,
		Method:       req.Method,
		Status:       req.Status,
		AttemptsLeft: s.config.MaxAttempts - req.Attempts,
		IsStudent:    user.Role == models.RoleStudent,
	}
	switch req.Method {
	case models.RecoveryMethodEmail:
		view.Destination = maskEmail(user.Email)
	case models.RecoveryMethodSMS:
		view.Destination = sms.Mask(user.Phone)
	}
	if req.Step == models.RecoveryStepSecurityQuestions {
		questions, err := s.credentials.ListSecurityQuestions(ctx, user.ID)
		if err != nil {
			return nil, s.internal(err, "failed to load security questions")
		}
		for _, q := range questions {
			view.Questions = append(view.Questions, q.Question)
		}
	}
	return view, nil
}

func (s *RecoveryService) internal(err error, message string) error {
	s.logger.Error(message, zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func verifyField(method models.RecoveryMethod) string {
	switch method {
	case models.RecoveryMethodSecurityQuestions:
		return "answers"
	case models.RecoveryMethodIdentity:
		return "identity"
	default:
		return "code"
	}
}

func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return email
	}
	return email[:1] + strings.Repeat("*", 3) + email[at:]
}

func digitsOnly(value string) string {
	var sb strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
