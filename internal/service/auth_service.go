package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-portal/internal/dto"
	"github.com/noah-isme/sma-portal/internal/models"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
)

type authUserRepository interface {
	FindByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByAPIKey(ctx context.Context, apiKey string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
}

type sessionRecordRepository interface {
	Create(ctx context.Context, session *models.UserSession) error
	FindByID(ctx context.Context, id string) (*models.UserSession, error)
	Touch(ctx context.Context, id string, at, expiresAt time.Time) error
	Revoke(ctx context.Context, userID, id string) (string, error)
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type loginSettings interface {
	MaintenanceMode(ctx context.Context) bool
	SessionTimeout(ctx context.Context) time.Duration
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
	SessionTTL        time.Duration
	TouchInterval     time.Duration
}

// AuthService signs users in and out and guards API tokens.
type AuthService struct {
	users     authUserRepository
	sessions  sessionRecordRepository
	settings  loginSettings
	limiter   *RateLimiter
	activity  activityRecorder
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// AuthServiceParams groups constructor dependencies.
type AuthServiceParams struct {
	Users     authUserRepository
	Sessions  sessionRecordRepository
	Settings  loginSettings
	Limiter   *RateLimiter
	Activity  activityRecorder
	Validator *validator.Validate
	Logger    *zap.Logger
	Config    AuthConfig
}

// dummyHash keeps the cost of unknown-user logins equal to a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password"), bcrypt.DefaultCost)

// NewAuthService constructs an AuthService instance.
func NewAuthService(params AuthServiceParams) *AuthService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	cfg := params.Config
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 12 * time.Hour
	}
	if cfg.TouchInterval <= 0 {
		cfg.TouchInterval = time.Minute
	}
	if cfg.AccessTokenExpiry <= 0 {
		cfg.AccessTokenExpiry = time.Hour
	}
	return &AuthService{
		users:     params.Users,
		sessions:  params.Sessions,
		settings:  params.Settings,
		limiter:   params.Limiter,
		activity:  params.Activity,
		validator: validate,
		logger:    logger,
		config:    cfg,
		now:       time.Now,
	}
}

// Authenticate checks credentials and account state. It does not create a session.
func (s *AuthService) Authenticate(ctx context.Context, req dto.LoginRequest, ip, userAgent string) (*models.User, error) {
	if err := s.limiter.Allow(ctx, ScopeLogin, ip); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "username and password are required")
	}

	actor := models.Actor{IP: ip, UserAgent: userAgent}
	user, err := s.users.FindByIdentifier(ctx, req.Identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
			s.recordFailure(ctx, actor, req.Identifier)
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		actor.UserID = user.ID
		s.recordFailure(ctx, actor, req.Identifier)
		return nil, appErrors.ErrInvalidCredentials
	}

	switch user.Status {
	case models.UserStatusActive:
	case models.UserStatusPending:
		return nil, appErrors.ErrPendingAccount
	default:
		return nil, appErrors.ErrInactiveAccount
	}

	if s.settings != nil && s.settings.MaintenanceMode(ctx) && !user.Role.IsAdministrative() {
		return nil, appErrors.ErrMaintenance
	}
	return user, nil
}

// OpenSession persists the login record for a freshly regenerated session key.
func (s *AuthService) OpenSession(ctx context.Context, user *models.User, sessionKey, ip, userAgent string) (*models.UserSession, error) {
	now := s.now().UTC()
	record := &models.UserSession{
		UserID:       user.ID,
		SessionKey:   sessionKey,
		IPAddress:    ip,
		UserAgent:    truncate(userAgent, 512),
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(s.sessionTimeout(ctx)),
	}
	if err := s.sessions.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start session")
	}
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}
	s.limiter.Reset(ctx, ScopeLogin, ip)
	s.activity.Record(ctx, models.ActorFor(user, record.ID, ip, userAgent), ActivityEntry{
		Action:     models.AuditActionLogin,
		Resource:   "session",
		ResourceID: record.ID,
	})
	return record, nil
}

// ResolveSession loads the user behind a session and checks that the login
// is still valid, sliding its expiry on activity.
func (s *AuthService) ResolveSession(ctx context.Context, userID, recordID string) (*models.User, *models.UserSession, error) {
	if userID == "" || recordID == "" {
		return nil, nil, appErrors.ErrUnauthorized
	}
	record, err := s.sessions.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.ErrUnauthorized
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	now := s.now().UTC()
	if record.UserID != userID || !record.Valid(now) {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "session expired")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.ErrUnauthorized
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !user.IsActive() {
		return nil, nil, appErrors.ErrInactiveAccount
	}

	if now.Sub(record.LastActivity) >= s.config.TouchInterval {
		expires := now.Add(s.sessionTimeout(ctx))
		if err := s.sessions.Touch(ctx, record.ID, now, expires); err != nil {
			s.logger.Warn("failed to touch session", zap.Error(err))
		} else {
			record.LastActivity, record.ExpiresAt = now, expires
		}
	}
	return user, record, nil
}

// Logout revokes the login record. The caller destroys the session state.
func (s *AuthService) Logout(ctx context.Context, actor models.Actor) error {
	if actor.SessionID != "" {
		if _, err := s.sessions.Revoke(ctx, actor.UserID, actor.SessionID); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke session")
		}
	}
	s.activity.Record(ctx, actor, ActivityEntry{Action: models.AuditActionLogout, Resource: "session", ResourceID: actor.SessionID})
	return nil
}

// IssueAPIToken exchanges API credentials for a signed access token.
func (s *AuthService) IssueAPIToken(ctx context.Context, req dto.APITokenRequest, ip, userAgent string) (*dto.APITokenResponse, error) {
	if err := s.limiter.Allow(ctx, ScopeAPIToken, ip); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "api_key and api_secret are required")
	}
	user, err := s.users.FindByAPIKey(ctx, req.APIKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.APISecret))
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid api credentials")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	if user.APISecretHash == nil || bcrypt.CompareHashAndPassword([]byte(*user.APISecretHash), []byte(req.APISecret)) != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid api credentials")
	}
	if !user.IsActive() {
		return nil, appErrors.ErrInactiveAccount
	}

	token, _, err := s.generateAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	s.activity.Record(ctx, models.ActorFor(user, "", ip, userAgent), ActivityEntry{Action: models.AuditActionAPITokenIssue, Resource: "api"})
	return &dto.APITokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		User:        user.Info(),
	}, nil
}

// PurgeSessions deletes session records that expired more than retention ago.
func (s *AuthService) PurgeSessions(ctx context.Context, retention time.Duration) (int64, error) {
	deleted, err := s.sessions.DeleteExpired(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge sessions")
	}
	if deleted > 0 {
		s.logger.Info("expired sessions purged", zap.Int64("deleted", deleted))
	}
	return deleted, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, jwt.WithIssuer(s.config.Issuer))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

func (s *AuthService) generateAccessToken(user *models.User) (string, time.Time, error) {
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	claims := &models.JWTClaims{
		UserID:   user.ID,
		Role:     user.Role,
		Email:    user.Email,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *AuthService) sessionTimeout(ctx context.Context) time.Duration {
	if s.settings != nil {
		if d := s.settings.SessionTimeout(ctx); d > 0 {
			return d
		}
	}
	return s.config.SessionTTL
}

func (s *AuthService) recordFailure(ctx context.Context, actor models.Actor, identifier string) {
	s.activity.Record(ctx, actor, ActivityEntry{
		Action:   models.AuditActionLoginFailed,
		Resource: "session",
		New:      map[string]string{"identifier": truncate(identifier, 100)},
	})
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
