package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
)

// Rate limit scopes. Each scope counts independently per client IP.
const (
	ScopeLogin        = "login"
	ScopeRegistration = "register"
	ScopeRecovery     = "recovery"
	ScopeAPIToken     = "api_token"
)

type rateLimitStore interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Reset(ctx context.Context, key string) error
}

// RateLimiter bounds attempts per IP and scope within a fixed window.
type RateLimiter struct {
	store  rateLimitStore
	max    int64
	window time.Duration
	logger *zap.Logger
}

// NewRateLimiter constructs a limiter allowing max attempts per window.
func NewRateLimiter(store rateLimitStore, max int, window time.Duration, logger *zap.Logger) *RateLimiter {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{store: store, max: int64(max), window: window, logger: logger}
}

// Allow counts one attempt and fails with ErrTooManyAttempts once the limit
// is exceeded. Store failures let the attempt through.
func (l *RateLimiter) Allow(ctx context.Context, scope, ip string) error {
	if l == nil || l.store == nil {
		return nil
	}
	count, retryAfter, err := l.store.Hit(ctx, scope+":"+ip, l.window)
	if err != nil {
		l.logger.Warn("rate limit store unavailable", zap.String("scope", scope), zap.Error(err))
		return nil
	}
	if count > l.max {
		l.logger.Info("rate limit exceeded", zap.String("scope", scope), zap.String("ip", ip), zap.Duration("retry_after", retryAfter))
		return appErrors.ErrTooManyAttempts
	}
	return nil
}

// Reset clears the counter, e.g. after a successful login.
func (l *RateLimiter) Reset(ctx context.Context, scope, ip string) {
	if l == nil || l.store == nil {
		return
	}
	if err := l.store.Reset(ctx, scope+":"+ip); err != nil {
		l.logger.Warn("rate limit reset failed", zap.String("scope", scope), zap.Error(err))
	}
}
