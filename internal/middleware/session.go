package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-portal/internal/models"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
	"github.com/noah-isme/sma-portal/pkg/logger"
	"github.com/noah-isme/sma-portal/pkg/session"
)

const (
	contextCurrentUser   = "currentUser"
	contextSessionRecord = "sessionRecord"
)

type sessionResolver interface {
	ResolveSession(ctx context.Context, userID, recordID string) (*models.User, *models.UserSession, error)
}

// RequireLogin loads the signed-in user from the session. Revoked or expired
// logins and inactive accounts are signed out.
func RequireLogin(resolver sessionResolver, touchInterval time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := session.From(c)
		if sess == nil || sess.UserID() == "" {
			Deny(c, appErrors.ErrUnauthorized)
			return
		}

		user, record, err := resolver.ResolveSession(c.Request.Context(), sess.UserID(), sess.RecordID())
		if err != nil {
			sess.SetUser("", "")
			sess.SetFlash(appErrors.FromError(err).Message)
			Deny(c, appErrors.Clone(appErrors.ErrUnauthorized, "your session has ended, please sign in again"))
			return
		}

		now := time.Now().UTC()
		if touchInterval <= 0 || now.Sub(sess.TouchedAt()) >= touchInterval {
			sess.Touch(now)
		}

		c.Set(contextCurrentUser, user)
		c.Set(contextSessionRecord, record)
		c.Set(logger.ContextUserIDKey, user.ID)
		c.Next()
	}
}

// GuestOnly sends signed-in visitors to the dashboard.
func GuestOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sess := session.From(c); sess != nil && sess.UserID() != "" {
			c.Redirect(http.StatusFound, "/dashboard")
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user loaded by RequireLogin.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(contextCurrentUser); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// CurrentSessionRecord returns the session record of the current login.
func CurrentSessionRecord(c *gin.Context) *models.UserSession {
	if v, ok := c.Get(contextSessionRecord); ok {
		if record, ok := v.(*models.UserSession); ok {
			return record
		}
	}
	return nil
}

// Actor describes who performs the request: the session user, the API token
// subject, or an anonymous visitor.
func Actor(c *gin.Context) models.Actor {
	ip, ua := c.ClientIP(), c.GetHeader("User-Agent")
	if user := CurrentUser(c); user != nil {
		recordID := ""
		if record := CurrentSessionRecord(c); record != nil {
			recordID = record.ID
		}
		return models.ActorFor(user, recordID, ip, ua)
	}
	if claims := ClaimsFrom(c); claims != nil {
		return models.Actor{UserID: claims.UserID, Role: claims.Role, IP: ip, UserAgent: ua}
	}
	return models.Actor{IP: ip, UserAgent: ua}
}
