package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-portal/internal/models"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
)

// RequireRoles enforces role-based access for both session users and API tokens.
// It must run after RequireLogin or JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		role, ok := roleFrom(c)
		if !ok {
			Deny(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[role]; !ok {
			Deny(c, appErrors.Clone(appErrors.ErrForbidden, "you do not have access to this page"))
			return
		}
		c.Next()
	}
}

// RequireAdmin allows administrators and super administrators.
func RequireAdmin() gin.HandlerFunc {
	return RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)
}

func roleFrom(c *gin.Context) (models.UserRole, bool) {
	if user := CurrentUser(c); user != nil {
		return user.Role, true
	}
	if claims := ClaimsFrom(c); claims != nil {
		return claims.Role, true
	}
	return "", false
}
