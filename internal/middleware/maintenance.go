package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
)

type maintenanceSwitch interface {
	MaintenanceMode(ctx context.Context) bool
}

// Maintenance blocks signed-in non-administrators while maintenance mode is on.
// It must run after RequireLogin.
func Maintenance(settings maintenanceSwitch) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user != nil && !user.Role.IsAdministrative() && settings.MaintenanceMode(c.Request.Context()) {
			Deny(c, appErrors.ErrMaintenance)
			return
		}
		c.Next()
	}
}
