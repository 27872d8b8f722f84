package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-portal/internal/models"
	"github.com/noah-isme/sma-portal/internal/service"
)

type activityRecorder interface {
	Record(ctx context.Context, actor models.Actor, entry service.ActivityEntry)
}

// Audit records an activity entry after successful requests. The resource id
// is taken from the named route parameter when set.
func Audit(recorder activityRecorder, action, resource, idParam string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 || recorder == nil {
			return
		}

		entry := service.ActivityEntry{
			Action:   action,
			Resource: resource,
			New: map[string]interface{}{
				"path":    c.FullPath(),
				"method":  c.Request.Method,
				"status":  c.Writer.Status(),
				"latency": time.Since(start).Milliseconds(),
			},
		}
		if idParam != "" {
			entry.ResourceID = c.Param(idParam)
		}
		recorder.Record(c.Request.Context(), Actor(c), entry)
	}
}
