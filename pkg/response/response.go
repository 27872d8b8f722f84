package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-portal/internal/models"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
)

// Envelope represents the common response contract of the JSON API.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// ActionBody is the contract of action-dispatched AJAX endpoints.
type ActionBody struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    interface{}       `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	noStore(c)
	envelope := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}


// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	noStore(c)
	c.JSON(appErr.Status, Envelope{Error: appErr})
}


// ActionOK answers an AJAX action with success:true.
func ActionOK(c *gin.Context, message string, data interface{}) {
	noStore(c)
	c.JSON(http.StatusOK, ActionBody{Success: true, Message: message, Data: data})
}

// ActionError answers an AJAX action with success:false. Internal errors are
// reported with a generic message.
func ActionError(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	noStore(c)
	message := appErr.Message
	if appErr.Status >= http.StatusInternalServerError {
		message = appErrors.ErrInternal.Message
	}
	c.JSON(appErr.Status, ActionBody{Success: false, Message: message, Errors: appErr.Fields})
}

// AbortAction is ActionError followed by Abort, for middleware.
func AbortAction(c *gin.Context, err error) {
	ActionError(c, err)
	c.Abort()
}
