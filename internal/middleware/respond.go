package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
	"github.com/noah-isme/sma-portal/pkg/response"
	"github.com/noah-isme/sma-portal/pkg/view"
)

// LoginPath is where unauthenticated page requests are sent.
const LoginPath = "/login"

// Deny aborts the request with err in the shape the client expects: the API envelope,
// an AJAX action body, a login redirect or an error page.
func Deny(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	switch {
	case strings.HasPrefix(c.Request.URL.Path, "/api/"):
		response.Error(c, appErr)
		c.Abort()
	case view.WantsJSON(c):
		response.AbortAction(c, appErr)
	case appErr.Status == http.StatusUnauthorized:
		target := LoginPath
		if c.Request.Method == http.MethodGet && c.Request.URL.Path != "/" {
			target += "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
		}
		c.Redirect(http.StatusFound, target)
		c.Abort()
	default:
		message := appErr.Message
		if appErr.Status >= http.StatusInternalServerError && appErr.Status != http.StatusServiceUnavailable {
			message = appErrors.ErrInternal.Message
		}
		view.ErrorPage(c, appErr.Status, message)
	}
}
