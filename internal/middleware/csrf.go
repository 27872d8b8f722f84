package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
	"github.com/noah-isme/sma-portal/pkg/session"
)

// CSRFHeader carries the token on AJAX requests; CSRFField on HTML forms.
const (
	CSRFHeader = "X-CSRF-Token"
	CSRFField  = "csrf_token"
)

// CSRF verifies the per-form token of form on state-changing requests.
func CSRF(form string) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		sess := session.From(c)
		supplied := c.GetHeader(CSRFHeader)
		if supplied == "" {
			supplied = c.PostForm(CSRFField)
		}
		if sess == nil || !sess.VerifyCSRF(form, supplied) {
			Deny(c, appErrors.ErrCSRF)
			return
		}
		c.Next()
	}
}

// CSRFToken returns (issuing if needed) the token of form for templates.
func CSRFToken(c *gin.Context, form string) string {
	sess := session.From(c)
	if sess == nil {
		return ""
	}
	return sess.CSRFToken(form)
}
