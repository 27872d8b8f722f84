package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-portal/internal/middleware"
	"github.com/noah-isme/sma-portal/internal/service"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
	"github.com/noah-isme/sma-portal/pkg/i18n"
	"github.com/noah-isme/sma-portal/pkg/session"
	"github.com/noah-isme/sma-portal/pkg/view"
)

type siteSettings interface {
	String(ctx context.Context, key string) string
}

// Pages builds the shared part of every rendered page and localises errors.
type Pages struct {
	appName  string
	bundle   *i18n.Bundle
	settings siteSettings
	logger   *zap.Logger
}

// NewPages constructs a page helper. settings may be nil.
func NewPages(appName string, bundle *i18n.Bundle, settings siteSettings, logger *zap.Logger) *Pages {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pages{appName: appName, bundle: bundle, settings: settings, logger: logger}
}

// New prepares page data. form names the CSRF token issued to the page; empty
// means the page posts nothing.
func (p *Pages) New(c *gin.Context, titleKey, form string) view.Page {
	lang := view.Lang(c)
	if lang == "" {
		lang = p.bundle.Default()
	}
	page := view.Page{
		Title:     p.bundle.T(lang, titleKey),
		AppName:   p.appName,
		Lang:      lang,
		Languages: p.bundle.Languages(),
		Path:      c.Request.URL.Path,
		Status:    http.StatusOK,
	}
	if p.settings != nil {
		if name := p.settings.String(c.Request.Context(), service.SettingSiteName); name != "" {
			page.AppName = name
		}
	}
	if user := middleware.CurrentUser(c); user != nil {
		page.User = user
	}
	if sess := session.From(c); sess != nil {
		page.Flash = sess.PopFlash()
		if form != "" {
			page.CSRF = sess.CSRFToken(form)
		}
	}
	return page
}

// Render writes page with the template name.
func (p *Pages) Render(c *gin.Context, name string, page view.Page) {
	status := page.Status
	if status == 0 {
		status = http.StatusOK
	}
	c.HTML(status, name, page)
}

// Fail fills the error side of page from err.
func (p *Pages) Fail(c *gin.Context, page *view.Page, err error) {
	appErr := p.Localize(c, err)
	page.Status = appErr.Status
	page.Error = appErr.Message
	page.Errors = appErr.Fields
}

// Localize converts err into an *Error whose field messages are in the request
// language. Internal errors are logged and reported generically.
func (p *Pages) Localize(c *gin.Context, err error) *appErrors.Error {
	appErr := appErrors.FromError(err)
	if appErr.Status >= http.StatusInternalServerError && appErr.Status != http.StatusServiceUnavailable {
		p.logger.Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.String("code", appErr.Code),
			zap.Error(err))
		return appErrors.Clone(appErrors.ErrInternal, "")
	}
	if fields := p.bundle.ValidationErrors(view.Lang(c), err); fields != nil {
		return appErrors.WithFields(appErr, fields)
	}
	return appErr
}

// T translates key in the request language.
func (p *Pages) T(c *gin.Context, key string, params ...string) string {
	return p.bundle.T(view.Lang(c), key, params...)
}

// safeRedirect keeps post-login redirects on this site.
func safeRedirect(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	if u, err := url.Parse(next); err != nil || u.Host != "" || u.Scheme != "" {
		return fallback
	}
	return next
}

// badForm reports a form that could not be decoded, e.g. a number field holding text.
func badForm(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "the form contains invalid values")
}
