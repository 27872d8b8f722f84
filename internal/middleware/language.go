package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-portal/pkg/session"
	"github.com/noah-isme/sma-portal/pkg/view"
)

// LanguageCookie persists the visitor's language for a year.
const (
	LanguageCookie    = "site_lang"
	languageCookieAge = 365 * 24 * time.Hour
)

type languageResolver interface {
	Supported(lang string) bool
	FromAcceptLanguage(header string) string
	Default() string
}

// Language resolves the request language: session, then the site_lang cookie,
// then Accept-Language, then the default.
func Language(langs languageResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		view.SetLang(c, ResolveLanguage(c, langs))
		c.Next()
	}
}

// ResolveLanguage applies the resolution order without touching the context.
func ResolveLanguage(c *gin.Context, langs languageResolver) string {
	if sess := session.From(c); sess != nil && langs.Supported(sess.Lang()) {
		return sess.Lang()
	}
	if cookie, err := c.Cookie(LanguageCookie); err == nil && langs.Supported(cookie) {
		return cookie
	}
	if lang := langs.FromAcceptLanguage(c.GetHeader("Accept-Language")); lang != "" {
		return lang
	}
	return langs.Default()
}

// SetLanguageCookie writes the site_lang cookie.
func SetLanguageCookie(c *gin.Context, lang string, secure bool) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     LanguageCookie,
		Value:    lang,
		Path:     "/",
		MaxAge:   int(languageCookieAge.Seconds()),
		Secure:   secure,
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	})
}
