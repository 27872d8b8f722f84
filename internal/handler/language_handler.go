package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-portal/internal/dto"
	"github.com/noah-isme/sma-portal/internal/middleware"
	"github.com/noah-isme/sma-portal/internal/models"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
	"github.com/noah-isme/sma-portal/pkg/session"
	"github.com/noah-isme/sma-portal/pkg/view"
)

type languagePreference interface {
	ChangeLanguage(ctx context.Context, actor models.Actor, lang string) error
}

// LanguageHandler switches the interface language.
type LanguageHandler struct {
	users        languagePreference
	pages        *Pages
	secureCookie bool
}

// NewLanguageHandler creates a new handler.
func NewLanguageHandler(users languagePreference, pages *Pages, secureCookie bool) *LanguageHandler {
	return &LanguageHandler{users: users, pages: pages, secureCookie: secureCookie}
}

// Change handles POST /change-language with {"lang": "..."}. Signed-in users
// also get their stored preference updated.
func (h *LanguageHandler) Change(c *gin.Context) {
	var req dto.LanguageRequest
	if err := c.ShouldBindJSON(&req); err != nil || !h.pages.bundle.Supported(req.Lang) {
		h.pages.Write(c, h.pages.Failed(c, appErrors.Field("lang", "language is not supported")))
		return
	}

	sess := session.From(c)
	if sess != nil {
		sess.SetLang(req.Lang)
		if userID := sess.UserID(); userID != "" && h.users != nil {
			actor := models.Actor{UserID: userID, SessionID: sess.RecordID(), IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
			if err := h.users.ChangeLanguage(c.Request.Context(), actor, req.Lang); err != nil {
				h.pages.Write(c, h.pages.Failed(c, err))
				return
			}
		}
	}
	middleware.SetLanguageCookie(c, req.Lang, h.secureCookie)
	view.SetLang(c, req.Lang)
	h.pages.Write(c, OK(h.pages.T(c, "nav.language"), gin.H{"lang": req.Lang}))
}
