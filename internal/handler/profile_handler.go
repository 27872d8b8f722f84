package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-portal/internal/dto"
	"github.com/noah-isme/sma-portal/internal/middleware"
	"github.com/noah-isme/sma-portal/internal/models"
	"github.com/noah-isme/sma-portal/pkg/session"
	"github.com/noah-isme/sma-portal/pkg/view"
)

const profileForm = "profile"

type profileService interface {
	View(ctx context.Context, actor models.Actor) (*dto.ProfileView, error)
	UpdateProfile(ctx context.Context, actor models.Actor, req dto.UpdateProfileRequest) (*models.User, error)
	ChangePassword(ctx context.Context, actor models.Actor, req dto.ChangePasswordRequest) error
	UpdatePreferences(ctx context.Context, actor models.Actor, req dto.UpdatePreferencesRequest) (*models.User, error)
	SetupTwoFactor(ctx context.Context, actor models.Actor) (*dto.TwoFactorSetup, error)
	ConfirmTwoFactor(ctx context.Context, actor models.Actor, req dto.TwoFactorCodeRequest) error
	DisableTwoFactor(ctx context.Context, actor models.Actor, req dto.PasswordConfirmRequest) error
	GenerateBackupCodes(ctx context.Context, actor models.Actor) ([]string, error)
	SaveSecurityQuestions(ctx context.Context, actor models.Actor, req dto.SecurityQuestionsRequest) error
	RegenerateAPICredentials(ctx context.Context, actor models.Actor) (*dto.APICredentials, error)
	TerminateSession(ctx context.Context, actor models.Actor, req dto.SessionRequest) error
	TerminateOtherSessions(ctx context.Context, actor models.Actor) (int, error)
}

// ProfileHandler serves the profile page and its AJAX actions.
type ProfileHandler struct {
	service      profileService
	pages        *Pages
	secureCookie bool
	actions      map[string]actionFunc
}

// NewProfileHandler creates a new handler.
func NewProfileHandler(svc profileService, pages *Pages, secureCookie bool) *ProfileHandler {
	h := &ProfileHandler{service: svc, pages: pages, secureCookie: secureCookie}
	h.actions = map[string]actionFunc{
		"get_profile":                h.getProfile,
		"update_profile":             h.updateProfile,
		"change_password":            h.changePassword,
		"update_preferences":         h.updatePreferences,
		"setup_two_factor":           h.setupTwoFactor,
		"confirm_two_factor":         h.confirmTwoFactor,
		"disable_two_factor":         h.disableTwoFactor,
		"generate_backup_codes":      h.generateBackupCodes,
		"save_security_questions":    h.saveSecurityQuestions,
		"regenerate_api_credentials": h.regenerateAPICredentials,
		"terminate_session":          h.terminateSession,
		"terminate_other_sessions":   h.terminateOtherSessions,
	}
	return h
}

type profilePage struct {
	*dto.ProfileView
	CurrentSessionID string
	Themes           []string
	Rules            string
}

// Page renders the profile of the signed-in user.
func (h *ProfileHandler) Page(c *gin.Context) {
	actor := middleware.Actor(c)
	profile, err := h.service.View(c.Request.Context(), actor)
	if err != nil {
		middleware.Deny(c, err)
		return
	}
	page := h.pages.New(c, "profile.title", profileForm)
	page.Data = profilePage{
		ProfileView:      profile,
		CurrentSessionID: actor.SessionID,
		Themes:           []string{models.ThemeLight, models.ThemeDark, models.ThemeAuto},
		Rules:            h.pages.T(c, "password.rules"),
	}
	h.pages.Render(c, "profile", page)
}

// Actions dispatches POST /profile/actions.
func (h *ProfileHandler) Actions(c *gin.Context) {
	h.pages.Dispatch(c, h.actions)
}

func (h *ProfileHandler) getProfile(c *gin.Context, _ []byte) ActionResult {
	profile, err := h.service.View(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		return h.pages.Failed(c, err)
	}
	return OK("", profile)
}

func (h *ProfileHandler) updateProfile(c *gin.Context, body []byte) ActionResult {
	var req dto.UpdateProfileRequest
	if err := bind(body, &req); err != nil {
		return h.pages.Failed(c, err)
	}
	user, err := h.service.UpdateProfile(c.Request.Context(), middleware.Actor(c), req)
	if err != nil {
		return h.pages.Failed(c, err)
	}
	return OK("profile updated", user)
}

func (h *ProfileHandler) changePassword(c *gin.Context, body []byte) ActionResult {
	var req dto.ChangePasswordRequest
	if err := bind(body, &req); err != nil {
		return h.pages.Failed(c, err)
	}
	if err := h.service.ChangePassword(c.Request.Context(), middleware.Actor(c), req); err != nil {
		return h.pages.Failed(c, err)
	}
	return OK("password changed, other sessions were signed out", nil)
}

func (h *ProfileHandler) updatePreferences(c *gin.Context, body []byte) ActionResult {
	var req dto.UpdatePreferencesRequest
	if err := bind(body, &req); err != nil {
		return h.pages.Failed(c, err)
	}
	user, err := h.service.UpdatePreferences(c.Request.Context(), middleware.Actor(c), req)
	if err != nil {
		return h.pages.Failed(c, err)
	}
	if sess := session.From(c); sess != nil {
		sess.SetLang(user.Language)
	}
	view.SetLang(c, user.Language)
	middleware.SetLanguageCookie(c, user.Language, h.secureCookie)
	return OK("preferences saved", user)
}

func (h *ProfileHandler) setupTwoFactor(c *gin.Context, _ []byte) ActionResult {
	setup, err := h.service.SetupTwoFactor(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		return h.pages.Failed(c, err)
	}
	return OK("scan the code with your authenticator app, then confirm", setup)
}

func (h *ProfileHandler) confirmTwoFactor(c *gin.Context, body []byte) ActionResult {
	var req dto.TwoFactorCodeRequest
	if err := bind(body, &req); err != nil {
		return h.pages.Failed(c, err)
	}
	if err := h.service.ConfirmTwoFactor(c.Request.Context(), middleware.Actor(c), req); err != nil {
		return h.pages.Failed(c, err)
	}
	return OK("two-factor authentication enabled", nil)
}

func (h *ProfileHandler) disableTwoFactor(c *gin.Context, body []byte) ActionResult {
	var req dto.PasswordConfirmRequest
	if err := bind(body, &req); err != nil {
		return h.pages.Failed(c, err)
	}
	if err := h.service.DisableTwoFactor(c.Request.Context(), middleware.Actor(c), req); err != nil {
		return h.pages.Failed(c, err)
	}
	return OK("two-factor authentication disabled", nil)
}

func (h *ProfileHandler) generateBackupCodes(c *gin.Context, _ []byte) ActionResult {
	codes, err := h.service.GenerateBackupCodes(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		return h.pages.Failed(c, err)
	}
	return OK(h.pages.T(c, "profile.codes_once"), gin.H{"codes": codes})
}

func (h *ProfileHandler) saveSecurityQuestions(c *gin.Context, body []byte) ActionResult {
	var req dto.SecurityQuestionsRequest
	if err := bind(body, &req); err != nil {
		return h.pages.Failed(c, err)
	}
	if err := h.service.SaveSecurityQuestions(c.Request.Context(), middleware.Actor(c), req); err != nil {
		return h.pages.Failed(c, err)
	}
	return OK("security questions saved", nil)
}

func (h *ProfileHandler) regenerateAPICredentials(c *gin.Context, _ []byte) ActionResult {
	creds, err := h.service.RegenerateAPICredentials(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		return h.pages.Failed(c, err)
	}
	return OK("copy the secret now, it will not be shown again", creds)
}

func (h *ProfileHandler) terminateSession(c *gin.Context, body []byte) ActionResult {
	var req dto.SessionRequest
	if err := bind(body, &req); err != nil {
		return h.pages.Failed(c, err)
	}
	if err := h.service.TerminateSession(c.Request.Context(), middleware.Actor(c), req); err != nil {
		return h.pages.Failed(c, err)
	}
	return OK("session terminated", nil)
}

func (h *ProfileHandler) terminateOtherSessions(c *gin.Context, _ []byte) ActionResult {
	count, err := h.service.TerminateOtherSessions(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		return h.pages.Failed(c, err)
	}
	return OK("other sessions terminated", gin.H{"terminated": count})
}
