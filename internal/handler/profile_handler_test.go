package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-portal/internal/dto"
	"github.com/noah-isme/sma-portal/internal/middleware"
	"github.com/noah-isme/sma-portal/internal/models"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
	"github.com/noah-isme/sma-portal/pkg/i18n"
)

type profileStub struct {
	validate   *i18n.Bundle
	user       *models.User
	actors     []models.Actor
	terminated []string
}

func (s *profileStub) View(_ context.Context, actor models.Actor) (*dto.ProfileView, error) {
	s.actors = append(s.actors, actor)
	return &dto.ProfileView{User: s.user}, nil
}

func (s *profileStub) UpdateProfile(_ context.Context, _ models.Actor, req dto.UpdateProfileRequest) (*models.User, error) {
	if err := s.validate.Validator().Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}
	s.user.FullName = req.FullName
	return s.user, nil
}

func (s *profileStub) ChangePassword(_ context.Context, _ models.Actor, req dto.ChangePasswordRequest) error {
	if req.CurrentPassword != "Old#Pass1" {
		return appErrors.Field("current_password", "current password is incorrect")
	}
	return nil
}

func (s *profileStub) UpdatePreferences(_ context.Context, _ models.Actor, req dto.UpdatePreferencesRequest) (*models.User, error) {
	s.user.Theme, s.user.Language = req.Theme, req.Language
	return s.user, nil
}

func (s *profileStub) SetupTwoFactor(context.Context, models.Actor) (*dto.TwoFactorSetup, error) {
	return &dto.TwoFactorSetup{Secret: "JBSWY3DPEHPK3PXP", OTPAuthURL: "otpauth://totp/SMA"}, nil
}

func (s *profileStub) ConfirmTwoFactor(context.Context, models.Actor, dto.TwoFactorCodeRequest) error {
	return nil
}

func (s *profileStub) DisableTwoFactor(context.Context, models.Actor, dto.PasswordConfirmRequest) error {
	return nil
}

func (s *profileStub) GenerateBackupCodes(context.Context, models.Actor) ([]string, error) {
	return []string{"ABCD-EFGH"}, nil
}

func (s *profileStub) SaveSecurityQuestions(context.Context, models.Actor, dto.SecurityQuestionsRequest) error {
	return nil
}

func (s *profileStub) RegenerateAPICredentials(context.Context, models.Actor) (*dto.APICredentials, error) {
	return &dto.APICredentials{APIKey: "k", APISecret: "s"}, nil
}

func (s *profileStub) TerminateSession(_ context.Context, actor models.Actor, req dto.SessionRequest) error {
	if req.SessionID == actor.SessionID {
		return appErrors.Clone(appErrors.ErrValidation, "use logout to end the current session")
	}
	s.terminated = append(s.terminated, req.SessionID)
	return nil
}

func (s *profileStub) TerminateOtherSessions(context.Context, models.Actor) (int, error) {
	return 2, nil
}

func newProfileRoutes(h *harness) *profileStub {
	svc := &profileStub{validate: h.bundle, user: &models.User{ID: "u1", Role: models.RoleStudent, FullName: "Siti"}}
	handler := NewProfileHandler(svc, h.pages, false)
	auth := h.signIn(svc.user)
	h.engine.GET("/profile", auth, handler.Page)
	h.engine.POST("/profile/actions", auth, middleware.CSRF(profileForm), handler.Actions)
	return svc
}

func TestProfilePageUsesSessionActor(t *testing.T) {
	h := newHarness(t)
	svc := newProfileRoutes(h)

	w := h.get("/profile")

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, svc.actors, 1)
	assert.Equal(t, "u1", svc.actors[0].UserID)
	assert.Equal(t, "rec-1", svc.actors[0].SessionID)
}

func TestProfileActionRequiresCSRF(t *testing.T) {
	h := newHarness(t)
	newProfileRoutes(h)

	w := h.postJSON("/profile/actions", gin.H{"action": "get_profile"})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, decodeAction(t, w).Success)
}

func TestProfileUpdateValidationIsTranslated(t *testing.T) {
	h := newHarness(t)
	newProfileRoutes(h)
	token := h.csrf(profileForm)

	w := h.postJSONWithToken("/profile/actions", token, gin.H{"action": "update_profile", "full_name": "Si", "email": "nope"})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decodeAction(t, w)
	assert.Contains(t, body.Errors, "full_name")
	assert.Contains(t, body.Errors, "email")
}

func TestProfileChangePasswordWrongCurrent(t *testing.T) {
	h := newHarness(t)
	newProfileRoutes(h)
	token := h.csrf(profileForm)

	w := h.postJSONWithToken("/profile/actions", token, gin.H{"action": "change_password", "current_password": "x", "new_password": "N3w#Pass", "confirm_password": "N3w#Pass"})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "current password is incorrect", decodeAction(t, w).Errors["current_password"])
}

func TestProfilePreferencesSetLanguageCookie(t *testing.T) {
	h := newHarness(t)
	newProfileRoutes(h)
	token := h.csrf(profileForm)

	w := h.postJSONWithToken("/profile/actions", token, gin.H{"action": "update_preferences", "theme": "dark", "language": "fr", "email_notifications": true})

	require.Equal(t, http.StatusOK, w.Code)
	var found bool
	for _, ck := range w.Result().Cookies() {
		if ck.Name == middleware.LanguageCookie {
			found = true
			assert.Equal(t, "fr", ck.Value)
		}
	}
	assert.True(t, found)
}

func TestProfileTerminateCurrentSessionRefused(t *testing.T) {
	h := newHarness(t)
	svc := newProfileRoutes(h)
	token := h.csrf(profileForm)

	w := h.postJSONWithToken("/profile/actions", token, gin.H{"action": "terminate_session", "session_id": "rec-1"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = h.postJSONWithToken("/profile/actions", token, gin.H{"action": "terminate_session", "session_id": "rec-2"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"rec-2"}, svc.terminated)
}

func TestProfileBackupCodesReturnedOnce(t *testing.T) {
	h := newHarness(t)
	newProfileRoutes(h)
	token := h.csrf(profileForm)

	w := h.postJSONWithToken("/profile/actions", token, gin.H{"action": "generate_backup_codes"})

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeAction(t, w)
	assert.True(t, body.Success)
	assert.Equal(t, h.bundle.T("en", "profile.codes_once"), body.Message)
	assert.Contains(t, w.Body.String(), "ABCD-EFGH")
}
