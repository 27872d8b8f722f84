package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-portal/internal/dto"
	"github.com/noah-isme/sma-portal/internal/models"
	"github.com/noah-isme/sma-portal/internal/service"
	"github.com/noah-isme/sma-portal/pkg/session"
)

const registerForm = "register"

type registrationService interface {
	Enabled(ctx context.Context) bool
	Register(ctx context.Context, req dto.RegisterRequest, ip, userAgent string) (*models.User, *models.Student, error)
}

// RegistrationHandler serves student self-registration.
type RegistrationHandler struct {
	service registrationService
	pages   *Pages
}

// NewRegistrationHandler creates a new handler.
func NewRegistrationHandler(svc registrationService, pages *Pages) *RegistrationHandler {
	return &RegistrationHandler{service: svc, pages: pages}
}

type registerPage struct {
	Form     dto.RegisterRequest
	Disabled bool
	Grades   []int
	Rules    string
}

func (h *RegistrationHandler) page(c *gin.Context, form dto.RegisterRequest) (registerPage, bool) {
	enabled := h.service.Enabled(c.Request.Context())
	form.Password, form.ConfirmPassword = "", ""
	return registerPage{
		Form:     form,
		Disabled: !enabled,
		Grades:   []int{10, 11, 12},
		Rules:    h.pages.T(c, "password.rules"),
	}, enabled
}

// Page renders the registration form.
func (h *RegistrationHandler) Page(c *gin.Context) {
	page := h.pages.New(c, "register.title", registerForm)
	data, enabled := h.page(c, dto.RegisterRequest{})
	if !enabled {
		page.Error = h.pages.T(c, "register.disabled")
	}
	page.Data = data
	h.pages.Render(c, "register", page)
}

// Submit creates a pending student account.
func (h *RegistrationHandler) Submit(c *gin.Context) {
	var req dto.RegisterRequest
	page := h.pages.New(c, "register.title", registerForm)
	if err := c.ShouldBind(&req); err != nil {
		h.pages.Fail(c, &page, badForm(err))
		page.Data, _ = h.page(c, req)
		h.pages.Render(c, "register", page)
		return
	}

	if _, _, err := h.service.Register(c.Request.Context(), req, c.ClientIP(), c.GetHeader("User-Agent")); err != nil {
		h.pages.Fail(c, &page, err)
		if err == service.ErrRegistrationClosed {
			page.Error = h.pages.T(c, "register.disabled")
		}
		page.Data, _ = h.page(c, req)
		h.pages.Render(c, "register", page)
		return
	}

	if sess := session.From(c); sess != nil {
		sess.SetFlash(h.pages.T(c, "register.success"))
	}
	c.Redirect(http.StatusSeeOther, "/login")
}
