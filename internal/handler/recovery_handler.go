package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-portal/internal/dto"
	"github.com/noah-isme/sma-portal/internal/models"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
	"github.com/noah-isme/sma-portal/pkg/session"
	"github.com/noah-isme/sma-portal/pkg/view"
)

const (
	recoveryForm = "recovery"
	recoveryPath = "/forgot-password"
)

type recoveryService interface {
	Start(ctx context.Context, in dto.RecoveryStartRequest, ip, userAgent string) (*dto.RecoveryView, error)
	Verify(ctx context.Context, id string, in dto.RecoveryVerifyRequest, ip, userAgent string) (*dto.RecoveryView, error)
	Reset(ctx context.Context, id string, in dto.RecoveryResetRequest, ip, userAgent string) error
	Current(ctx context.Context, id string) (*dto.RecoveryView, error)
	Cancel(ctx context.Context, id string) error
}

// RecoveryHandler drives the forgot-password wizard. The session only holds
// the request id; the step always comes from the stored request.
type RecoveryHandler struct {
	service recoveryService
	pages   *Pages
}

// NewRecoveryHandler creates a new handler.
func NewRecoveryHandler(svc recoveryService, pages *Pages) *RecoveryHandler {
	return &RecoveryHandler{service: svc, pages: pages}
}

type recoveryPage struct {
	Step       models.RecoveryStep
	View       *dto.RecoveryView
	Methods    []models.RecoveryMethod
	Identifier string
	Rules      string
}

// stageFunc handles one POST of the wizard.
type stageFunc func(c *gin.Context, sess *session.Session) (ActionResult, *dto.RecoveryView)

// Page renders the step of the request held in the session, or step 1.
func (h *RecoveryHandler) Page(c *gin.Context) {
	sess := session.From(c)
	page := h.pages.New(c, "recovery.title", recoveryForm)
	data := recoveryPage{Step: models.RecoveryStepIdentify, Methods: models.RecoveryMethods}

	if id := sess.RecoveryID(); id != "" {
		current, err := h.service.Current(c.Request.Context(), id)
		switch {
		case err != nil:
			sess.SetRecoveryID("")
			if !errors.Is(err, appErrors.ErrNotFound) {
				h.pages.Fail(c, &page, err)
				page.Status = http.StatusOK
			}
		case current.Step == models.RecoveryStepDone:
			sess.SetRecoveryID("")
			data.Step = models.RecoveryStepDone
		default:
			data.Step, data.View = current.Step, current
		}
	}
	h.render(c, page, data)
}

// Submit dispatches the wizard stage named by the form field "stage".
func (h *RecoveryHandler) Submit(c *gin.Context) {
	stages := map[string]stageFunc{
		"start":  h.start,
		"verify": h.verify,
		"reset":  h.reset,
		"cancel": h.cancel,
	}
	sess := session.From(c)
	stage, ok := stages[c.PostForm("stage")]
	var (
		result  ActionResult
		current *dto.RecoveryView
	)
	if ok {
		result, current = stage(c, sess)
	} else {
		result = h.pages.Failed(c, ErrUnknownAction)
	}

	if result.Kind == KindSuccess {
		if result.Message != "" {
			sess.SetFlash(result.Message)
		}
		target, _ := result.Data.(string)
		if target == "" {
			target = recoveryPath
		}
		c.Redirect(http.StatusSeeOther, target)
		return
	}

	page := h.pages.New(c, "recovery.title", recoveryForm)
	page.Status = result.Err.Status
	page.Error = result.Message
	page.Errors = result.Err.Fields
	data := recoveryPage{Step: models.RecoveryStepIdentify, Methods: models.RecoveryMethods, Identifier: c.PostForm("identifier")}
	if current == nil && sess.RecoveryID() != "" {
		current, _ = h.service.Current(c.Request.Context(), sess.RecoveryID())
	}
	if current != nil {
		data.Step, data.View = current.Step, current
	}
	h.render(c, page, data)
}

// VerifyLink completes step 2 from the emailed link.
func (h *RecoveryHandler) VerifyLink(c *gin.Context) {
	sess := session.From(c)
	id, token := c.Query("rid"), c.Query("token")
	if id == "" || token == "" {
		c.Redirect(http.StatusSeeOther, recoveryPath)
		return
	}
	sess.SetRecoveryID(id)
	current, err := h.service.Verify(c.Request.Context(), id, dto.RecoveryVerifyRequest{Code: token}, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		page := h.pages.New(c, "recovery.title", recoveryForm)
		h.pages.Fail(c, &page, err)
		data := recoveryPage{Step: models.RecoveryStepIdentify, Methods: models.RecoveryMethods}
		if current != nil {
			data.Step, data.View = current.Step, current
		} else {
			sess.SetRecoveryID("")
		}
		h.render(c, page, data)
		return
	}
	c.Redirect(http.StatusSeeOther, recoveryPath)
}

func (h *RecoveryHandler) start(c *gin.Context, sess *session.Session) (ActionResult, *dto.RecoveryView) {
	var in dto.RecoveryStartRequest
	if err := c.ShouldBind(&in); err != nil {
		return h.pages.Failed(c, badForm(err)), nil
	}
	if previous := sess.RecoveryID(); previous != "" {
		_ = h.service.Cancel(c.Request.Context(), previous)
		sess.SetRecoveryID("")
	}
	started, err := h.service.Start(c.Request.Context(), in, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		return h.pages.Failed(c, err), nil
	}
	sess.SetRecoveryID(started.ID)
	message := ""
	switch started.Method {
	case models.RecoveryMethodEmail:
		message = h.pages.T(c, "recovery.link_sent", started.Destination)
	case models.RecoveryMethodSMS:
		message = h.pages.T(c, "recovery.code_sent", started.Destination)
	}
	return OK(message, nil), started
}

func (h *RecoveryHandler) verify(c *gin.Context, sess *session.Session) (ActionResult, *dto.RecoveryView) {
	id := sess.RecoveryID()
	if id == "" {
		return h.pages.Failed(c, appErrors.ErrInvalidStep), nil
	}
	var in dto.RecoveryVerifyRequest
	if err := c.ShouldBind(&in); err != nil {
		return h.pages.Failed(c, badForm(err)), nil
	}
	current, err := h.service.Verify(c.Request.Context(), id, in, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		if current == nil && !errors.Is(err, appErrors.ErrTooManyAttempts) {
			sess.SetRecoveryID("")
		}
		return h.pages.Failed(c, err), current
	}
	return OK("", nil), current
}

func (h *RecoveryHandler) reset(c *gin.Context, sess *session.Session) (ActionResult, *dto.RecoveryView) {
	id := sess.RecoveryID()
	if id == "" {
		return h.pages.Failed(c, appErrors.ErrInvalidStep), nil
	}
	var in dto.RecoveryResetRequest
	if err := c.ShouldBind(&in); err != nil {
		return h.pages.Failed(c, badForm(err)), nil
	}
	if err := h.service.Reset(c.Request.Context(), id, in, c.ClientIP(), c.GetHeader("User-Agent")); err != nil {
		return h.pages.Failed(c, err), nil
	}
	sess.SetRecoveryID("")
	return OK(h.pages.T(c, "recovery.done"), "/login"), nil
}

func (h *RecoveryHandler) cancel(c *gin.Context, sess *session.Session) (ActionResult, *dto.RecoveryView) {
	if id := sess.RecoveryID(); id != "" {
		if err := h.service.Cancel(c.Request.Context(), id); err != nil {
			return h.pages.Failed(c, err), nil
		}
		sess.SetRecoveryID("")
	}
	return OK("", nil), nil
}

func (h *RecoveryHandler) render(c *gin.Context, page view.Page, data recoveryPage) {
	data.Rules = h.pages.T(c, "password.rules")
	page.Data = data
	h.pages.Render(c, "recovery", page)
}
