package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
	"github.com/noah-isme/sma-portal/pkg/response"
)

// ResultKind classifies the outcome of a form or AJAX action.
type ResultKind string

const (
	KindSuccess ResultKind = "success"
	KindInvalid ResultKind = "invalid"
	KindFatal   ResultKind = "fatal"
)

// ActionResult is what every action returns instead of writing the response itself.
type ActionResult struct {
	Kind    ResultKind
	Message string
	Data    interface{}
	Err     *appErrors.Error
}

// OK builds a success result.
func OK(message string, data interface{}) ActionResult {
	return ActionResult{Kind: KindSuccess, Message: message, Data: data}
}

// actionFunc handles one named action. body is the raw JSON request.
type actionFunc func(c *gin.Context, body []byte) ActionResult

// ErrUnknownAction answers actions missing from the map.
var ErrUnknownAction = appErrors.Clone(appErrors.ErrValidation, "unknown action")

const maxActionBody = 1 << 20

// Failed classifies err: internal errors are fatal, everything else invalid.
func (p *Pages) Failed(c *gin.Context, err error) ActionResult {
	appErr := p.Localize(c, err)
	kind := KindInvalid
	if appErr.Status >= http.StatusInternalServerError && appErr.Status != http.StatusServiceUnavailable {
		kind = KindFatal
	}
	return ActionResult{Kind: kind, Message: appErr.Message, Err: appErr}
}

// Dispatch reads the JSON body, runs the action it names and writes the result.
func (p *Pages) Dispatch(c *gin.Context, actions map[string]actionFunc) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxActionBody))
	if err != nil {
		p.Write(c, p.Failed(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request body")))
		return
	}
	var envelope struct {
		Action string `json:"action"`
	}
	if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &envelope) != nil {
		p.Write(c, p.Failed(c, appErrors.Clone(appErrors.ErrValidation, "request body must be a JSON object")))
		return
	}
	handle, ok := actions[envelope.Action]
	if !ok {
		p.Write(c, p.Failed(c, ErrUnknownAction))
		return
	}
	p.Write(c, handle(c, body))
}

// Write renders an action result as the AJAX action body.
func (p *Pages) Write(c *gin.Context, result ActionResult) {
	switch result.Kind {
	case KindSuccess:
		response.ActionOK(c, result.Message, result.Data)
	default:
		err := result.Err
		if err == nil {
			err = appErrors.Clone(appErrors.ErrInternal, "")
		}
		response.ActionError(c, err)
	}
}

// bind decodes an action payload into dst.
func bind(body []byte, dst interface{}) error {
	if err := json.Unmarshal(body, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return appErrors.Field(typeErr.Field, "has the wrong type")
		}
		return appErrors.Clone(appErrors.ErrValidation, "invalid request payload")
	}
	return nil
}
