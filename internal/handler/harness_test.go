package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-portal/internal/middleware"
	"github.com/noah-isme/sma-portal/internal/models"
	"github.com/noah-isme/sma-portal/pkg/i18n"
	"github.com/noah-isme/sma-portal/pkg/response"
	"github.com/noah-isme/sma-portal/pkg/session"
	"github.com/noah-isme/sma-portal/pkg/view"
)

const pageBody = `{{define "content"}}status={{.Status}}|error={{.Error}}|success={{.Success}}|flash={{.Flash}}|{{range $k, $v := .Errors}}field:{{$k}};{{end}}{{end}}`

var testTemplates = fstest.MapFS{
	"layout.html":          {Data: []byte(`{{template "content" .}}`)},
	"pages/error.html":     {Data: []byte(pageBody)},
	"pages/login.html":     {Data: []byte(pageBody)},
	"pages/register.html":  {Data: []byte(pageBody)},
	"pages/profile.html":   {Data: []byte(pageBody)},
	"pages/settings.html":  {Data: []byte(pageBody)},
	"pages/dashboard.html": {Data: []byte(`{{define "content"}}{{with .Data.Stats}}students={{.TotalStudents}}{{end}}{{with .Data.Student}}code={{.Student.StudentCode}}{{end}}{{end}}`)},
	"pages/recovery.html":  {Data: []byte(`{{define "content"}}step={{.Data.Step}}|error={{.Error}}|flash={{.Flash}}{{end}}`)},
}

type resolverStub struct {
	user *models.User
}

func (r resolverStub) ResolveSession(_ context.Context, userID, recordID string) (*models.User, *models.UserSession, error) {
	return r.user, &models.UserSession{ID: recordID, UserID: userID}, nil
}

type harness struct {
	t       *testing.T
	engine  *gin.Engine
	manager *session.Manager
	pages   *Pages
	bundle  *i18n.Bundle
	user    *models.User
	cookie  *http.Cookie
	tokens  map[string]string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	bundle, err := i18n.New("en", []string{"en", "id", "fr"})
	require.NoError(t, err)
	renderer, err := view.New(testTemplates, bundle)
	require.NoError(t, err)

	h := &harness{
		t:       t,
		bundle:  bundle,
		manager: session.NewManager(session.NewMemoryStore(), session.Options{CookieName: "sid", TTL: time.Hour}, zap.NewNop()),
		pages:   NewPages("SMA Portal", bundle, nil, zap.NewNop()),
		tokens:  map[string]string{},
	}
	h.engine = gin.New()
	h.engine.HTMLRender = renderer
	h.engine.Use(h.manager.Middleware(), middleware.Language(bundle))
	h.engine.GET("/_seed", func(c *gin.Context) {
		sess := session.From(c)
		if id := c.Query("user"); id != "" {
			sess.SetUser(id, "rec-1")
		}
		if rid := c.Query("recovery"); rid != "" {
			sess.SetRecoveryID(rid)
		}
		c.String(http.StatusOK, sess.CSRFToken(c.Query("form")))
	})
	return h
}

// signIn makes every later request come from user with a live session.
func (h *harness) signIn(user *models.User) gin.HandlerFunc {
	h.user = user
	h.seed("user=" + user.ID)
	return middleware.RequireLogin(resolverStub{user: user}, 0)
}

func (h *harness) seed(query string) {
	h.t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/_seed?"+query, nil)
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	require.Equal(h.t, http.StatusOK, w.Code)
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "sid" {
			h.cookie = ck
		}
	}
}

// csrf issues the token of form on the current session.
func (h *harness) csrf(form string) string {
	h.t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/_seed?form="+form, nil)
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "sid" {
			h.cookie = ck
		}
	}
	return w.Body.String()
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "sid" && ck.MaxAge >= 0 {
			h.cookie = ck
		}
	}
	return w
}

func (h *harness) get(path string) *httptest.ResponseRecorder {
	return h.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (h *harness) postForm(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.do(req)
}

func (h *harness) postJSON(path string, payload interface{}) *httptest.ResponseRecorder {
	body, err := json.Marshal(payload)
	require.NoError(h.t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	return h.do(req)
}

func decodeAction(t *testing.T, w *httptest.ResponseRecorder) response.ActionBody {
	t.Helper()
	var body response.ActionBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func (h *harness) postJSONWithToken(path, token string, payload interface{}) *httptest.ResponseRecorder {
	body, err := json.Marshal(payload)
	require.NoError(h.t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set(middleware.CSRFHeader, token)
	return h.do(req)
}
