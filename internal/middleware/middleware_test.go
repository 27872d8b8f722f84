package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-portal/internal/models"
	"github.com/noah-isme/sma-portal/internal/service"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
	"github.com/noah-isme/sma-portal/pkg/i18n"
	"github.com/noah-isme/sma-portal/pkg/response"
	"github.com/noah-isme/sma-portal/pkg/session"
	"github.com/noah-isme/sma-portal/pkg/view"
)

type resolverStub struct {
	user *models.User
	err  error
}

func (r resolverStub) ResolveSession(_ context.Context, userID, recordID string) (*models.User, *models.UserSession, error) {
	if r.err != nil {
		return nil, nil, r.err
	}
	return r.user, &models.UserSession{ID: recordID, UserID: userID}, nil
}

type recorderStub struct {
	entries []service.ActivityEntry
	actors  []models.Actor
}

func (r *recorderStub) Record(_ context.Context, actor models.Actor, entry service.ActivityEntry) {
	r.actors = append(r.actors, actor)
	r.entries = append(r.entries, entry)
}

type maintenanceStub bool

func (m maintenanceStub) MaintenanceMode(context.Context) bool { return bool(m) }

var testPages = fstest.MapFS{
	"layout.html":      {Data: []byte(`<html>{{template "content" .}}</html>`)},
	"pages/error.html": {Data: []byte(`{{define "content"}}{{.Status}}: {{.Error}}{{end}}`)},
}

type plainTranslator struct{}

func (plainTranslator) T(_, key string, _ ...string) string { return key }

func newRouter(t *testing.T) (*gin.Engine, *session.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	renderer, err := view.New(testPages, plainTranslator{})
	require.NoError(t, err)

	store := session.NewMemoryStore()
	manager := session.NewManager(store, session.Options{CookieName: "sid", TTL: time.Hour}, zap.NewNop())
	r := gin.New()
	r.HTMLRender = renderer
	r.Use(manager.Middleware())
	r.GET("/seed", func(c *gin.Context) {
		sess := session.From(c)
		if id := c.Query("user"); id != "" {
			sess.SetUser(id, "rec-1")
		}
		if lang := c.Query("lang"); lang != "" {
			sess.SetLang(lang)
		}
		c.String(http.StatusOK, sess.CSRFToken(c.DefaultQuery("form", "profile")))
	})
	return r, store
}

// seed returns a cookie for a session prepared through /seed and the CSRF token it issued.
func seed(t *testing.T, r *gin.Engine, query string) (*http.Cookie, string) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/seed?"+query, nil))
	require.Equal(t, http.StatusOK, w.Code)
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "sid" {
			return ck, w.Body.String()
		}
	}
	t.Fatal("session cookie missing")
	return nil, ""
}

func serve(r *gin.Engine, req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireLoginRedirectsPages(t *testing.T) {
	r, _ := newRouter(t)
	r.GET("/dashboard", RequireLogin(resolverStub{}, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/dashboard", nil), nil)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?next="+url.QueryEscape("/dashboard"), w.Header().Get("Location"))
}

func TestRequireLoginAnswersAjaxWithJSON(t *testing.T) {
	r, _ := newRouter(t)
	r.POST("/profile/actions", RequireLogin(resolverStub{}, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/profile/actions", nil)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	w := serve(r, req, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var body response.ActionBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
}

func TestRequireLoginLoadsUser(t *testing.T) {
	r, _ := newRouter(t)
	user := &models.User{ID: "u1", Role: models.RoleStudent}
	var actor models.Actor
	r.GET("/dashboard", RequireLogin(resolverStub{user: user}, time.Minute), func(c *gin.Context) {
		assert.Same(t, user, CurrentUser(c))
		actor = Actor(c)
		c.Status(http.StatusOK)
	})
	cookie, _ := seed(t, r, "user=u1")

	w := serve(r, httptest.NewRequest(http.MethodGet, "/dashboard", nil), cookie)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", actor.UserID)
	assert.Equal(t, "rec-1", actor.SessionID)
}

func TestRequireLoginSignsOutRevokedSession(t *testing.T) {
	r, _ := newRouter(t)
	resolver := resolverStub{err: appErrors.Clone(appErrors.ErrUnauthorized, "session revoked")}
	r.GET("/dashboard", RequireLogin(resolver, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })
	var userAfter string
	r.GET("/whoami", func(c *gin.Context) {
		userAfter = session.From(c).UserID()
		c.Status(http.StatusOK)
	})
	cookie, _ := seed(t, r, "user=u1")

	w := serve(r, httptest.NewRequest(http.MethodGet, "/dashboard", nil), cookie)
	assert.Equal(t, http.StatusFound, w.Code)

	serve(r, httptest.NewRequest(http.MethodGet, "/whoami", nil), cookie)
	assert.Empty(t, userAfter)
}

func TestGuestOnlyRedirectsSignedInUsers(t *testing.T) {
	r, _ := newRouter(t)
	r.GET("/login", GuestOnly(), func(c *gin.Context) { c.Status(http.StatusOK) })
	cookie, _ := seed(t, r, "user=u1")

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/login", nil), nil).Code)
	w := serve(r, httptest.NewRequest(http.MethodGet, "/login", nil), cookie)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))
}

func TestCSRFRejectsMismatch(t *testing.T) {
	r, _ := newRouter(t)
	r.POST("/profile/actions", CSRF("profile"), func(c *gin.Context) { c.Status(http.StatusOK) })
	cookie, token := seed(t, r, "form=profile")

	req := httptest.NewRequest(http.MethodPost, "/profile/actions", strings.NewReader(`{"action":"get_profile"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(CSRFHeader, "forged")
	w := serve(r, req, cookie)

	assert.Equal(t, http.StatusForbidden, w.Code)
	var body response.ActionBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, appErrors.ErrCSRF.Message, body.Message)

	req = httptest.NewRequest(http.MethodPost, "/profile/actions", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(CSRFHeader, token)
	assert.Equal(t, http.StatusOK, serve(r, req, cookie).Code)
}

func TestCSRFAcceptsFormField(t *testing.T) {
	r, _ := newRouter(t)
	r.POST("/login", CSRF("login"), func(c *gin.Context) { c.Status(http.StatusOK) })
	cookie, token := seed(t, r, "form=login")

	form := url.Values{CSRFField: {token}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusOK, serve(r, req, cookie).Code)

	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("csrf_token=nope"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := serve(r, req, cookie)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "403")
}

func TestLanguageResolutionOrder(t *testing.T) {
	bundle, err := i18n.New("en", []string{"en", "id", "fr"})
	require.NoError(t, err)
	r, _ := newRouter(t)
	var lang string
	r.GET("/", Language(bundle), func(c *gin.Context) {
		lang = view.Lang(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	serve(r, req, nil)
	assert.Equal(t, "en", lang)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "de-DE,fr;q=0.8,id;q=0.5")
	serve(r, req, nil)
	assert.Equal(t, "fr", lang)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "fr")
	req.AddCookie(&http.Cookie{Name: LanguageCookie, Value: "id"})
	serve(r, req, nil)
	assert.Equal(t, "id", lang)

	cookie, _ := seed(t, r, "lang=fr")
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: LanguageCookie, Value: "id"})
	serve(r, req, cookie)
	assert.Equal(t, "fr", lang)
}

func TestRequireAdminForbidsStudents(t *testing.T) {
	r, _ := newRouter(t)
	user := &models.User{ID: "u1", Role: models.RoleStudent}
	r.GET("/settings", RequireLogin(resolverStub{user: user}, 0), RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })
	cookie, _ := seed(t, r, "user=u1")

	w := serve(r, httptest.NewRequest(http.MethodGet, "/settings", nil), cookie)
	assert.Equal(t, http.StatusForbidden, w.Code)

	user.Role = models.RoleAdmin
	w = serve(r, httptest.NewRequest(http.MethodGet, "/settings", nil), cookie)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRolesUsesTokenClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/v1/admin", func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleTeacher})
	}, RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/admin", nil), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, appErrors.ErrForbidden.Code, env.Error.Code)
}

func TestMaintenanceBlocksNonAdmins(t *testing.T) {
	r, _ := newRouter(t)
	user := &models.User{ID: "u1", Role: models.RoleTeacher}
	r.GET("/dashboard", RequireLogin(resolverStub{user: user}, 0), Maintenance(maintenanceStub(true)), func(c *gin.Context) { c.Status(http.StatusOK) })
	cookie, _ := seed(t, r, "user=u1")

	w := serve(r, httptest.NewRequest(http.MethodGet, "/dashboard", nil), cookie)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrMaintenance.Message)

	user.Role = models.RoleSuperAdmin
	w = serve(r, httptest.NewRequest(http.MethodGet, "/dashboard", nil), cookie)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	r, _ := newRouter(t)
	recorder := &recorderStub{}
	user := &models.User{ID: "u1", Role: models.RoleAdmin}
	r.GET("/files/:token", RequireLogin(resolverStub{user: user}, 0), Audit(recorder, models.AuditActionBackupDownload, "backup", "token"),
		func(c *gin.Context) {
			if c.Param("token") == "bad" {
				c.Status(http.StatusForbidden)
				return
			}
			c.Status(http.StatusOK)
		})
	cookie, _ := seed(t, r, "user=u1")

	serve(r, httptest.NewRequest(http.MethodGet, "/files/abc", nil), cookie)
	serve(r, httptest.NewRequest(http.MethodGet, "/files/bad", nil), cookie)

	require.Len(t, recorder.entries, 1)
	assert.Equal(t, models.AuditActionBackupDownload, recorder.entries[0].Action)
	assert.Equal(t, "abc", recorder.entries[0].ResourceID)
	assert.Equal(t, "u1", recorder.actors[0].UserID)
}

func TestResponseMetaCarriesCacheFlag(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var meta map[string]interface{}
	r.GET("/", WithResponseMeta(), func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ResponseMeta(c)
		c.Status(http.StatusOK)
	})

	serve(r, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.Equal(t, true, meta["cache_hit"])
	assert.Contains(t, meta, "processing_time_ms")
}
