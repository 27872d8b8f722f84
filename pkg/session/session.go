// Package session keeps browser session state on the server. The cookie
// carries a random token; state is stored under the token's sha256.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const contextKey = "session"

// ErrNotFound is returned by stores for unknown or expired keys.
var ErrNotFound = errors.New("session not found")

// Data is the serialised session state.
type Data struct {
	UserID     string            `json:"user_id,omitempty"`
	RecordID   string            `json:"record_id,omitempty"`
	Lang       string            `json:"lang,omitempty"`
	CSRF       map[string]string `json:"csrf,omitempty"`
	RecoveryID string            `json:"recovery_id,omitempty"`
	Flash      string            `json:"flash,omitempty"`
	TouchedAt  time.Time         `json:"touched_at"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Store persists session data.
type Store interface {
	Load(ctx context.Context, key string) (*Data, error)
	Save(ctx context.Context, key string, data *Data, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Options configures the session cookie.
type Options struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Session is the request-scoped view of one session.
type Session struct {
	data         Data
	key          string
	isNew        bool
	dirty        bool
	destroyed    bool
	onFirstWrite func()
}

// Key returns the storage key (sha256 of the cookie token).
func (s *Session) Key() string { return s.key }

// UserID returns the logged-in user, if any.
func (s *Session) UserID() string { return s.data.UserID }

// RecordID returns the user_sessions row of the current login.
func (s *Session) RecordID() string { return s.data.RecordID }

// Lang returns the language stored in the session.
func (s *Session) Lang() string { return s.data.Lang }

// RecoveryID returns the recovery request bound to this browser.
func (s *Session) RecoveryID() string { return s.data.RecoveryID }

// TouchedAt returns when the session was last marked active.
func (s *Session) TouchedAt() time.Time { return s.data.TouchedAt }

// SetUser binds a login to the session.
func (s *Session) SetUser(userID, recordID string) {
	s.data.UserID = userID
	s.data.RecordID = recordID
	s.markDirty()
}

// SetLang stores the preferred language.
func (s *Session) SetLang(lang string) {
	if s.data.Lang == lang {
		return
	}
	s.data.Lang = lang
	s.markDirty()
}

// SetRecoveryID binds (or clears with "") a recovery request.
func (s *Session) SetRecoveryID(id string) {
	s.data.RecoveryID = id
	s.markDirty()
}

// Touch records activity at now.
func (s *Session) Touch(now time.Time) {
	s.data.TouchedAt = now
	s.markDirty()
}

// SetFlash stores a one-shot message shown on the next page.
func (s *Session) SetFlash(message string) {
	s.data.Flash = message
	s.markDirty()
}

// PopFlash returns and clears the flash message.
func (s *Session) PopFlash() string {
	msg := s.data.Flash
	if msg != "" {
		s.data.Flash = ""
		s.markDirty()
	}
	return msg
}

// CSRFToken returns the token of form, issuing one on first use.
func (s *Session) CSRFToken(form string) string {
	if token, ok := s.data.CSRF[form]; ok && token != "" {
		return token
	}
	if s.data.CSRF == nil {
		s.data.CSRF = make(map[string]string)
	}
	token := randomHex(32)
	s.data.CSRF[form] = token
	s.markDirty()
	return token
}

// VerifyCSRF compares supplied with the stored token of form in constant time.
func (s *Session) VerifyCSRF(form, supplied string) bool {
	expected, ok := s.data.CSRF[form]
	if !ok || expected == "" || supplied == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(supplied)) == 1
}

func (s *Session) markDirty() {
	s.dirty = true
	if s.isNew && s.onFirstWrite != nil {
		s.onFirstWrite()
		s.onFirstWrite = nil
	}
}

// Manager issues cookies and loads/saves state around each request.
type Manager struct {
	store  Store
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

// NewManager constructs a session manager.
func NewManager(store Store, opts Options, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CookieName == "" {
		opts.CookieName = "sma_session"
	}
	if opts.TTL <= 0 {
		opts.TTL = 12 * time.Hour
	}
	return &Manager{store: store, opts: opts, logger: logger, now: time.Now}
}

// KeyFor hashes a cookie token into its storage key.
func KeyFor(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Middleware attaches the session to the gin context and persists changes.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := m.load(c)
		c.Set(contextKey, sess)

		c.Next()

		current := From(c)
		if current == nil || current.destroyed || !current.dirty {
			return
		}
		if err := m.store.Save(c.Request.Context(), current.key, &current.data, m.opts.TTL); err != nil {
			m.logger.Warn("failed to persist session", zap.Error(err))
		}
	}
}

func (m *Manager) load(c *gin.Context) *Session {
	if token, err := c.Cookie(m.opts.CookieName); err == nil && token != "" {
		key := KeyFor(token)
		data, err := m.store.Load(c.Request.Context(), key)
		if err == nil {
			return &Session{data: *data, key: key}
		}
		if !errors.Is(err, ErrNotFound) {
			m.logger.Warn("failed to load session", zap.Error(err))
		}
	}
	return m.fresh(c, Data{})
}

func (m *Manager) fresh(c *gin.Context, data Data) *Session {
	token := randomHex(32)
	data.CreatedAt = m.now().UTC()
	sess := &Session{data: data, key: KeyFor(token), isNew: true}
	sess.onFirstWrite = func() { m.writeCookie(c, token, int(m.opts.TTL.Seconds())) }
	return sess
}

// Regenerate moves the session state to a new token, discarding the old key.
// Call on privilege changes such as login.
func (m *Manager) Regenerate(c *gin.Context) *Session {
	old := From(c)
	var carried Data
	if old != nil {
		carried = Data{Lang: old.data.Lang, CSRF: old.data.CSRF}
		if !old.isNew {
			if err := m.store.Delete(c.Request.Context(), old.key); err != nil {
				m.logger.Warn("failed to delete previous session", zap.Error(err))
			}
		}
	}
	sess := m.fresh(c, carried)
	sess.markDirty()
	c.Set(contextKey, sess)
	return sess
}

// Destroy removes the session state and expires the cookie.
func (m *Manager) Destroy(c *gin.Context) {
	sess := From(c)
	if sess == nil {
		return
	}
	sess.destroyed = true
	if err := m.store.Delete(c.Request.Context(), sess.key); err != nil {
		m.logger.Warn("failed to destroy session", zap.Error(err))
	}
	m.writeCookie(c, "", -1)
}

// Revoke deletes the state stored under key, ending that browser's login.
func (m *Manager) Revoke(ctx context.Context, key string) error {
	return m.store.Delete(ctx, key)
}

func (m *Manager) writeCookie(c *gin.Context, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   m.opts.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// From returns the session attached by Middleware.
func From(c *gin.Context) *Session {
	if v, ok := c.Get(contextKey); ok {
		if sess, ok := v.(*Session); ok {
			return sess
		}
	}
	return nil
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic("session: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(buf)
}
