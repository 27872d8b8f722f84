package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/sma-portal/internal/models"
)

var adminActor = models.Actor{UserID: "admin-1", Role: models.RoleAdmin, IP: "10.0.0.1"}

type activityStub struct {
	mu      sync.Mutex
	entries []ActivityEntry
	actors  []models.Actor
}

func (a *activityStub) Record(_ context.Context, actor models.Actor, entry ActivityEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	a.actors = append(a.actors, actor)
}

func (a *activityStub) Recent(_ context.Context, _ string, limit int) ([]models.AuditLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []models.AuditLog
	for i := len(a.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, models.AuditLog{Action: a.entries[i].Action})
	}
	return out, nil
}

func (a *activityStub) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

// userRepoStub is an in-memory user store shared by the service tests.
type userRepoStub struct {
	user             *models.User
	users            map[string]*models.User
	student          *models.Student
	created          *models.User
	createdStudent   *models.Student
	createErr        error
	lastLoginUpdated bool
	taken            map[string]bool
	statuses         map[string]models.UserStatus
	listed           models.UserFilter
	lastSteps        map[string]int64
}

func newUserRepoStub(user *models.User) *userRepoStub {
	stub := &userRepoStub{user: user, users: map[string]*models.User{}, taken: map[string]bool{}, statuses: map[string]models.UserStatus{}, lastSteps: map[string]int64{}}
	if user != nil {
		stub.users[user.ID] = user
	}
	return stub
}

func (u *userRepoStub) find(match func(*models.User) bool) (*models.User, error) {
	for _, user := range u.users {
		if match(user) {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (u *userRepoStub) FindByID(_ context.Context, id string) (*models.User, error) {
	return u.find(func(m *models.User) bool { return m.ID == id })
}

func (u *userRepoStub) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return u.find(func(m *models.User) bool { return strings.EqualFold(m.Email, email) })
}

func (u *userRepoStub) FindByIdentifier(_ context.Context, identifier string) (*models.User, error) {
	return u.find(func(m *models.User) bool {
		return strings.EqualFold(m.Username, identifier) || strings.EqualFold(m.Email, identifier)
	})
}

func (u *userRepoStub) FindByAPIKey(_ context.Context, apiKey string) (*models.User, error) {
	return u.find(func(m *models.User) bool { return m.APIKey != nil && *m.APIKey == apiKey })
}

func (u *userRepoStub) UsernameTaken(_ context.Context, username, excludeID string) (bool, error) {
	if u.taken["username:"+strings.ToLower(username)] {
		return true, nil
	}
	_, err := u.find(func(m *models.User) bool { return m.ID != excludeID && strings.EqualFold(m.Username, username) })
	return err == nil, nil
}

func (u *userRepoStub) EmailTaken(_ context.Context, email, excludeID string) (bool, error) {
	if u.taken["email:"+strings.ToLower(email)] {
		return true, nil
	}
	_, err := u.find(func(m *models.User) bool { return m.ID != excludeID && strings.EqualFold(m.Email, email) })
	return err == nil, nil
}

func (u *userRepoStub) UpdateLastLogin(_ context.Context, id string, ts time.Time) error {
	u.lastLoginUpdated = true
	if user, ok := u.users[id]; ok {
		user.LastLogin = &ts
	}
	return nil
}

func (u *userRepoStub) UpdateProfile(_ context.Context, user *models.User) error {
	u.users[user.ID] = user
	return nil
}

func (u *userRepoStub) UpdatePreferences(_ context.Context, user *models.User) error {
	u.users[user.ID] = user
	return nil
}

func (u *userRepoStub) UpdateLanguage(_ context.Context, id, lang string) error {
	if user, ok := u.users[id]; ok {
		user.Language = lang
	}
	return nil
}

func (u *userRepoStub) UpdateStatus(_ context.Context, id string, status models.UserStatus) error {
	user, ok := u.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.Status = status
	u.statuses[id] = status
	return nil
}

func (u *userRepoStub) UpdateTwoFactor(_ context.Context, id string, secret *string, enabled bool) error {
	if user, ok := u.users[id]; ok {
		if user.TwoFactorSecret == nil || secret == nil || *user.TwoFactorSecret != *secret {
			delete(u.lastSteps, id)
		}
		user.TwoFactorSecret, user.TwoFactorEnabled = secret, enabled
	}
	return nil
}

func (u *userRepoStub) ClaimTwoFactorStep(_ context.Context, id string, step int64) (bool, error) {
	if last, ok := u.lastSteps[id]; ok && last >= step {
		return false, nil
	}
	u.lastSteps[id] = step
	return true, nil
}

func (u *userRepoStub) UpdateAPICredentials(_ context.Context, id, apiKey, secretHash string) error {
	if user, ok := u.users[id]; ok {
		user.APIKey, user.APISecretHash = &apiKey, &secretHash
	}
	return nil
}

func (u *userRepoStub) List(_ context.Context, filter models.UserFilter) ([]models.User, int, error) {
	u.listed = filter
	out := make([]models.User, 0, len(u.users))
	for _, user := range u.users {
		if filter.Status != nil && user.Status != *filter.Status {
			continue
		}
		out = append(out, *user)
	}
	return out, len(out), nil
}

func (u *userRepoStub) CreateStudentAccount(_ context.Context, user *models.User, student *models.Student) error {
	if u.createErr != nil {
		return u.createErr
	}
	user.ID = "new-user"
	student.UserID = user.ID
	student.StudentCode = "STD20240001"
	u.created, u.createdStudent = user, student
	u.users[user.ID] = user
	return nil
}

func (u *userRepoStub) FindStudentByUserID(_ context.Context, userID string) (*models.Student, error) {
	if u.student == nil || u.student.UserID != userID {
		return nil, sql.ErrNoRows
	}
	return u.student, nil
}

// credentialStub stores backup codes, security questions and password history.
type credentialStub struct {
	backupCodes []models.BackupCode
	questions   []models.SecurityQuestion
	history     []string
	changed     string
	changeErr   error
}

func (c *credentialStub) ReplaceBackupCodes(_ context.Context, userID string, hashes []string) error {
	c.backupCodes = nil
	for i, hash := range hashes {
		c.backupCodes = append(c.backupCodes, models.BackupCode{ID: fmt.Sprintf("bc-%d", i), UserID: userID, CodeHash: hash})
	}
	return nil
}

func (c *credentialStub) ListUnusedBackupCodes(_ context.Context, _ string) ([]models.BackupCode, error) {
	var out []models.BackupCode
	for _, code := range c.backupCodes {
		if code.UsedAt == nil {
			out = append(out, code)
		}
	}
	return out, nil
}

func (c *credentialStub) MarkBackupCodeUsed(_ context.Context, id string) (bool, error) {
	for i := range c.backupCodes {
		if c.backupCodes[i].ID == id && c.backupCodes[i].UsedAt == nil {
			now := time.Now()
			c.backupCodes[i].UsedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (c *credentialStub) ReplaceSecurityQuestions(_ context.Context, userID string, questions []models.SecurityQuestion) error {
	for i := range questions {
		questions[i].UserID = userID
	}
	c.questions = questions
	return nil
}

func (c *credentialStub) ListSecurityQuestions(_ context.Context, _ string) ([]models.SecurityQuestion, error) {
	return c.questions, nil
}

func (c *credentialStub) RecentPasswordHashes(_ context.Context, _ string, limit int) ([]string, error) {
	if len(c.history) > limit {
		return c.history[:limit], nil
	}
	return c.history, nil
}

func (c *credentialStub) ChangePassword(_ context.Context, _ string, hash string) error {
	if c.changeErr != nil {
		return c.changeErr
	}
	c.changed = hash
	c.history = append([]string{hash}, c.history...)
	return nil
}
