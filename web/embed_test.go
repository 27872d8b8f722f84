package web

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-portal/internal/dto"
	"github.com/noah-isme/sma-portal/internal/models"
	"github.com/noah-isme/sma-portal/pkg/i18n"
	"github.com/noah-isme/sma-portal/pkg/view"
)

func newRenderer(t *testing.T) (*view.Renderer, *i18n.Bundle) {
	t.Helper()
	bundle, err := i18n.New("en", []string{"en", "id", "fr"})
	require.NoError(t, err)
	templates, err := Templates()
	require.NoError(t, err)
	renderer, err := view.New(templates, bundle)
	require.NoError(t, err)
	return renderer, bundle
}

func renderPage(t *testing.T, r *view.Renderer, name string, page view.Page) string {
	t.Helper()
	w := httptest.NewRecorder()
	require.NoError(t, r.Instance(name, page).Render(w), name)
	return w.Body.String()
}

func basePage(bundle *i18n.Bundle, user *models.User) view.Page {
	page := view.Page{Title: "Portal", AppName: "SMA Portal", Lang: "en", Languages: bundle.Languages(), CSRF: "tok", Status: 200}
	if user != nil {
		page.User = user
	}
	return page
}

func TestEveryPageIsParsed(t *testing.T) {
	r, _ := newRenderer(t)
	for _, name := range []string{"error", "login", "register", "recovery", "dashboard", "profile", "settings"} {
		assert.True(t, r.Has(name), name)
	}
}

func TestLoginPageRendersFieldErrors(t *testing.T) {
	r, bundle := newRenderer(t)
	page := basePage(bundle, nil)
	page.Error = "invalid credentials"
	page.Errors = map[string]string{"identifier": "identifier is required"}
	page.Data = struct{ Identifier, Next string }{"siti", "/profile"}

	out := renderPage(t, r, "login", page)

	assert.Contains(t, out, `name="csrf_token" value="tok"`)
	assert.Contains(t, out, "identifier is required")
	assert.Contains(t, out, `value="/profile"`)
	assert.Contains(t, out, bundle.T("en", "login.submit"))
}

func TestRegisterPageKeepsInput(t *testing.T) {
	r, bundle := newRenderer(t)
	page := basePage(bundle, nil)
	page.Data = struct {
		Form     dto.RegisterRequest
		Disabled bool
		Grades   []int
		Rules    string
	}{Form: dto.RegisterRequest{Username: "siti", GradeLevel: 11}, Grades: []int{10, 11, 12}, Rules: "rules"}

	out := renderPage(t, r, "register", page)

	assert.Contains(t, out, `value="siti"`)
	assert.Contains(t, out, `<option value="11" selected>`)
}

func TestRecoveryPageForEveryStep(t *testing.T) {
	r, bundle := newRenderer(t)
	type recoveryData struct {
		Step       models.RecoveryStep
		View       *dto.RecoveryView
		Methods    []models.RecoveryMethod
		Identifier string
		Rules      string
	}
	steps := []recoveryData{
		{Step: models.RecoveryStepIdentify, Methods: models.RecoveryMethods},
		{Step: models.RecoveryStepVerifyCode, View: &dto.RecoveryView{Step: models.RecoveryStepVerifyCode, Method: models.RecoveryMethodBackupCode}},
		{Step: models.RecoveryStepVerifyCode},
		{Step: models.RecoveryStepReset, View: &dto.RecoveryView{Step: models.RecoveryStepReset}},
		{Step: models.RecoveryStepSecurityQuestions, View: &dto.RecoveryView{Questions: []string{"First pet?", "Home town?"}}},
		{Step: models.RecoveryStepTwoFactor},
		{Step: models.RecoveryStepIdentity, View: &dto.RecoveryView{IsStudent: true}},
		{Step: models.RecoveryStepDone},
	}
	for _, data := range steps {
		page := basePage(bundle, nil)
		page.Data = data
		out := renderPage(t, r, "recovery", page)
		assert.NotEmpty(t, out)
	}

	page := basePage(bundle, nil)
	page.Data = steps[4]
	assert.Contains(t, renderPage(t, r, "recovery", page), "Home town?")
}

func TestDashboardPageForStaffAndStudent(t *testing.T) {
	r, bundle := newRenderer(t)
	type dashboardData struct {
		Stats   *models.DashboardStats
		Student *models.StudentDashboard
	}

	page := basePage(bundle, &models.User{FullName: "Bu Ani", Role: models.RoleTeacher})
	page.Data = dashboardData{Stats: &models.DashboardStats{
		TotalStudents:   412,
		StudentsByGrade: []models.GradeCount{{GradeLevel: 10, Count: 140}},
		RecentActivity:  []models.AuditLog{{Action: "LOGIN", Resource: "session", CreatedAt: time.Now()}},
	}}
	out := renderPage(t, r, "dashboard", page)
	assert.Contains(t, out, "412")
	assert.Contains(t, out, "Bu Ani")

	page = basePage(bundle, &models.User{FullName: "Siti", Role: models.RoleStudent})
	page.Data = dashboardData{Student: &models.StudentDashboard{Student: &models.Student{StudentCode: "STD20240001", GradeLevel: 10}}}
	assert.Contains(t, renderPage(t, r, "dashboard", page), "STD20240001")
}

func TestProfileAndSettingsPagesRender(t *testing.T) {
	r, bundle := newRenderer(t)
	key := "key-123"
	user := &models.User{ID: "u1", FullName: "Pak Budi", Role: models.RoleAdmin, Theme: "dark", Language: "id", APIKey: &key}

	page := basePage(bundle, user)
	page.Data = struct {
		*dto.ProfileView
		CurrentSessionID string
		Themes           []string
		Rules            string
	}{
		ProfileView: &dto.ProfileView{
			User:     user,
			Sessions: []models.UserSession{{ID: "s1", IPAddress: "10.0.0.1"}, {ID: "s2", IPAddress: "10.0.0.2"}},
		},
		CurrentSessionID: "s1",
		Themes:           []string{models.ThemeLight, models.ThemeDark, models.ThemeAuto},
	}
	out := renderPage(t, r, "profile", page)
	assert.Contains(t, out, "key-123")
	assert.Contains(t, out, `data-theme="dark"`)
	assert.Contains(t, out, "10.0.0.2")

	page = basePage(bundle, user)
	page.Data = struct {
		Settings []dto.ConfigurationItem
		Pending  []models.User
		Backups  []models.Backup
		Reports  []string
	}{
		Settings: []dto.ConfigurationItem{{Key: "maintenance_mode", Value: "true", Type: "BOOLEAN"}, {Key: "items_per_page", Value: "20", Type: "INTEGER"}},
		Pending:  []models.User{{ID: "p1", Username: "newkid"}},
		Backups:  []models.Backup{{ID: "b1", Filename: "backup.json.gz", DownloadURL: "/settings/backups/download/tok"}},
		Reports:  []string{"activity", "users"},
	}
	out = renderPage(t, r, "settings", page)
	assert.Contains(t, out, "newkid")
	assert.Contains(t, out, "/settings/reports/users?format=pdf")
	assert.Contains(t, out, "/settings/backups/download/tok")
}

func TestErrorPage(t *testing.T) {
	r, _ := newRenderer(t)

	out := renderPage(t, r, "error", view.Page{Title: "404", Lang: "en", Status: 404, Error: "page not found"})

	assert.Contains(t, out, "page not found")
}

func TestStaticAssets(t *testing.T) {
	static, err := Static()
	require.NoError(t, err)

	for _, name := range []string{"css/app.css", "js/app.js"} {
		f, err := static.Open(name)
		require.NoError(t, err, name)
		f.Close()
	}
}
