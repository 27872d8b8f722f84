package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-portal/internal/models"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
	"github.com/noah-isme/sma-portal/pkg/storage"
)

func newReportFixture(t *testing.T) (*ReportService, *auditRepoStub, *userRepoStub, *activityStub, *storage.LocalStorage) {
	t.Helper()
	userID, ip := "u1", "10.0.0.9"
	audits := &auditRepoStub{
		logs: []models.AuditLog{
			{ID: "a1", UserID: &userID, Action: models.AuditActionLogin, Resource: "sessions", IPAddress: &ip, CreatedAt: time.Date(2024, 7, 15, 8, 0, 0, 0, time.UTC)},
			{ID: "a2", Action: models.AuditActionRegister, Resource: "users", CreatedAt: time.Date(2024, 7, 15, 9, 0, 0, 0, time.UTC)},
		},
		total: 2,
	}
	users := newUserRepoStub(&models.User{ID: "u1", Username: "siti", FullName: "Siti Nurhaliza", Email: "siti@example.com", Role: models.RoleStudent, Status: models.UserStatusActive})
	archive, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	recorder := &activityStub{}
	svc := NewReportService(ReportServiceParams{Activity: audits, Users: users, Archive: archive, Recorder: recorder})
	svc.now = func() time.Time { return time.Date(2024, 7, 16, 10, 30, 0, 0, time.UTC) }
	return svc, audits, users, recorder, archive
}

func TestActivityReportCSV(t *testing.T) {
	svc, audits, _, recorder, archive := newReportFixture(t)

	file, err := svc.Generate(context.Background(), models.Actor{UserID: "admin-1"}, ReportTypeActivity, "csv", ReportFilter{Action: models.AuditActionLogin})
	require.NoError(t, err)
	assert.Equal(t, "activity_20240716_103000.csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)
	assert.Equal(t, 2, file.Rows)
	assert.Equal(t, models.AuditActionLogin, audits.listed.Action)

	records, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"time", "user_id", "action", "resource", "resource_id", "ip_address"}, records[0])
	assert.Equal(t, "2024-07-15T08:00:00Z", records[1][0])
	assert.Equal(t, "10.0.0.9", records[1][5])

	_, err = archive.Stat("activity/" + file.Filename)
	assert.NoError(t, err)
	assert.Equal(t, []string{models.AuditActionReportExport}, recorder.actions())
}

func TestUsersReportPDF(t *testing.T) {
	svc, _, users, _, _ := newReportFixture(t)

	file, err := svc.Generate(context.Background(), models.Actor{UserID: "admin-1"}, ReportTypeUsers, "PDF", ReportFilter{Status: "active"})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Data, []byte("%PDF")))
	assert.Equal(t, 1, file.Rows)
	require.NotNil(t, users.listed.Status)
	assert.Equal(t, models.UserStatusActive, *users.listed.Status)
}

func TestReportRejectsUnknownInput(t *testing.T) {
	svc, _, _, recorder, _ := newReportFixture(t)
	ctx := context.Background()

	_, err := svc.Generate(ctx, models.Actor{}, ReportTypeActivity, "xlsx", ReportFilter{})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Generate(ctx, models.Actor{}, "grades", "csv", ReportFilter{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Empty(t, recorder.actions())
}

func TestReportSourceFailure(t *testing.T) {
	svc, audits, _, _, _ := newReportFixture(t)
	audits.listErr = assert.AnError

	_, err := svc.Generate(context.Background(), models.Actor{}, ReportTypeActivity, "csv", ReportFilter{})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}
