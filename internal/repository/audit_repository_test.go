package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-portal/internal/models"
)

func TestAuditRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.AuditLog{Action: models.AuditActionLogin, Resource: "user"}
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
}

func TestAuditRepositoryListFiltered(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "action", "resource", "resource_id", "old_values", "new_values", "ip_address", "user_agent", "created_at"}).
		AddRow("a1", "u1", "LOGIN", "user", "u1", nil, nil, "10.0.0.1", "curl", now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_logs WHERE 1=1 AND user_id = $1 AND action = $2 ORDER BY created_at DESC LIMIT 20 OFFSET 20")).
		WithArgs("u1", "LOGIN").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM audit_logs WHERE 1=1 AND user_id = $1 AND action = $2")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))

	logs, total, err := repo.List(context.Background(), models.AuditLogFilter{UserID: "u1", Action: "LOGIN", Page: 2, PageSize: 20})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	assert.Equal(t, 21, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
