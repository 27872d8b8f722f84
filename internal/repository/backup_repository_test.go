package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-portal/internal/models"
)

func TestBackupRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBackupRepository(db)

	mock.ExpectExec("INSERT INTO backups").WillReturnResult(sqlmock.NewResult(1, 1))

	backup := &models.Backup{Status: models.BackupStatusQueued}
	require.NoError(t, repo.Create(context.Background(), backup))
	assert.NotEmpty(t, backup.ID)
}

func TestDumpTableRejectsUnknownTable(t *testing.T) {
	db, _, cleanup := newMock(t)
	defer cleanup()
	repo := NewBackupRepository(db)

	_, err := repo.DumpTable(context.Background(), "users; DROP TABLE users")
	assert.ErrorIs(t, err, ErrTableNotAllowed)
}

func TestDumpTableConvertsBytes(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBackupRepository(db)

	mock.ExpectQuery("SELECT \\* FROM configurations").
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).AddRow([]byte("site_name"), []byte("SMA")))

	rows, err := repo.DumpTable(context.Background(), "configurations")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "SMA", rows[0]["value"])
}
