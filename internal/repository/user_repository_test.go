package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-portal/internal/models"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "postgres")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var userRowColumns = []string{"id", "username", "email", "password_hash", "full_name", "phone", "role", "status", "theme", "language",
	"email_notifications", "two_factor_enabled", "two_factor_secret", "api_key", "api_secret_hash", "last_login", "created_at", "updated_at"}

func TestFindByIdentifier(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(userRowColumns).
		AddRow("1", "siti", "siti@example.com", "hash", "Siti", "0812", "STUDENT", "active", "light", "id", true, false, nil, nil, nil, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE (LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1)) LIMIT 1")).
		WithArgs("Siti@Example.com").
		WillReturnRows(rows)

	user, err := repo.FindByIdentifier(context.Background(), "Siti@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "siti", user.Username)
	assert.Equal(t, models.UserStatusActive, user.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("FROM users WHERE id = ").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUsernameTaken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(username) = LOWER($1) AND id::text <> $2)")).
		WithArgs("siti", "").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	taken, err := repo.UsernameTaken(context.Background(), "siti", "")
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestListUsers(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	listRows := sqlmock.NewRows(userRowColumns).
		AddRow("1", "admin", "a@example.com", "hash", "A", "", "ADMIN", "active", "light", "en", true, false, nil, nil, nil, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE 1=1 AND status = $1 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs(models.UserStatusPending).
		WillReturnRows(listRows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE 1=1 AND status = $1")).WillReturnRows(countRows)

	status := models.UserStatusPending
	users, total, err := repo.List(context.Background(), models.UserFilter{Status: &status, SortBy: "password_hash"})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusMissingUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("UPDATE users SET status").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "u1", models.UserStatusActive)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCreateStudentAccount(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	year := time.Now().UTC().Year()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).WithArgs(int64(year)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM students WHERE student_code LIKE").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(41))
	mock.ExpectExec("INSERT INTO students").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO password_history").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	user := &models.User{Username: "siti", Email: "siti@example.com", PasswordHash: "hash", Role: models.RoleStudent, Status: models.UserStatusPending}
	student := &models.Student{GradeLevel: 10}
	require.NoError(t, repo.CreateStudentAccount(context.Background(), user, student))

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, user.ID, student.UserID)
	assert.Regexp(t, `^STD\d{4}0042$`, student.StudentCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateStudentAccountRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM students WHERE student_code LIKE").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO students").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.CreateStudentAccount(context.Background(), &models.User{}, &models.Student{})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateStudentAccountDuplicateUsername(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_username_key"})
	mock.ExpectRollback()

	err := repo.CreateStudentAccount(context.Background(), &models.User{Username: "budi_s"}, &models.Student{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "username is already taken", appErr.Fields["username"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateStudentAccountOtherConstraintIsPlainError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_api_key_key"})
	mock.ExpectRollback()

	err := repo.CreateStudentAccount(context.Background(), &models.User{}, &models.Student{})
	require.Error(t, err)
	var pqErr *pq.Error
	assert.ErrorAs(t, err, &pqErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimTwoFactorStep(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET two_factor_last_step = $2")).
		WithArgs("u1", int64(57000000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("(two_factor_last_step IS NULL OR two_factor_last_step < $2)")).
		WithArgs("u1", int64(57000000)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.ClaimTwoFactorStep(context.Background(), "u1", 57000000)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ClaimTwoFactorStep(context.Background(), "u1", 57000000)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTwoFactorForgetsStepOnNewSecret(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	secret := "JBSWY3DPEHPK3PXP"
	mock.ExpectExec(regexp.QuoteMeta("two_factor_last_step = CASE WHEN two_factor_secret IS DISTINCT FROM $2 THEN NULL")).
		WithArgs("u1", secret, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateTwoFactor(context.Background(), "u1", &secret, false))
	require.NoError(t, mock.ExpectationsWereMet())
}
