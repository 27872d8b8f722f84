package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-portal/internal/models"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
)

const pqUniqueViolation = "23505"

// uniqueUserFields maps users unique constraints to form fields.
var uniqueUserFields = map[string]struct{ field, message string }{
	"users_username_key": {"username", "username is already taken"},
	"users_email_key":    {"email", "email is already registered"},
}

// duplicateUser turns a unique violation on users into a field conflict.
// Other errors are returned as nil.
func duplicateUser(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqUniqueViolation {
		return nil
	}
	f, ok := uniqueUserFields[pqErr.Constraint]
	if !ok {
		return nil
	}
	return appErrors.WithFields(appErrors.ErrConflict, map[string]string{f.field: f.message})
}

const userColumns = `id, username, email, password_hash, full_name, phone, role, status, theme, language,
email_notifications, two_factor_enabled, two_factor_secret, api_key, api_secret_hash, last_login, created_at, updated_at`

// UserRepository provides database access for user accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) findOne(ctx context.Context, label, where string, arg interface{}) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE " + where + " LIMIT 1"
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by %s: %w", label, err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, "id", "id = $1", id)
}

// FindByEmail returns a user by email address (case-insensitive).
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email", "LOWER(email) = LOWER($1)", email)
}

// FindByIdentifier resolves a login identifier that is either a username or an email.
func (r *UserRepository) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	return r.findOne(ctx, "identifier", "(LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1))", identifier)
}

// FindByAPIKey returns the owner of an API key.
func (r *UserRepository) FindByAPIKey(ctx context.Context, apiKey string) (*models.User, error) {
	return r.findOne(ctx, "api key", "api_key = $1", apiKey)
}

// UsernameTaken reports whether another account already uses username.
func (r *UserRepository) UsernameTaken(ctx context.Context, username, excludeID string) (bool, error) {
	return r.taken(ctx, "username", username, excludeID)
}

// EmailTaken reports whether another account already uses email.
func (r *UserRepository) EmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	return r.taken(ctx, "email", email, excludeID)
}

func (r *UserRepository) taken(ctx context.Context, column, value, excludeID string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(%s) = LOWER($1) AND id::text <> $2)`, column)
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, value, excludeID); err != nil {
		return false, fmt.Errorf("check %s uniqueness: %w", column, err)
	}
	return exists, nil
}

// UpdateLastLogin updates the last_login timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UpdateProfile updates the contact fields a user may edit.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET full_name = :full_name, email = :email, phone = :phone, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// UpdatePreferences stores theme, language and notification preferences.
func (r *UserRepository) UpdatePreferences(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET theme = :theme, language = :language, email_notifications = :email_notifications, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("update preferences: %w", err)
	}
	return nil
}

// UpdateLanguage stores only the language preference.
func (r *UserRepository) UpdateLanguage(ctx context.Context, id, lang string) error {
	const query = `UPDATE users SET language = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, lang, time.Now().UTC()); err != nil {
		return fmt.Errorf("update language: %w", err)
	}
	return nil
}

// UpdateStatus moves an account through its lifecycle.
func (r *UserRepository) UpdateStatus(ctx context.Context, id string, status models.UserStatus) error {
	const query = `UPDATE users SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateTwoFactor stores the TOTP secret and enabled flag. A nil secret clears it.
// Replacing the secret forgets the last accepted time step.
func (r *UserRepository) UpdateTwoFactor(ctx context.Context, id string, secret *string, enabled bool) error {
	const query = `UPDATE users SET two_factor_secret = $2, two_factor_enabled = $3, updated_at = $4,
two_factor_last_step = CASE WHEN two_factor_secret IS DISTINCT FROM $2 THEN NULL ELSE two_factor_last_step END
WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, secret, enabled, time.Now().UTC()); err != nil {
		return fmt.Errorf("update two factor: %w", err)
	}
	return nil
}

// ClaimTwoFactorStep records step as the last accepted TOTP time step. It
// reports false when that step or a later one was already used.
func (r *UserRepository) ClaimTwoFactorStep(ctx context.Context, id string, step int64) (bool, error) {
	const query = `UPDATE users SET two_factor_last_step = $2
WHERE id = $1 AND (two_factor_last_step IS NULL OR two_factor_last_step < $2)`
	res, err := r.db.ExecContext(ctx, query, id, step)
	if err != nil {
		return false, fmt.Errorf("claim two factor step: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim two factor step: %w", err)
	}
	return n == 1, nil
}

// UpdateAPICredentials replaces the API key and secret hash.
func (r *UserRepository) UpdateAPICredentials(ctx context.Context, id, apiKey, secretHash string) error {
	const query = `UPDATE users SET api_key = $2, api_secret_hash = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, apiKey, secretHash, time.Now().UTC()); err != nil {
		return fmt.Errorf("update api credentials: %w", err)
	}
	return nil
}

// List returns users based on filters with total count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	baseQuery := `FROM users WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(username) LIKE $%d OR LOWER(email) LIKE $%d OR LOWER(full_name) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"username":   true,
		"email":      true,
		"full_name":  true,
		"created_at": true,
		"last_login": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", userColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	return users, total, nil
}

// CreateStudentAccount inserts a STUDENT user and its student record in one
// transaction, assigning the next student code for the registration year.
func (r *UserRepository) CreateStudentAccount(ctx context.Context, user *models.User, student *models.Student) error {
	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	user.CreatedAt, user.UpdatedAt = now, now
	student.UserID = user.ID
	student.CreatedAt, student.UpdatedAt = now, now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin registration tx: %w", err)
	}

	const insertUser = `INSERT INTO users (id, username, email, password_hash, full_name, phone, role, status, theme, language, email_notifications, created_at, updated_at)
VALUES (:id, :username, :email, :password_hash, :full_name, :phone, :role, :status, :theme, :language, :email_notifications, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertUser, user); err != nil {
		_ = tx.Rollback()
		if dup := duplicateUser(err); dup != nil {
			return dup
		}
		return fmt.Errorf("insert user: %w", err)
	}

	code, err := nextStudentCode(ctx, tx, now.Year())
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	student.StudentCode = code

	const insertStudent = `INSERT INTO students (id, user_id, student_code, date_of_birth, gender, address, grade_level, guardian_name, guardian_phone, guardian_email, created_at, updated_at)
VALUES (:id, :user_id, :student_code, :date_of_birth, :gender, :address, :grade_level, :guardian_name, :guardian_phone, :guardian_email, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertStudent, student); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert student: %w", err)
	}

	const insertHistory = `INSERT INTO password_history (id, user_id, password_hash, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, insertHistory, uuid.NewString(), user.ID, user.PasswordHash, now); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert password history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit registration tx: %w", err)
	}
	return nil
}

// nextStudentCode returns STD<year><sequence>, serialising concurrent
// registrations with a transaction-scoped advisory lock.
func nextStudentCode(ctx context.Context, tx *sqlx.Tx, year int) (string, error) {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(year)); err != nil {
		return "", fmt.Errorf("lock student sequence: %w", err)
	}
	prefix := fmt.Sprintf("STD%d", year)
	var count int
	if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM students WHERE student_code LIKE $1`, prefix+"%"); err != nil {
		return "", fmt.Errorf("count student codes: %w", err)
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

// FindStudentByUserID returns the student record linked to a user.
func (r *UserRepository) FindStudentByUserID(ctx context.Context, userID string) (*models.Student, error) {
	const query = `SELECT id, user_id, student_code, date_of_birth, gender, address, grade_level, guardian_name, guardian_phone, guardian_email, created_at, updated_at
FROM students WHERE user_id = $1 LIMIT 1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student by user: %w", err)
	}
	return &student, nil
}
