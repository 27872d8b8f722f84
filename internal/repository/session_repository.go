package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-portal/internal/models"
)

const sessionColumns = `id, user_id, session_key, ip_address, user_agent, created_at, last_activity, expires_at, revoked, revoked_at`

// SessionRepository persists browser login records.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a login record.
func (r *SessionRepository) Create(ctx context.Context, session *models.UserSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.LastActivity.IsZero() {
		session.LastActivity = now
	}
	const query = `INSERT INTO user_sessions (id, user_id, session_key, ip_address, user_agent, created_at, last_activity, expires_at)
VALUES (:id, :user_id, :session_key, :ip_address, :user_agent, :created_at, :last_activity, :expires_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create user session: %w", err)
	}
	return nil
}

// FindByID returns a login record.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.UserSession, error) {
	var session models.UserSession
	if err := r.db.GetContext(ctx, &session, `SELECT `+sessionColumns+` FROM user_sessions WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user session: %w", err)
	}
	return &session, nil
}

// ListActiveByUser returns unrevoked, unexpired sessions newest activity first.
func (r *SessionRepository) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]models.UserSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM user_sessions
WHERE user_id = $1 AND revoked = FALSE AND expires_at > $2 ORDER BY last_activity DESC`
	var sessions []models.UserSession
	if err := r.db.SelectContext(ctx, &sessions, query, userID, now); err != nil {
		return nil, fmt.Errorf("list user sessions: %w", err)
	}
	return sessions, nil
}

// Touch records activity and slides the expiry forward.
func (r *SessionRepository) Touch(ctx context.Context, id string, at, expiresAt time.Time) error {
	const query = `UPDATE user_sessions SET last_activity = $2, expires_at = $3 WHERE id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, id, at, expiresAt); err != nil {
		return fmt.Errorf("touch user session: %w", err)
	}
	return nil
}

// Revoke marks one of userID's sessions revoked and returns its store key.
func (r *SessionRepository) Revoke(ctx context.Context, userID, id string) (string, error) {
	const query = `UPDATE user_sessions SET revoked = TRUE, revoked_at = $3
WHERE id = $1 AND user_id = $2 AND revoked = FALSE RETURNING session_key`
	var key string
	if err := r.db.GetContext(ctx, &key, query, id, userID, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
		return "", fmt.Errorf("revoke user session: %w", err)
	}
	return key, nil
}

// RevokeAllForUser revokes every live session of userID except exceptID and
// returns the store keys that must be dropped.
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID, exceptID string) ([]string, error) {
	const query = `UPDATE user_sessions SET revoked = TRUE, revoked_at = $3
WHERE user_id = $1 AND id::text <> $2 AND revoked = FALSE RETURNING session_key`
	var keys []string
	if err := r.db.SelectContext(ctx, &keys, query, userID, exceptID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("revoke user sessions: %w", err)
	}
	return keys, nil
}

// CountActive returns the number of live sessions across all users.
func (r *SessionRepository) CountActive(ctx context.Context, now time.Time) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM user_sessions WHERE revoked = FALSE AND expires_at > $1`, now); err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return count, nil
}

// DeleteExpired purges records that expired before cutoff.
func (r *SessionRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
