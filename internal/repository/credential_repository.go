package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-portal/internal/models"
)

// CredentialRepository stores secondary credentials: backup codes, security
// questions and password history.
type CredentialRepository struct {
	db *sqlx.DB
}

// NewCredentialRepository constructs the repository.
func NewCredentialRepository(db *sqlx.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// ReplaceBackupCodes discards every existing code of userID and stores the given hashes.
func (r *CredentialRepository) ReplaceBackupCodes(ctx context.Context, userID string, hashes []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin backup codes tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_backup_codes WHERE user_id = $1`, userID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete backup codes: %w", err)
	}
	now := time.Now().UTC()
	for _, hash := range hashes {
		const insert = `INSERT INTO user_backup_codes (id, user_id, code_hash, created_at) VALUES ($1, $2, $3, $4)`
		if _, err := tx.ExecContext(ctx, insert, uuid.NewString(), userID, hash, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert backup code: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit backup codes tx: %w", err)
	}
	return nil
}

// ListUnusedBackupCodes returns the codes of userID that have not been redeemed.
func (r *CredentialRepository) ListUnusedBackupCodes(ctx context.Context, userID string) ([]models.BackupCode, error) {
	const query = `SELECT id, user_id, code_hash, used_at, created_at FROM user_backup_codes WHERE user_id = $1 AND used_at IS NULL`
	var codes []models.BackupCode
	if err := r.db.SelectContext(ctx, &codes, query, userID); err != nil {
		return nil, fmt.Errorf("list backup codes: %w", err)
	}
	return codes, nil
}

// MarkBackupCodeUsed redeems a code. It reports false when the code was already used.
func (r *CredentialRepository) MarkBackupCodeUsed(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE user_backup_codes SET used_at = $2 WHERE id = $1 AND used_at IS NULL`, id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("redeem backup code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("redeem backup code: %w", err)
	}
	return n == 1, nil
}

// ReplaceSecurityQuestions stores a fresh question set for userID.
func (r *CredentialRepository) ReplaceSecurityQuestions(ctx context.Context, userID string, questions []models.SecurityQuestion) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin security questions tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_security_questions WHERE user_id = $1`, userID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete security questions: %w", err)
	}
	now := time.Now().UTC()
	const insert = `INSERT INTO user_security_questions (id, user_id, question, answer_hash, created_at)
VALUES (:id, :user_id, :question, :answer_hash, :created_at)`
	for i := range questions {
		q := &questions[i]
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		q.UserID = userID
		q.CreatedAt = now
		if _, err := tx.NamedExecContext(ctx, insert, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert security question: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit security questions tx: %w", err)
	}
	return nil
}

// ListSecurityQuestions returns the questions of userID in creation order.
func (r *CredentialRepository) ListSecurityQuestions(ctx context.Context, userID string) ([]models.SecurityQuestion, error) {
	const query = `SELECT id, user_id, question, answer_hash, created_at FROM user_security_questions WHERE user_id = $1 ORDER BY created_at, id`
	var questions []models.SecurityQuestion
	if err := r.db.SelectContext(ctx, &questions, query, userID); err != nil {
		return nil, fmt.Errorf("list security questions: %w", err)
	}
	return questions, nil
}

// RecentPasswordHashes returns up to limit previous hashes, newest first.
func (r *CredentialRepository) RecentPasswordHashes(ctx context.Context, userID string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	const query = `SELECT password_hash FROM password_history WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	var hashes []string
	if err := r.db.SelectContext(ctx, &hashes, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list password history: %w", err)
	}
	return hashes, nil
}

// ChangePassword stores the new hash on the user and appends it to the history.
func (r *CredentialRepository) ChangePassword(ctx context.Context, userID, hash string) error {
	now := time.Now().UTC()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin password tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, userID, hash, now); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update password: %w", err)
	}
	const insert = `INSERT INTO password_history (id, user_id, password_hash, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, insert, uuid.NewString(), userID, hash, now); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert password history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit password tx: %w", err)
	}
	return nil
}
