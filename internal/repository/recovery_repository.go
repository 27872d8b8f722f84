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

const recoveryColumns = `id, user_id, method, step, status, token_hash, attempts, ip_address, expires_at, created_at, verified_at, consumed_at`

// RecoveryRepository persists password recovery requests.
type RecoveryRepository struct {
	db *sqlx.DB
}

// NewRecoveryRepository constructs the repository.
func NewRecoveryRepository(db *sqlx.DB) *RecoveryRepository {
	return &RecoveryRepository{db: db}
}

// Create inserts a request and cancels any earlier pending requests of the same user.
func (r *RecoveryRepository) Create(ctx context.Context, req *models.RecoveryRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin recovery tx: %w", err)
	}
	const cancel = `UPDATE recovery_requests SET status = $2 WHERE user_id = $1 AND status IN ('pending', 'verified')`
	if _, err := tx.ExecContext(ctx, cancel, req.UserID, models.RecoveryStatusCancelled); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("cancel previous recovery requests: %w", err)
	}
	const insert = `INSERT INTO recovery_requests (id, user_id, method, step, status, token_hash, attempts, ip_address, expires_at, created_at)
VALUES (:id, :user_id, :method, :step, :status, :token_hash, :attempts, :ip_address, :expires_at, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, req); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("create recovery request: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit recovery tx: %w", err)
	}
	return nil
}

// FindByID returns a recovery request.
func (r *RecoveryRepository) FindByID(ctx context.Context, id string) (*models.RecoveryRequest, error) {
	var req models.RecoveryRequest
	if err := r.db.GetContext(ctx, &req, `SELECT `+recoveryColumns+` FROM recovery_requests WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find recovery request: %w", err)
	}
	return &req, nil
}

// Update writes the mutable state of a request.
func (r *RecoveryRepository) Update(ctx context.Context, req *models.RecoveryRequest) error {
	const query = `UPDATE recovery_requests SET step = :step, status = :status, token_hash = :token_hash, attempts = :attempts,
verified_at = :verified_at, consumed_at = :consumed_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("update recovery request: %w", err)
	}
	return nil
}

// ExpireStale marks pending requests past their deadline as expired.
func (r *RecoveryRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	const query = `UPDATE recovery_requests SET status = 'expired' WHERE status IN ('pending', 'verified') AND expires_at < $1`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("expire recovery requests: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
