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

const backupColumns = `id, filename, status, size_bytes, created_by, error_message, created_at, finished_at`

// BackupTables lists the tables included in a backup, in restore order.
var BackupTables = []string{"users", "students", "configurations", "audit_logs"}

// ErrTableNotAllowed is returned when a dump is requested for a table outside BackupTables.
var ErrTableNotAllowed = errors.New("table not allowed for backup")

// BackupRepository persists backup metadata and reads table snapshots.
type BackupRepository struct {
	db *sqlx.DB
}

// NewBackupRepository constructs the repository.
func NewBackupRepository(db *sqlx.DB) *BackupRepository {
	return &BackupRepository{db: db}
}

// Create inserts a backup row.
func (r *BackupRepository) Create(ctx context.Context, backup *models.Backup) error {
	if backup.ID == "" {
		backup.ID = uuid.NewString()
	}
	if backup.CreatedAt.IsZero() {
		backup.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO backups (id, filename, status, size_bytes, created_by, error_message, created_at, finished_at)
VALUES (:id, :filename, :status, :size_bytes, :created_by, :error_message, :created_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, backup); err != nil {
		return fmt.Errorf("create backup: %w", err)
	}
	return nil
}

// Update writes the job outcome of a backup.
func (r *BackupRepository) Update(ctx context.Context, backup *models.Backup) error {
	const query = `UPDATE backups SET filename = :filename, status = :status, size_bytes = :size_bytes,
error_message = :error_message, finished_at = :finished_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, backup); err != nil {
		return fmt.Errorf("update backup: %w", err)
	}
	return nil
}

// FindByID returns a backup row.
func (r *BackupRepository) FindByID(ctx context.Context, id string) (*models.Backup, error) {
	var backup models.Backup
	if err := r.db.GetContext(ctx, &backup, `SELECT `+backupColumns+` FROM backups WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find backup: %w", err)
	}
	return &backup, nil
}

// List returns the most recent backups.
func (r *BackupRepository) List(ctx context.Context, limit int) ([]models.Backup, error) {
	if limit <= 0 {
		limit = 50
	}
	var backups []models.Backup
	if err := r.db.SelectContext(ctx, &backups, `SELECT `+backupColumns+` FROM backups ORDER BY created_at DESC LIMIT $1`, limit); err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	return backups, nil
}

// ListOlderThan returns finished or failed backups created before cutoff.
func (r *BackupRepository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]models.Backup, error) {
	query := `SELECT ` + backupColumns + ` FROM backups WHERE created_at < $1 AND status IN ('FINISHED', 'FAILED')`
	var backups []models.Backup
	if err := r.db.SelectContext(ctx, &backups, query, cutoff); err != nil {
		return nil, fmt.Errorf("list expired backups: %w", err)
	}
	return backups, nil
}

// Delete removes a backup row.
func (r *BackupRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM backups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete backup: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DumpTable reads every row of table as column maps. Only BackupTables may be dumped.
func (r *BackupRepository) DumpTable(ctx context.Context, table string) ([]map[string]interface{}, error) {
	allowed := false
	for _, t := range BackupTables {
		if t == table {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: %s", ErrTableNotAllowed, table)
	}

	rows, err := r.db.QueryxContext(ctx, fmt.Sprintf("SELECT * FROM %s", table))
	if err != nil {
		return nil, fmt.Errorf("dump %s: %w", table, err)
	}
	defer rows.Close()

	var result []map[string]interface{}
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return result, nil
}
