package models

import "time"

// BackupStatus captures backup job lifecycle states.
type BackupStatus string

const (
	BackupStatusQueued     BackupStatus = "QUEUED"
	BackupStatusProcessing BackupStatus = "PROCESSING"
	BackupStatusFinished   BackupStatus = "FINISHED"
	BackupStatusFailed     BackupStatus = "FAILED"
)

// Backup is a database snapshot produced by the backup manager.
type Backup struct {
	ID           string       `db:"id" json:"id"`
	Filename     string       `db:"filename" json:"filename"`
	Status       BackupStatus `db:"status" json:"status"`
	SizeBytes    int64        `db:"size_bytes" json:"size_bytes"`
	CreatedBy    *string      `db:"created_by" json:"created_by,omitempty"`
	ErrorMessage *string      `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time   `db:"finished_at" json:"finished_at,omitempty"`
	DownloadURL  string       `db:"-" json:"download_url,omitempty"`
}
