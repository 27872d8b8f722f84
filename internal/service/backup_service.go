package service

import (
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-portal/internal/models"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
	"github.com/noah-isme/sma-portal/pkg/jobs"
	"github.com/noah-isme/sma-portal/pkg/storage"
)

const (
	backupJobType      = "backup"
	backupListLimit    = 50
	backupDownloadPath = "/settings/backups/download/"
)

type backupRepository interface {
	Create(ctx context.Context, backup *models.Backup) error
	Update(ctx context.Context, backup *models.Backup) error
	FindByID(ctx context.Context, id string) (*models.Backup, error)
	List(ctx context.Context, limit int) ([]models.Backup, error)
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]models.Backup, error)
	Delete(ctx context.Context, id string) error
	DumpTable(ctx context.Context, table string) ([]map[string]interface{}, error)
}

type backupStorage interface {
	SaveStream(name string, r io.Reader) (storage.FileInfo, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
}

type backupSettings interface {
	BackupRetention(ctx context.Context) time.Duration
}

// Backup errors.
var (
	ErrBackupNotFound = appErrors.Clone(appErrors.ErrNotFound, "backup not found")
	ErrBackupNotReady = appErrors.Clone(appErrors.ErrPreconditionFailed, "backup is not finished yet")
	ErrBackupLink     = appErrors.Clone(appErrors.ErrForbidden, "download link is invalid or has expired")
)

// BackupArchive is the document written, gzip compressed, for each backup.
type BackupArchive struct {
	App         string                              `json:"app"`
	GeneratedAt time.Time                           `json:"generated_at"`
	Tables      map[string][]map[string]interface{} `json:"tables"`
}

// BackupServiceParams groups constructor dependencies.
type BackupServiceParams struct {
	Repo     backupRepository
	Storage  backupStorage
	Signer   *storage.SignedURLSigner
	Settings backupSettings
	Activity activityRecorder
	Metrics  *MetricsService
	Logger   *zap.Logger
	Tables   []string
	AppName  string
	Queue    jobs.QueueConfig
}

// BackupService queues database snapshots and serves them through signed links.
type BackupService struct {
	repo     backupRepository
	storage  backupStorage
	signer   *storage.SignedURLSigner
	settings backupSettings
	activity activityRecorder
	metrics  *MetricsService
	logger   *zap.Logger
	tables   []string
	appName  string
	queue    *jobs.Queue
	now      func() time.Time
}

// NewBackupService constructs the service and its worker queue. Call Start to run workers.
func NewBackupService(params BackupServiceParams) *BackupService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &BackupService{
		repo:     params.Repo,
		storage:  params.Storage,
		signer:   params.Signer,
		settings: params.Settings,
		activity: params.Activity,
		metrics:  params.Metrics,
		logger:   logger,
		tables:   params.Tables,
		appName:  params.AppName,
		now:      time.Now,
	}
	queueCfg := params.Queue
	if queueCfg.Logger == nil {
		queueCfg.Logger = logger
	}
	s.queue = jobs.NewQueue("backups", s.Process, queueCfg)
	return s
}

// Start launches the backup workers.
func (s *BackupService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *BackupService) Stop() {
	s.queue.Stop()
}

// QueueStats reports the worker queue state for the system monitor.
func (s *BackupService) QueueStats() jobs.Stats {
	return s.queue.Stats()
}

// Create records a queued backup and hands it to the workers.
func (s *BackupService) Create(ctx context.Context, actor models.Actor) (*models.Backup, error) {
	now := s.now().UTC()
	backup := &models.Backup{
		Filename:  fmt.Sprintf("backup_%s.json.gz", now.Format("20060102_150405")),
		Status:    models.BackupStatusQueued,
		CreatedAt: now,
	}
	if actor.UserID != "" {
		id := actor.UserID
		backup.CreatedBy = &id
	}
	if err := s.repo.Create(ctx, backup); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create backup")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: backup.ID, Type: backupJobType, Payload: backup.ID}); err != nil {
		s.fail(ctx, backup, err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "backup queue is unavailable")
	}

	s.activity.Record(ctx, actor, ActivityEntry{Action: models.AuditActionBackupCreate, Resource: "backups", ResourceID: backup.ID})
	return backup, nil
}

// Process is the queue handler: it dumps every table into a gzip'd JSON archive.
func (s *BackupService) Process(ctx context.Context, job jobs.Job) error {
	id, ok := job.Payload.(string)
	if !ok || id == "" {
		return fmt.Errorf("backup job %s: missing backup id", job.ID)
	}
	backup, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load backup %s: %w", id, err)
	}

	backup.Status = models.BackupStatusProcessing
	backup.ErrorMessage = nil
	if err := s.repo.Update(ctx, backup); err != nil {
		return fmt.Errorf("mark backup processing: %w", err)
	}

	archive := BackupArchive{App: s.appName, GeneratedAt: s.now().UTC(), Tables: make(map[string][]map[string]interface{}, len(s.tables))}
	for _, table := range s.tables {
		rows, err := s.repo.DumpTable(ctx, table)
		if err != nil {
			s.fail(ctx, backup, err)
			return err
		}
		if rows == nil {
			rows = []map[string]interface{}{}
		}
		archive.Tables[table] = rows
	}

	archiveReader := compressJSON(archive)
	info, err := s.storage.SaveStream(backup.Filename, archiveReader)
	_ = archiveReader.Close()
	if err != nil {
		s.fail(ctx, backup, err)
		return err
	}

	finished := s.now().UTC()
	backup.Status = models.BackupStatusFinished
	backup.SizeBytes = info.Size
	backup.FinishedAt = &finished
	if err := s.repo.Update(ctx, backup); err != nil {
		return fmt.Errorf("mark backup finished: %w", err)
	}
	s.metrics.ObserveBackup(models.BackupStatusFinished)
	s.logger.Info("backup finished", zap.String("backup_id", backup.ID), zap.Int64("size_bytes", info.Size))
	return nil
}

// List returns recent backups; finished ones carry a signed download URL.
func (s *BackupService) List(ctx context.Context) ([]models.Backup, error) {
	backups, err := s.repo.List(ctx, backupListLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list backups")
	}
	for i := range backups {
		if backups[i].Status != models.BackupStatusFinished || s.signer == nil {
			continue
		}
		token, _, err := s.signer.Generate(backups[i].ID, backups[i].Filename)
		if err != nil {
			s.logger.Warn("failed to sign backup link", zap.String("backup_id", backups[i].ID), zap.Error(err))
			continue
		}
		backups[i].DownloadURL = backupDownloadPath + token
	}
	if backups == nil {
		backups = []models.Backup{}
	}
	return backups, nil
}

// Delete removes a backup archive and its record.
func (s *BackupService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if id == "" {
		return appErrors.Clone(appErrors.ErrValidation, "backup_id is required")
	}
	backup, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if backup.Status == models.BackupStatusQueued || backup.Status == models.BackupStatusProcessing {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "backup is still running")
	}
	s.remove(ctx, backup)
	s.activity.Record(ctx, actor, ActivityEntry{
		Action:     models.AuditActionBackupDelete,
		Resource:   "backups",
		ResourceID: backup.ID,
		Old:        map[string]interface{}{"filename": backup.Filename},
	})
	return nil
}

// Open resolves a signed download token to the stored archive. The caller closes the file.
func (s *BackupService) Open(ctx context.Context, token string) (*models.Backup, *os.File, error) {
	if s.signer == nil {
		return nil, nil, ErrBackupLink
	}
	id, relPath, err := s.signer.Parse(token)
	if err != nil {
		return nil, nil, ErrBackupLink
	}
	backup, err := s.find(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if backup.Filename != relPath {
		return nil, nil, ErrBackupLink
	}
	if backup.Status != models.BackupStatusFinished {
		return nil, nil, ErrBackupNotReady
	}
	file, err := s.storage.Open(backup.Filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrBackupNotFound
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open backup")
	}
	return backup, file, nil
}

// Cleanup deletes finished or failed backups older than the retention setting.
func (s *BackupService) Cleanup(ctx context.Context) (int, error) {
	retention := 30 * 24 * time.Hour
	if s.settings != nil {
		retention = s.settings.BackupRetention(ctx)
	}
	expired, err := s.repo.ListOlderThan(ctx, s.now().UTC().Add(-retention))
	if err != nil {
		return 0, err
	}
	for i := range expired {
		s.remove(ctx, &expired[i])
	}
	if len(expired) > 0 {
		s.logger.Info("backup retention cleanup", zap.Int("deleted", len(expired)))
	}
	return len(expired), nil
}

// RunRetention calls Cleanup every interval until ctx is done.
func (s *BackupService) RunRetention(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Cleanup(ctx); err != nil {
				s.logger.Warn("backup retention cleanup failed", zap.Error(err))
			}
		}
	}
}

func (s *BackupService) find(ctx context.Context, id string) (*models.Backup, error) {
	backup, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBackupNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load backup")
	}
	return backup, nil
}

func (s *BackupService) remove(ctx context.Context, backup *models.Backup) {
	if err := s.storage.Delete(backup.Filename); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to delete backup file", zap.String("filename", backup.Filename), zap.Error(err))
	}
	if err := s.repo.Delete(ctx, backup.ID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("failed to delete backup record", zap.String("backup_id", backup.ID), zap.Error(err))
	}
}

func (s *BackupService) fail(ctx context.Context, backup *models.Backup, cause error) {
	msg := truncate(cause.Error(), 500)
	finished := s.now().UTC()
	backup.Status = models.BackupStatusFailed
	backup.ErrorMessage = &msg
	backup.FinishedAt = &finished
	if err := s.repo.Update(ctx, backup); err != nil {
		s.logger.Warn("failed to mark backup failed", zap.String("backup_id", backup.ID), zap.Error(err))
	}
	s.metrics.ObserveBackup(models.BackupStatusFailed)
	s.logger.Error("backup failed", zap.String("backup_id", backup.ID), zap.Error(cause))
}

// compressJSON streams v as gzip'd JSON through a pipe. Closing the reader stops the encoder.
func compressJSON(v interface{}) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		gz := gzip.NewWriter(pw)
		err := json.NewEncoder(gz).Encode(v)
		if closeErr := gz.Close(); err == nil {
			err = closeErr
		}
		pw.CloseWithError(err)
	}()
	return pr
}
