package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"

	"github.com/opsdeck/opsdeck/internal/model"
	"github.com/opsdeck/opsdeck/internal/store"
)

// s3Client is the narrow slice of the S3 API the manager needs; an interface
// for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Config holds backup manager configuration.
type Config struct {
	S3             S3Config
	RetentionCount int           // completed + failed records kept, newest first
	Passphrase     string        // optional at-rest encryption of snapshots
	Interval       time.Duration // scheduled full backups; 0 disables the loop
}

const defaultRetentionCount = 30

// State represents the backup manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// StatusCallback is called whenever the backup state changes.
type StatusCallback func(Status)

// Manager drives backup and restore runs against the catalog and the
// S3-compatible object store. Runs are single-request and sequential; two
// concurrent runs are not mutually excluded by the manager.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	status   Status
	callback StatusCallback

	db          *sql.DB
	registry    *Registry
	exporter    *Exporter
	backups     *store.BackupStore
	restoreLogs *store.RestoreLogStore
	client      s3Client
	logger      *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a backup manager. With no S3 credentials the manager
// starts disabled and every run fails with ErrNotConfigured.
func NewManager(cfg Config, db *sql.DB, registry *Registry, bs *store.BackupStore, rs *store.RestoreLogStore, callback StatusCallback, logger *slog.Logger) *Manager {
	if cfg.RetentionCount <= 0 {
		cfg.RetentionCount = defaultRetentionCount
	}
	m := &Manager{
		cfg:         cfg,
		db:          db,
		registry:    registry,
		exporter:    NewExporter(db, logger),
		backups:     bs,
		restoreLogs: rs,
		callback:    callback,
		logger:      logger,
		status:      Status{State: StateDisabled},
	}

	if cfg.S3.Bucket != "" && cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}

	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Start begins the scheduled full-backup loop. No-op when disabled or when
// no interval is configured.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.status.State == StateDisabled || m.cfg.Interval <= 0 {
		m.mu.Unlock()
		return
	}
	interval := m.cfg.Interval
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.RunBackup(ctx, model.BackupKindFull, "", nil, 0); err != nil {
					m.logger.Error("scheduled backup failed", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the scheduled loop.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Status returns the current backup manager status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

// RunBackup executes one backup run: resolve the table set, create the
// in_progress catalog record, export each table sequentially, encode,
// upload, finalize, then sweep retention. A single table's export failure
// keeps its partial rows and does not fail the run; an upload failure marks
// the record failed and propagates, keeping the record as audit trail.
func (m *Manager) RunBackup(ctx context.Context, kind model.BackupKind, moduleName string, tables []string, userID int64) (*model.BackupRecord, error) {
	m.mu.RLock()
	client := m.client
	passphrase := m.cfg.Passphrase
	m.mu.RUnlock()

	if client == nil {
		return nil, ErrNotConfigured
	}

	var specs []TableSpec
	switch kind {
	case model.BackupKindModule:
		specs = m.registry.Resolve(tables)
	default:
		specs = m.registry.Specs()
	}
	if len(specs) == 0 {
		return nil, ErrEmptyTableSet
	}
	for _, spec := range specs {
		if !validIdent(spec.Name) {
			return nil, fmt.Errorf("%w: invalid table name %q", ErrEmptyTableSet, spec.Name)
		}
	}

	id := uuid.NewString()
	name := fmt.Sprintf("backup-%s", time.Now().UTC().Format("2006-01-02T150405Z"))
	storagePath := "snapshots/" + id + ".json"
	if passphrase != "" {
		storagePath += ".enc"
	}

	tableNames := make([]string, len(specs))
	for i, s := range specs {
		tableNames[i] = s.Name
	}

	record, err := m.backups.Create(id, name, kind, moduleName, storagePath, tableNames, userID)
	if err != nil {
		return nil, fmt.Errorf("create backup record: %w", err)
	}

	m.setStatus(Status{State: StateRunning, InProgress: true})

	// Best-effort export: a failing table keeps its partial rows and stays
	// listed; the run continues with the remaining tables.
	snapshot := make(Snapshot, len(specs))
	var exportErrs error
	for _, spec := range specs {
		rows, err := m.exporter.Export(ctx, spec)
		if err != nil {
			exportErrs = multierr.Append(exportErrs, err)
		}
		if rows == nil {
			rows = []Row{}
		}
		snapshot[spec.Name] = rows
	}
	if exportErrs != nil {
		m.logger.Warn("backup completed with partial tables", "backup_id", id, "error", exportErrs)
	}

	data, checksum, err := Encode(snapshot)
	if err != nil {
		return nil, m.failBackup(id, fmt.Errorf("encode snapshot: %w", err))
	}
	rowCount := snapshot.RowCount()

	upload := data
	if passphrase != "" {
		if upload, err = encryptSnapshot(data, passphrase); err != nil {
			return nil, m.failBackup(id, err)
		}
	}

	if err := m.uploadSnapshot(ctx, client, storagePath, upload); err != nil {
		return nil, m.failBackup(id, fmt.Errorf("upload snapshot: %w", err))
	}

	if err := m.backups.MarkCompleted(id, int64(len(upload)), rowCount, checksum); err != nil {
		return nil, m.failBackup(id, err)
	}

	now := time.Now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &now})

	m.sweepRetention(ctx, client)

	return m.backups.GetByID(record.ID)
}

// failBackup marks the record failed, flips the manager status, and returns
// the error for the caller to propagate.
func (m *Manager) failBackup(id string, cause error) error {
	if err := m.backups.MarkFailed(id, cause.Error()); err != nil {
		m.logger.Error("mark backup failed", "backup_id", id, "error", err)
	}
	m.setStatus(Status{State: StateError, Error: cause.Error()})
	return cause
}

func (m *Manager) uploadSnapshot(ctx context.Context, client s3Client, key string, data []byte) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(m.cfg.S3.Bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentType:   aws.String("application/json"),
			ContentLength: aws.Int64(int64(len(data))),
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

// sweepRetention deletes records beyond the retention count, oldest first,
// blob before catalog row. Sweep failures are logged and never fail the
// backup that triggered them.
func (m *Manager) sweepRetention(ctx context.Context, client s3Client) {
	records, err := m.backups.ListNewestFirst(0)
	if err != nil {
		m.logger.Error("retention: list backups", "error", err)
		return
	}
	if len(records) <= m.cfg.RetentionCount {
		return
	}

	excess := records[m.cfg.RetentionCount:]
	// Oldest first: the excess slice is newest-first, walk it backwards.
	for i := len(excess) - 1; i >= 0; i-- {
		rec := excess[i]
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.S3.Bucket),
			Key:    aws.String(rec.StoragePath),
		}); err != nil {
			m.logger.Error("retention: delete blob", "backup_id", rec.ID, "key", rec.StoragePath, "error", err)
		}
		if err := m.backups.Delete(rec.ID); err != nil {
			m.logger.Error("retention: delete record", "backup_id", rec.ID, "error", err)
		}
	}
}

// downloadSnapshot fetches and, if needed, decrypts the blob at the record's
// storage path.
func (m *Manager) downloadSnapshot(ctx context.Context, client s3Client, record *model.BackupRecord) ([]byte, error) {
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Key:    aws.String(record.StoragePath),
	})
	if err != nil {
		return nil, fmt.Errorf("download snapshot %s: %w", record.StoragePath, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", record.StoragePath, err)
	}

	if strings.HasSuffix(record.StoragePath, ".enc") {
		m.mu.RLock()
		passphrase := m.cfg.Passphrase
		m.mu.RUnlock()
		if passphrase == "" {
			return nil, fmt.Errorf("snapshot %s is encrypted but no passphrase is configured", record.ID)
		}
		if data, err = decryptSnapshot(data, passphrase); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// validIdent guards the dynamic table-name dispatch: snapshot keys and
// caller-supplied table lists end up interpolated into SQL.
func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
