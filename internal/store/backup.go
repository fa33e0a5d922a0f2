package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opsdeck/opsdeck/internal/model"
)

type BackupStore struct {
	db *sql.DB
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db}
}

const backupColumns = `id, name, kind, module_name, storage_path, status, tables_included, byte_size, row_count, checksum, created_by, error_message, started_at, completed_at`

func scanBackup(row interface{ Scan(...any) error }) (*model.BackupRecord, error) {
	b := &model.BackupRecord{}
	var tablesJSON string
	var errMsg sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(&b.ID, &b.Name, &b.Kind, &b.ModuleName, &b.StoragePath, &b.Status,
		&tablesJSON, &b.ByteSize, &b.RowCount, &b.Checksum, &b.CreatedBy, &errMsg,
		&b.StartedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tablesJSON), &b.TablesIncluded); err != nil {
		return nil, fmt.Errorf("decode tables_included: %w", err)
	}
	b.ErrorMessage = errMsg.String
	if completedAt.Valid {
		b.CompletedAt = &completedAt.Time
	}
	return b, nil
}

// Create inserts an in_progress record before any export work happens, so a
// crash mid-backup leaves a visible stuck record instead of silence.
func (s *BackupStore) Create(id, name string, kind model.BackupKind, moduleName, storagePath string, tables []string, createdBy int64) (*model.BackupRecord, error) {
	tablesJSON, err := json.Marshal(tables)
	if err != nil {
		return nil, fmt.Errorf("encode tables_included: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(
		`INSERT INTO backups (id, name, kind, module_name, storage_path, status, tables_included, created_by, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, name, kind, moduleName, storagePath, model.BackupStatusInProgress, string(tablesJSON), createdBy, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create backup record: %w", err)
	}
	return s.GetByID(id)
}

func (s *BackupStore) GetByID(id string) (*model.BackupRecord, error) {
	b, err := scanBackup(s.db.QueryRow(`SELECT `+backupColumns+` FROM backups WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get backup %s: %w", id, err)
	}
	return b, nil
}

// ListNewestFirst returns all backup records ordered newest-first. Limit <= 0
// means no limit (the retention sweep needs the full list).
func (s *BackupStore) ListNewestFirst(limit int) ([]model.BackupRecord, error) {
	query := `SELECT ` + backupColumns + ` FROM backups ORDER BY started_at DESC, id DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.Query(query+` LIMIT ?`, limit)
	} else {
		rows, err = s.db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var backups []model.BackupRecord
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, *b)
	}
	return backups, rows.Err()
}

// MarkCompleted finalizes a successful backup with its artifact metadata.
func (s *BackupStore) MarkCompleted(id string, byteSize, rowCount int64, checksum string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE backups SET status = ?, byte_size = ?, row_count = ?, checksum = ?, completed_at = ?
		 WHERE id = ? AND status = ?`,
		model.BackupStatusCompleted, byteSize, rowCount, checksum, now, id, model.BackupStatusInProgress,
	)
	if err != nil {
		return fmt.Errorf("mark backup completed: %w", err)
	}
	return nil
}

// MarkFailed records the failure reason. The record is kept as audit trail.
func (s *BackupStore) MarkFailed(id, errorMsg string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE backups SET status = ?, error_message = ?, completed_at = ?
		 WHERE id = ? AND status = ?`,
		model.BackupStatusFailed, errorMsg, now, id, model.BackupStatusInProgress,
	)
	if err != nil {
		return fmt.Errorf("mark backup failed: %w", err)
	}
	return nil
}

// Delete removes the catalog row. The caller is responsible for the blob.
func (s *BackupStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM backups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete backup %s: %w", id, err)
	}
	return nil
}
