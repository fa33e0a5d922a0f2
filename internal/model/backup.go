package model

import "time"

type BackupKind string

const (
	BackupKindFull   BackupKind = "full"
	BackupKindModule BackupKind = "module"
)

type BackupStatus string

const (
	BackupStatusInProgress BackupStatus = "in_progress"
	BackupStatusCompleted  BackupStatus = "completed"
	BackupStatusFailed     BackupStatus = "failed"
)

// BackupRecord is the catalog row for one attempted or completed backup.
// Status only ever moves in_progress -> completed or in_progress -> failed;
// terminal records are immutable except for retention deletion.
type BackupRecord struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Kind           BackupKind   `json:"kind"`
	ModuleName     string       `json:"module_name,omitempty"`
	StoragePath    string       `json:"storage_path"`
	Status         BackupStatus `json:"status"`
	TablesIncluded []string     `json:"tables_included"`
	ByteSize       int64        `json:"byte_size"`
	RowCount       int64        `json:"row_count"`
	Checksum       string       `json:"checksum,omitempty"`
	CreatedBy      int64        `json:"created_by"`
	ErrorMessage   string       `json:"error_message,omitempty"`
	StartedAt      time.Time    `json:"started_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
}

type RestoreStatus string

const (
	RestoreStatusInProgress          RestoreStatus = "in_progress"
	RestoreStatusCompleted           RestoreStatus = "completed"
	RestoreStatusCompletedWithErrors RestoreStatus = "completed_with_errors"
)

// RestoreLogRecord records one restore attempt and its per-table outcome.
// It is created when the snapshot has been obtained and finalized exactly
// once, after every table has been attempted.
type RestoreLogRecord struct {
	ID              string           `json:"id"`
	BackupID        string           `json:"backup_id"`
	RestoredBy      int64            `json:"restored_by"`
	Status          RestoreStatus    `json:"status"`
	TablesRestored  []string         `json:"tables_restored"`
	RecordsRestored map[string]int64 `json:"records_restored"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	RestoredAt      time.Time        `json:"restored_at"`
}
