package backup

import "errors"

var (
	// ErrNotConfigured means S3 credentials are missing; no backup or
	// restore work can start.
	ErrNotConfigured = errors.New("backup storage not configured")

	// ErrEmptyTableSet means the resolved table set was empty; the backup
	// fails fast before any export work.
	ErrEmptyTableSet = errors.New("backup table set is empty")

	// ErrBackupNotFound means no catalog record exists for the id.
	ErrBackupNotFound = errors.New("backup not found")

	// ErrChecksumMismatch is returned only when checksum verification was
	// explicitly requested on restore.
	ErrChecksumMismatch = errors.New("snapshot checksum mismatch")
)
