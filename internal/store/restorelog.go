package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opsdeck/opsdeck/internal/model"
)

type RestoreLogStore struct {
	db *sql.DB
}

func NewRestoreLogStore(db *sql.DB) *RestoreLogStore {
	return &RestoreLogStore{db: db}
}

const restoreLogColumns = `id, backup_id, restored_by, status, tables_restored, records_restored, error_message, restored_at`

func scanRestoreLog(row interface{ Scan(...any) error }) (*model.RestoreLogRecord, error) {
	r := &model.RestoreLogRecord{}
	var tablesJSON, recordsJSON string
	var errMsg sql.NullString
	err := row.Scan(&r.ID, &r.BackupID, &r.RestoredBy, &r.Status,
		&tablesJSON, &recordsJSON, &errMsg, &r.RestoredAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tablesJSON), &r.TablesRestored); err != nil {
		return nil, fmt.Errorf("decode tables_restored: %w", err)
	}
	if err := json.Unmarshal([]byte(recordsJSON), &r.RecordsRestored); err != nil {
		return nil, fmt.Errorf("decode records_restored: %w", err)
	}
	r.ErrorMessage = errMsg.String
	return r, nil
}

func (s *RestoreLogStore) Create(id, backupID string, restoredBy int64, tables []string) (*model.RestoreLogRecord, error) {
	tablesJSON, err := json.Marshal(tables)
	if err != nil {
		return nil, fmt.Errorf("encode tables_restored: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(
		`INSERT INTO restore_logs (id, backup_id, restored_by, status, tables_restored, restored_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, backupID, restoredBy, model.RestoreStatusInProgress, string(tablesJSON), now,
	)
	if err != nil {
		return nil, fmt.Errorf("create restore log: %w", err)
	}
	return s.GetByID(id)
}

// Finalize writes the outcome exactly once, after every table has been
// attempted.
func (s *RestoreLogStore) Finalize(id string, status model.RestoreStatus, recordsRestored map[string]int64, errorMsg string) error {
	recordsJSON, err := json.Marshal(recordsRestored)
	if err != nil {
		return fmt.Errorf("encode records_restored: %w", err)
	}
	var errPtr *string
	if errorMsg != "" {
		errPtr = &errorMsg
	}
	_, err = s.db.Exec(
		`UPDATE restore_logs SET status = ?, records_restored = ?, error_message = ? WHERE id = ?`,
		status, string(recordsJSON), errPtr, id,
	)
	if err != nil {
		return fmt.Errorf("finalize restore log: %w", err)
	}
	return nil
}

func (s *RestoreLogStore) GetByID(id string) (*model.RestoreLogRecord, error) {
	r, err := scanRestoreLog(s.db.QueryRow(
		`SELECT `+restoreLogColumns+` FROM restore_logs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get restore log %s: %w", id, err)
	}
	return r, nil
}

func (s *RestoreLogStore) List(limit int) ([]model.RestoreLogRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT `+restoreLogColumns+` FROM restore_logs ORDER BY restored_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list restore logs: %w", err)
	}
	defer rows.Close()

	var logs []model.RestoreLogRecord
	for rows.Next() {
		r, err := scanRestoreLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan restore log: %w", err)
		}
		logs = append(logs, *r)
	}
	return logs, rows.Err()
}
