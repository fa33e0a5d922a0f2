package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opsdeck/opsdeck/internal/backup"
	"github.com/opsdeck/opsdeck/internal/database"
	"github.com/opsdeck/opsdeck/internal/store"
)

func setupBackupHandler(t *testing.T) *BackupHandler {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	bs := store.NewBackupStore(db)
	rs := store.NewRestoreLogStore(db)
	// No S3 credentials: the manager starts disabled.
	mgr := backup.NewManager(backup.Config{}, db, backup.DefaultRegistry(), bs, rs, nil, testLogger())
	return NewBackupHandler(mgr, bs, rs, nil, testLogger())
}

func TestCreateBackupRejectsBadType(t *testing.T) {
	h := setupBackupHandler(t)

	rec := httptest.NewRecorder()
	h.CreateBackup(rec, jsonRequest(t, "POST", "/api/create-backup", map[string]any{
		"type": "incremental",
	}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCreateBackupModuleRequiresTables(t *testing.T) {
	h := setupBackupHandler(t)

	rec := httptest.NewRecorder()
	h.CreateBackup(rec, jsonRequest(t, "POST", "/api/create-backup", map[string]any{
		"type":        "module",
		"module_name": "helpdesk",
	}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCreateBackupUnconfiguredStorage(t *testing.T) {
	h := setupBackupHandler(t)

	rec := httptest.NewRecorder()
	h.CreateBackup(rec, jsonRequest(t, "POST", "/api/create-backup", map[string]any{
		"type": "full",
	}))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 when storage is unconfigured", rec.Code)
	}
}

func TestRestoreBackupRequiresID(t *testing.T) {
	h := setupBackupHandler(t)

	rec := httptest.NewRecorder()
	h.RestoreBackup(rec, jsonRequest(t, "POST", "/api/restore-backup", map[string]any{}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestBackupListEmpty(t *testing.T) {
	h := setupBackupHandler(t)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest("GET", "/api/backups", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var records []any
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("expected JSON array, got %q: %v", rec.Body.String(), err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}

func TestBackupStatusDisabled(t *testing.T) {
	h := setupBackupHandler(t)

	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest("GET", "/api/backup-status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var status backup.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.State != backup.StateDisabled {
		t.Errorf("state = %q, want disabled", status.State)
	}
}
