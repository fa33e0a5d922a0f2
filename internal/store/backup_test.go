package store

import (
	"testing"

	"github.com/opsdeck/opsdeck/internal/database"
	"github.com/opsdeck/opsdeck/internal/model"
)

func setupBackupTestDB(t *testing.T) (*BackupStore, *RestoreLogStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewBackupStore(db), NewRestoreLogStore(db)
}

func TestBackupCreate(t *testing.T) {
	bs, _ := setupBackupTestDB(t)

	b, err := bs.Create("id-1", "backup-2026-01-01", model.BackupKindFull, "", "snapshots/id-1.json", []string{"users", "assets"}, 42)
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}
	if b.Status != model.BackupStatusInProgress {
		t.Errorf("status = %q, want %q", b.Status, model.BackupStatusInProgress)
	}
	if len(b.TablesIncluded) != 2 || b.TablesIncluded[0] != "users" {
		t.Errorf("tables_included = %v", b.TablesIncluded)
	}
	if b.CreatedBy != 42 {
		t.Errorf("created_by = %d, want 42", b.CreatedBy)
	}
	if b.CompletedAt != nil {
		t.Error("completed_at should be unset for in_progress record")
	}
}

func TestBackupMarkCompleted(t *testing.T) {
	bs, _ := setupBackupTestDB(t)
	bs.Create("id-1", "b", model.BackupKindFull, "", "p", []string{"users"}, 1)

	if err := bs.MarkCompleted("id-1", 2048, 17, "deadbeef"); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	got, _ := bs.GetByID("id-1")
	if got.Status != model.BackupStatusCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if got.ByteSize != 2048 || got.RowCount != 17 {
		t.Errorf("byte_size = %d, row_count = %d", got.ByteSize, got.RowCount)
	}
	if got.Checksum != "deadbeef" {
		t.Errorf("checksum = %q", got.Checksum)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at should be set")
	}
}

func TestBackupTerminalStateImmutable(t *testing.T) {
	bs, _ := setupBackupTestDB(t)
	bs.Create("id-1", "b", model.BackupKindFull, "", "p", []string{"users"}, 1)
	bs.MarkCompleted("id-1", 1, 1, "sum")

	// Terminal records never flip; the guard is the status predicate.
	if err := bs.MarkFailed("id-1", "late failure"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	got, _ := bs.GetByID("id-1")
	if got.Status != model.BackupStatusCompleted {
		t.Errorf("status = %q, completed record must not become failed", got.Status)
	}
}

func TestBackupMarkFailed(t *testing.T) {
	bs, _ := setupBackupTestDB(t)
	bs.Create("id-1", "b", model.BackupKindFull, "", "p", []string{"users"}, 1)

	if err := bs.MarkFailed("id-1", "upload refused"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	got, _ := bs.GetByID("id-1")
	if got.Status != model.BackupStatusFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
	if got.ErrorMessage != "upload refused" {
		t.Errorf("error_message = %q", got.ErrorMessage)
	}
}

func TestBackupGetMissing(t *testing.T) {
	bs, _ := setupBackupTestDB(t)
	got, err := bs.GetByID("nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("expected nil for missing record")
	}
}

func TestBackupListNewestFirst(t *testing.T) {
	bs, _ := setupBackupTestDB(t)
	for _, id := range []string{"a", "b", "c"} {
		bs.Create(id, "b-"+id, model.BackupKindFull, "", "p-"+id, []string{"users"}, 1)
	}

	all, err := bs.ListNewestFirst(0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("listed %d, want 3", len(all))
	}
	if all[0].ID != "c" || all[2].ID != "a" {
		t.Errorf("order = %s, %s, %s; want c, b, a", all[0].ID, all[1].ID, all[2].ID)
	}

	limited, _ := bs.ListNewestFirst(2)
	if len(limited) != 2 {
		t.Errorf("limited list has %d, want 2", len(limited))
	}
}

func TestBackupDelete(t *testing.T) {
	bs, _ := setupBackupTestDB(t)
	bs.Create("gone", "b", model.BackupKindFull, "", "p", []string{"users"}, 1)

	if err := bs.Delete("gone"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := bs.GetByID("gone")
	if got != nil {
		t.Error("record still present after delete")
	}
}

func TestRestoreLogLifecycle(t *testing.T) {
	bs, rs := setupBackupTestDB(t)
	bs.Create("bk", "b", model.BackupKindFull, "", "p", []string{"users", "assets"}, 1)

	logRecord, err := rs.Create("log-1", "bk", 5, []string{"users", "assets"})
	if err != nil {
		t.Fatalf("create restore log: %v", err)
	}
	if logRecord.Status != model.RestoreStatusInProgress {
		t.Errorf("status = %q, want in_progress", logRecord.Status)
	}

	counts := map[string]int64{"users": 3, "assets": 0}
	if err := rs.Finalize("log-1", model.RestoreStatusCompletedWithErrors, counts, "assets: no such column"); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	got, err := rs.GetByID("log-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.RestoreStatusCompletedWithErrors {
		t.Errorf("status = %q", got.Status)
	}
	if got.RecordsRestored["users"] != 3 {
		t.Errorf("users count = %d, want 3", got.RecordsRestored["users"])
	}
	if n, ok := got.RecordsRestored["assets"]; !ok || n != 0 {
		t.Errorf("assets count missing or wrong: %d (present=%v)", n, ok)
	}
	if got.ErrorMessage == "" {
		t.Error("expected error message")
	}
	if got.RestoredBy != 5 {
		t.Errorf("restored_by = %d, want 5", got.RestoredBy)
	}
}
