package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/opsdeck/opsdeck/internal/auth"
	"github.com/opsdeck/opsdeck/internal/backup"
	"github.com/opsdeck/opsdeck/internal/model"
	"github.com/opsdeck/opsdeck/internal/store"
	"github.com/opsdeck/opsdeck/internal/websocket"
)

type BackupHandler struct {
	manager     *backup.Manager
	backupStore *store.BackupStore
	logStore    *store.RestoreLogStore
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewBackupHandler(m *backup.Manager, bs *store.BackupStore, ls *store.RestoreLogStore, hub *websocket.Hub, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: m, backupStore: bs, logStore: ls, hub: hub, logger: logger}
}

func (h *BackupHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type createBackupRequest struct {
	Type       string   `json:"type"`
	ModuleName string   `json:"module_name"`
	Tables     []string `json:"tables"`
}

// CreateBackup runs a backup synchronously and reports the artifact metadata.
func (h *BackupHandler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	var req createBackupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var kind model.BackupKind
	switch req.Type {
	case "full":
		kind = model.BackupKindFull
	case "module":
		kind = model.BackupKindModule
		if len(req.Tables) == 0 {
			writeError(w, http.StatusBadRequest, "module backup requires a table list")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "type must be full or module")
		return
	}

	record, err := h.manager.RunBackup(r.Context(), kind, req.ModuleName, req.Tables, auth.UserID(r.Context()))
	if err != nil {
		if errors.Is(err, backup.ErrEmptyTableSet) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("backup run failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.broadcast(websocket.NewMessage("backup", "completed", record.ID, map[string]any{
		"row_count": record.RowCount,
		"byte_size": record.ByteSize,
	}))

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"backup_id":    record.ID,
		"record_count": record.RowCount,
		"file_size":    record.ByteSize,
	})
}

type restoreBackupRequest struct {
	BackupID       string `json:"backup_id"`
	VerifyChecksum bool   `json:"verify_checksum"`
}

// RestoreBackup replays a snapshot and reports per-table counts.
func (h *BackupHandler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	var req restoreBackupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.BackupID == "" {
		writeError(w, http.StatusBadRequest, "backup_id is required")
		return
	}

	logRecord, err := h.manager.RunRestore(r.Context(), req.BackupID, auth.UserID(r.Context()),
		backup.RestoreOptions{VerifyChecksum: req.VerifyChecksum})
	if err != nil {
		if errors.Is(err, backup.ErrBackupNotFound) {
			writeError(w, http.StatusNotFound, "backup not found")
			return
		}
		h.logger.Error("restore run failed", "backup_id", req.BackupID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.broadcast(websocket.NewMessage("restore", string(logRecord.Status), logRecord.ID, nil))

	resp := map[string]any{
		"success":          true,
		"status":           logRecord.Status,
		"records_restored": logRecord.RecordsRestored,
	}
	if logRecord.ErrorMessage != "" {
		resp["errors"] = logRecord.ErrorMessage
	}
	writeJSON(w, http.StatusOK, resp)
}

// List returns catalog records newest-first.
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.backupStore.ListNewestFirst(50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	if records == nil {
		records = []model.BackupRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *BackupHandler) Get(w http.ResponseWriter, r *http.Request) {
	record, err := h.backupStore.GetByID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get backup")
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, "backup not found")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *BackupHandler) ListRestoreLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.logStore.List(50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list restore logs")
		return
	}
	if logs == nil {
		logs = []model.RestoreLogRecord{}
	}
	writeJSON(w, http.StatusOK, logs)
}

// Status reports the manager state for the dashboard widget.
func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Status())
}
