package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/opsdeck/opsdeck/internal/model"
	"github.com/opsdeck/opsdeck/internal/store"
)

type DeviceUpdateHandler struct {
	updateStore *store.DeviceUpdateStore
	logger      *slog.Logger
}

func NewDeviceUpdateHandler(us *store.DeviceUpdateStore, logger *slog.Logger) *DeviceUpdateHandler {
	return &DeviceUpdateHandler{updateStore: us, logger: logger}
}

type deviceReport struct {
	DeviceName string `json:"device_name"`
	OSVersion  string `json:"os_version"`
	PatchLevel string `json:"patch_level"`
	Compliant  bool   `json:"compliant"`
	ReportedAt string `json:"reported_at"`
}

// Ingest accepts a patch report from a device agent. Reports are keyed
// on device name, so re-reporting overwrites the previous row.
func (h *DeviceUpdateHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req deviceReport
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.DeviceName = strings.TrimSpace(req.DeviceName)
	if req.DeviceName == "" {
		writeError(w, http.StatusBadRequest, "device_name is required")
		return
	}

	update := &model.DeviceUpdate{
		DeviceName: req.DeviceName,
		OSVersion:  req.OSVersion,
		PatchLevel: req.PatchLevel,
		Compliant:  req.Compliant,
	}
	if req.ReportedAt != "" {
		t, err := time.Parse(time.RFC3339, req.ReportedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "reported_at must be RFC 3339")
			return
		}
		update.ReportedAt = t
	}

	if err := h.updateStore.Upsert(update); err != nil {
		h.logger.Error("ingest device report", "device", req.DeviceName, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record device report")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *DeviceUpdateHandler) List(w http.ResponseWriter, r *http.Request) {
	updates, err := h.updateStore.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list device updates")
		return
	}
	if updates == nil {
		updates = []model.DeviceUpdate{}
	}
	writeJSON(w, http.StatusOK, updates)
}

// Compliance reports the fleet-wide compliant/total counts.
func (h *DeviceUpdateHandler) Compliance(w http.ResponseWriter, r *http.Request) {
	compliant, total, err := h.updateStore.ComplianceSummary()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute compliance")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"compliant": compliant,
		"total":     total,
	})
}
