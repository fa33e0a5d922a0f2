package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/opsdeck/opsdeck/internal/assettag"
	"github.com/opsdeck/opsdeck/internal/model"
	"github.com/opsdeck/opsdeck/internal/store"
)

type AssetTagHandler struct {
	allocator *assettag.Allocator
	formats   *store.AssetTagFormatStore
	logger    *slog.Logger
}

func NewAssetTagHandler(a *assettag.Allocator, fs *store.AssetTagFormatStore, logger *slog.Logger) *AssetTagHandler {
	return &AssetTagHandler{allocator: a, formats: fs, logger: logger}
}

// NextID returns the next free tag from the global namespace.
func (h *AssetTagHandler) NextID(w http.ResponseWriter, r *http.Request) {
	tag, err := h.allocator.NextGlobal()
	if err != nil {
		if errors.Is(err, assettag.ErrNotConfigured) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":              "asset tag format not configured",
				"needsConfiguration": true,
			})
			return
		}
		h.logger.Error("next asset id", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute next asset id")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"assetId": tag})
}

type categoryTagRequest struct {
	CategoryID int64 `json:"category_id"`
}

// NextIDByCategory returns the next tag from a category's namespace.
func (h *AssetTagHandler) NextIDByCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryTagRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.CategoryID == 0 {
		writeError(w, http.StatusBadRequest, "category_id is required")
		return
	}

	tag, err := h.allocator.NextByCategory(req.CategoryID)
	if err != nil {
		if errors.Is(err, assettag.ErrNotConfigured) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":              "no tag format for category",
				"needsConfiguration": true,
			})
			return
		}
		h.logger.Error("next asset id by category", "category_id", req.CategoryID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute next asset id")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"assetId": tag})
}

// ReserveNextID advances the persisted counter for a counter-based
// namespace; the commit step after a tag has been handed out.
func (h *AssetTagHandler) ReserveNextID(w http.ResponseWriter, r *http.Request) {
	var req categoryTagRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.CategoryID == 0 {
		writeError(w, http.StatusBadRequest, "category_id is required")
		return
	}

	if err := h.allocator.Reserve(req.CategoryID); err != nil {
		if errors.Is(err, assettag.ErrNotConfigured) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":              "no tag format for category",
				"needsConfiguration": true,
			})
			return
		}
		h.logger.Error("reserve asset id", "category_id", req.CategoryID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reserve asset id")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type saveFormatRequest struct {
	CategoryID    *int64 `json:"category_id"`
	Prefix        string `json:"prefix"`
	StartNumber   int    `json:"start_number"`
	PaddingLength int    `json:"padding_length"`
	AutoIncrement bool   `json:"auto_increment"`
}

// SaveFormat configures a namespace's tag format (admin).
func (h *AssetTagHandler) SaveFormat(w http.ResponseWriter, r *http.Request) {
	var req saveFormatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Prefix == "" {
		writeError(w, http.StatusBadRequest, "prefix is required")
		return
	}
	if req.StartNumber < 1 {
		req.StartNumber = 1
	}
	if req.PaddingLength < 1 {
		req.PaddingLength = 4
	}

	var existing *model.AssetTagFormat
	var err error
	if req.CategoryID != nil {
		existing, err = h.formats.ByCategory(*req.CategoryID)
	} else {
		existing, err = h.formats.Global()
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load tag format")
		return
	}

	format := &model.AssetTagFormat{
		CategoryID:    req.CategoryID,
		Prefix:        req.Prefix,
		StartNumber:   req.StartNumber,
		PaddingLength: req.PaddingLength,
		AutoIncrement: req.AutoIncrement,
	}
	if existing != nil {
		format.ID = existing.ID
		format.CurrentNumber = existing.CurrentNumber
	}

	saved, err := h.formats.Save(format)
	if err != nil {
		h.logger.Error("save tag format", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save tag format")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
