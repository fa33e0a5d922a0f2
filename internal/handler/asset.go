package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/opsdeck/opsdeck/internal/model"
	"github.com/opsdeck/opsdeck/internal/store"
	"github.com/opsdeck/opsdeck/internal/websocket"
)

type AssetHandler struct {
	assetStore    *store.AssetStore
	categoryStore *store.CategoryStore
	hub           *websocket.Hub
	logger        *slog.Logger
}

func NewAssetHandler(as *store.AssetStore, cs *store.CategoryStore, hub *websocket.Hub, logger *slog.Logger) *AssetHandler {
	return &AssetHandler{assetStore: as, categoryStore: cs, hub: hub, logger: logger}
}

func (h *AssetHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type assetRequest struct {
	AssetTag     string            `json:"asset_tag"`
	Name         string            `json:"name"`
	CategoryID   *int64            `json:"category_id"`
	Status       model.AssetStatus `json:"status"`
	SerialNumber string            `json:"serial_number"`
	AssignedTo   *int64            `json:"assigned_to"`
}

func (h *AssetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req assetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.AssetTag = strings.TrimSpace(req.AssetTag)
	req.Name = strings.TrimSpace(req.Name)
	if req.AssetTag == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "asset_tag and name are required")
		return
	}
	if req.Status == "" {
		req.Status = model.AssetInService
	}

	asset, err := h.assetStore.Create(&model.Asset{
		AssetTag:     req.AssetTag,
		Name:         req.Name,
		CategoryID:   req.CategoryID,
		Status:       req.Status,
		SerialNumber: req.SerialNumber,
		AssignedTo:   req.AssignedTo,
	})
	if err != nil {
		h.logger.Error("create asset", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create asset")
		return
	}

	h.broadcast(websocket.NewMessage("asset", "created", asset.ID, nil))
	writeJSON(w, http.StatusCreated, asset)
}

func (h *AssetHandler) List(w http.ResponseWriter, r *http.Request) {
	assets, err := h.assetStore.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list assets")
		return
	}
	if assets == nil {
		assets = []model.Asset{}
	}
	writeJSON(w, http.StatusOK, assets)
}

func (h *AssetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	asset, err := h.assetStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get asset")
		return
	}
	if asset == nil {
		writeError(w, http.StatusNotFound, "asset not found")
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (h *AssetHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.assetStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get asset")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "asset not found")
		return
	}

	var req assetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Status == "" {
		req.Status = existing.Status
	}

	asset, err := h.assetStore.Update(id, &model.Asset{
		Name:         req.Name,
		CategoryID:   req.CategoryID,
		Status:       req.Status,
		SerialNumber: req.SerialNumber,
		AssignedTo:   req.AssignedTo,
		PurchaseDate: existing.PurchaseDate,
	})
	if err != nil {
		h.logger.Error("update asset", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update asset")
		return
	}

	h.broadcast(websocket.NewMessage("asset", "updated", id, nil))
	writeJSON(w, http.StatusOK, asset)
}

// Retire marks the asset out of service but keeps the row (and its tag).
func (h *AssetHandler) Retire(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.assetStore.Retire(id); err != nil {
		h.logger.Error("retire asset", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to retire asset")
		return
	}
	h.broadcast(websocket.NewMessage("asset", "retired", id, nil))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Categories

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *AssetHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	cat, err := h.categoryStore.Create(req.Name, req.Description)
	if err != nil {
		h.logger.Error("create category", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create category")
		return
	}
	writeJSON(w, http.StatusCreated, cat)
}

func (h *AssetHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.categoryStore.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	if cats == nil {
		cats = []model.AssetCategory{}
	}
	writeJSON(w, http.StatusOK, cats)
}
