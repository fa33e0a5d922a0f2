package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/opsdeck/opsdeck/internal/model"
	"github.com/opsdeck/opsdeck/internal/store"
	"github.com/opsdeck/opsdeck/internal/websocket"
)

type SubscriptionHandler struct {
	subStore *store.SubscriptionStore
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewSubscriptionHandler(ss *store.SubscriptionStore, hub *websocket.Hub, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{subStore: ss, hub: hub, logger: logger}
}

func (h *SubscriptionHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type subscriptionRequest struct {
	Name        string `json:"name"`
	Vendor      string `json:"vendor"`
	Seats       int    `json:"seats"`
	CostCents   int64  `json:"cost_cents"`
	Currency    string `json:"currency"`
	RenewalDate string `json:"renewal_date"`
	OwnerID     *int64 `json:"owner_id"`
}

func (r subscriptionRequest) toModel() (*model.Subscription, error) {
	sub := &model.Subscription{
		Name:      strings.TrimSpace(r.Name),
		Vendor:    strings.TrimSpace(r.Vendor),
		Seats:     r.Seats,
		CostCents: r.CostCents,
		Currency:  r.Currency,
		OwnerID:   r.OwnerID,
	}
	if sub.Currency == "" {
		sub.Currency = "USD"
	}
	if r.RenewalDate != "" {
		t, err := time.Parse("2006-01-02", r.RenewalDate)
		if err != nil {
			return nil, err
		}
		sub.RenewalDate = &t
	}
	return sub, nil
}

func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	sub, err := req.toModel()
	if err != nil {
		writeError(w, http.StatusBadRequest, "renewal_date must be YYYY-MM-DD")
		return
	}
	if sub.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	created, err := h.subStore.Create(sub)
	if err != nil {
		h.logger.Error("create subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create subscription")
		return
	}

	h.broadcast(websocket.NewMessage("subscription", "created", created.ID, nil))
	writeJSON(w, http.StatusCreated, created)
}

func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subStore.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	if subs == nil {
		subs = []model.Subscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	sub, err := h.subStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get subscription")
		return
	}
	if sub == nil {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *SubscriptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.subStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get subscription")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}

	var req subscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	sub, err := req.toModel()
	if err != nil {
		writeError(w, http.StatusBadRequest, "renewal_date must be YYYY-MM-DD")
		return
	}
	if sub.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	updated, err := h.subStore.Update(id, sub)
	if err != nil {
		h.logger.Error("update subscription", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update subscription")
		return
	}

	h.broadcast(websocket.NewMessage("subscription", "updated", id, nil))
	writeJSON(w, http.StatusOK, updated)
}

func (h *SubscriptionHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.subStore.Deactivate(id); err != nil {
		h.logger.Error("deactivate subscription", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to deactivate subscription")
		return
	}
	h.broadcast(websocket.NewMessage("subscription", "deactivated", id, nil))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
