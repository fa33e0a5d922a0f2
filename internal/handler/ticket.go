package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/opsdeck/opsdeck/internal/model"
	"github.com/opsdeck/opsdeck/internal/store"
	"github.com/opsdeck/opsdeck/internal/websocket"
)

type TicketHandler struct {
	ticketStore *store.TicketStore
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewTicketHandler(ts *store.TicketStore, hub *websocket.Hub, logger *slog.Logger) *TicketHandler {
	return &TicketHandler{ticketStore: ts, hub: hub, logger: logger}
}

func (h *TicketHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

var validPriorities = map[string]bool{
	"low":      true,
	"medium":   true,
	"high":     true,
	"critical": true,
}

var validTicketStatuses = map[model.TicketStatus]bool{
	model.TicketOpen:       true,
	model.TicketInProgress: true,
	model.TicketResolved:   true,
	model.TicketClosed:     true,
}

type ticketRequest struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Status      model.TicketStatus `json:"status"`
	Priority    string             `json:"priority"`
	RequesterID *int64             `json:"requester_id"`
	AssigneeID  *int64             `json:"assignee_id"`
}

func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ticketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Priority == "" {
		req.Priority = "medium"
	}
	if !validPriorities[req.Priority] {
		writeError(w, http.StatusBadRequest, "priority must be low, medium, high, or critical")
		return
	}

	ticket, err := h.ticketStore.Create(req.Title, req.Description, req.Priority, req.RequesterID, req.AssigneeID)
	if err != nil {
		h.logger.Error("create ticket", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create ticket")
		return
	}

	h.broadcast(websocket.NewMessage("ticket", "created", ticket.ID, nil))
	writeJSON(w, http.StatusCreated, ticket)
}

func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.ticketStore.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tickets")
		return
	}
	if tickets == nil {
		tickets = []model.Ticket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	ticket, err := h.ticketStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get ticket")
		return
	}
	if ticket == nil {
		writeError(w, http.StatusNotFound, "ticket not found")
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *TicketHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.ticketStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get ticket")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "ticket not found")
		return
	}

	var req ticketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Status == "" {
		req.Status = existing.Status
	}
	if !validTicketStatuses[req.Status] {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	if req.Priority == "" {
		req.Priority = existing.Priority
	}
	if !validPriorities[req.Priority] {
		writeError(w, http.StatusBadRequest, "priority must be low, medium, high, or critical")
		return
	}

	ticket, err := h.ticketStore.Update(id, req.Title, req.Description, req.Status, req.Priority, req.AssigneeID)
	if err != nil {
		h.logger.Error("update ticket", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update ticket")
		return
	}

	h.broadcast(websocket.NewMessage("ticket", "updated", id, nil))
	writeJSON(w, http.StatusOK, ticket)
}

func (h *TicketHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.ticketStore.SoftDelete(id); err != nil {
		h.logger.Error("delete ticket", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete ticket")
		return
	}
	h.broadcast(websocket.NewMessage("ticket", "deleted", id, nil))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
