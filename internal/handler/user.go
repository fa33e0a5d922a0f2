package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/opsdeck/opsdeck/internal/model"
	"github.com/opsdeck/opsdeck/internal/permcache"
	"github.com/opsdeck/opsdeck/internal/store"
)

type UserHandler struct {
	userStore *store.UserStore
	perms     *permcache.Cache
	logger    *slog.Logger
}

func NewUserHandler(us *store.UserStore, perms *permcache.Cache, logger *slog.Logger) *UserHandler {
	return &UserHandler{userStore: us, perms: perms, logger: logger}
}

var validRoles = map[model.UserRole]bool{
	model.RoleAdmin:  true,
	model.RoleAgent:  true,
	model.RoleViewer: true,
}

type createUserRequest struct {
	Email    string         `json:"email"`
	FullName string         `json:"full_name"`
	Role     model.UserRole `json:"role"`
	Password string         `json:"password"`
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if req.Role == "" {
		req.Role = model.RoleViewer
	}
	if !validRoles[req.Role] {
		writeError(w, http.StatusBadRequest, "role must be admin, agent, or viewer")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user, err := h.userStore.Create(req.Email, req.FullName, req.Role, string(hash))
	if err != nil {
		h.logger.Error("create user", "email", req.Email, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

type bulkCreateRequest struct {
	Users []createUserRequest `json:"users"`
}

// BulkCreate provisions many accounts at once. The batch is atomic: a
// single bad row (duplicate email, weak password) rejects everything.
// Created accounts are flagged must_change_password.
func (h *UserHandler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	var req bulkCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Users) == 0 {
		writeError(w, http.StatusBadRequest, "users list is empty")
		return
	}

	users := make([]model.User, 0, len(req.Users))
	for _, u := range req.Users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		if email == "" || !strings.Contains(email, "@") {
			writeError(w, http.StatusBadRequest, "a valid email is required for every user")
			return
		}
		role := u.Role
		if role == "" {
			role = model.RoleViewer
		}
		if !validRoles[role] {
			writeError(w, http.StatusBadRequest, "role must be admin, agent, or viewer")
			return
		}
		if len(u.Password) < 8 {
			writeError(w, http.StatusBadRequest, "every password must be at least 8 characters")
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to hash password")
			return
		}
		users = append(users, model.User{
			Email:        email,
			FullName:     u.FullName,
			Role:         role,
			PasswordHash: string(hash),
		})
	}

	created, err := h.userStore.BulkCreate(users)
	if err != nil {
		h.logger.Error("bulk create users", "count", len(users), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create users")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"created": created,
	})
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userStore.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

type resetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// ResetPassword is the admin-initiated reset. The target must change the
// password at next login, and their cached permissions are dropped.
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.NewPassword) < 8 {
		writeError(w, http.StatusBadRequest, "new password must be at least 8 characters")
		return
	}

	user, err := h.userStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}
	if err := h.userStore.UpdatePassword(id, string(hash), true); err != nil {
		h.logger.Error("reset password", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset password")
		return
	}
	h.perms.Invalidate(id)

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

func (h *UserHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req setActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := h.userStore.SetActive(id, req.Active); err != nil {
		h.logger.Error("set user active", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}
	h.perms.Invalidate(id)

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
