package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/opsdeck/opsdeck/internal/auth"
	"github.com/opsdeck/opsdeck/internal/database"
	"github.com/opsdeck/opsdeck/internal/model"
	"github.com/opsdeck/opsdeck/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func setupAuthHandler(t *testing.T) (*AuthHandler, *store.UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	users := store.NewUserStore(db)
	return NewAuthHandler(users, tokens, testLogger()), users
}

func createUser(t *testing.T, users *store.UserStore, email, password string, role model.UserRole) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u, err := users.Create(email, "Test User", role, string(hash))
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestLoginSuccess(t *testing.T) {
	h, users := setupAuthHandler(t)
	createUser(t, users, "admin@example.com", "hunter22", model.RoleAdmin)

	rec := httptest.NewRecorder()
	h.Login(rec, jsonRequest(t, "POST", "/api/login", map[string]string{
		"email":    "Admin@Example.com",
		"password": "hunter22",
	}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" {
		t.Error("expected non-empty token")
	}
	if resp.User.Email != "admin@example.com" {
		t.Errorf("user email = %q", resp.User.Email)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h, users := setupAuthHandler(t)
	createUser(t, users, "a@example.com", "correct", model.RoleViewer)

	rec := httptest.NewRecorder()
	h.Login(rec, jsonRequest(t, "POST", "/api/login", map[string]string{
		"email":    "a@example.com",
		"password": "incorrect",
	}))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLoginUnknownAndInactive(t *testing.T) {
	h, users := setupAuthHandler(t)
	u := createUser(t, users, "off@example.com", "pw123456", model.RoleViewer)
	users.SetActive(u.ID, false)

	// Unknown account and deactivated account produce the same 401 so the
	// response does not reveal which emails exist.
	for _, email := range []string{"nobody@example.com", "off@example.com"} {
		rec := httptest.NewRecorder()
		h.Login(rec, jsonRequest(t, "POST", "/api/login", map[string]string{
			"email":    email,
			"password": "pw123456",
		}))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", email, rec.Code)
		}
	}
}

func TestLoginMissingFields(t *testing.T) {
	h, _ := setupAuthHandler(t)

	rec := httptest.NewRecorder()
	h.Login(rec, jsonRequest(t, "POST", "/api/login", map[string]string{"email": "x@example.com"}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
