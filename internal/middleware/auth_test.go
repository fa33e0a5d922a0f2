package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/opsdeck/opsdeck/internal/auth"
	"github.com/opsdeck/opsdeck/internal/database"
	"github.com/opsdeck/opsdeck/internal/model"
	"github.com/opsdeck/opsdeck/internal/permcache"
	"github.com/opsdeck/opsdeck/internal/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setupAuthTest(t *testing.T) (*auth.TokenManager, *store.UserStore, *permcache.Cache, http.Handler) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenManager(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	users := store.NewUserStore(db)
	perms := permcache.New(permcache.DefaultTTL)

	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.UserID(r.Context()) == 0 {
			t.Error("auth context missing inside protected handler")
		}
		w.WriteHeader(http.StatusOK)
	})
	return tokens, users, perms, RequireAuth(tokens, users, perms)(handler)
}

func TestRequireAuthMissingToken(t *testing.T) {
	_, _, _, protected := setupAuthTest(t)

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest("GET", "/api/tickets", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuthGarbageToken(t *testing.T) {
	_, _, _, protected := setupAuthTest(t)

	req := httptest.NewRequest("GET", "/api/tickets", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuthValidToken(t *testing.T) {
	tokens, users, _, protected := setupAuthTest(t)

	u, err := users.Create("a@example.com", "A", model.RoleAgent, "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := tokens.Issue(u)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/tickets", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRequireAuthDeactivatedUser(t *testing.T) {
	tokens, users, _, protected := setupAuthTest(t)

	u, _ := users.Create("gone@example.com", "Gone", model.RoleAgent, "hash")
	token, _ := tokens.Issue(u)
	if err := users.SetActive(u.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/tickets", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for deactivated account", rec.Code)
	}
}

func TestRequireAuthUsesFreshCache(t *testing.T) {
	tokens, users, perms, protected := setupAuthTest(t)

	u, _ := users.Create("cached@example.com", "C", model.RoleViewer, "hash")
	token, _ := tokens.Issue(u)

	// Prime the cache, then deactivate: until the entry goes stale the
	// cached role keeps the request alive.
	perms.Set(u.ID, permcache.Permissions{Role: model.RoleViewer})
	users.SetActive(u.ID, false)

	req := httptest.NewRequest("GET", "/api/tickets", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 while cache entry is fresh", rec.Code)
	}

	// Invalidate: the next request reloads and sees the deactivation.
	perms.Invalidate(u.ID)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 after cache invalidation", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

	// Admin passes.
	req := httptest.NewRequest("POST", "/api/create-backup", nil)
	ctx := auth.WithAuth(req.Context(), auth.AuthContext{UserID: 1, Role: model.RoleAdmin})
	rec := httptest.NewRecorder()
	RequireAdmin(http.HandlerFunc(ok)).ServeHTTP(rec, req.WithContext(ctx))
	if rec.Code != http.StatusOK {
		t.Errorf("admin status = %d, want 200", rec.Code)
	}

	// Agent is forbidden.
	ctx = auth.WithAuth(req.Context(), auth.AuthContext{UserID: 2, Role: model.RoleAgent})
	rec = httptest.NewRecorder()
	RequireAdmin(http.HandlerFunc(ok)).ServeHTTP(rec, req.WithContext(ctx))
	if rec.Code != http.StatusForbidden {
		t.Errorf("agent status = %d, want 403", rec.Code)
	}
}

func TestBearerTokenParsing(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)

	if _, ok := bearerToken(req); ok {
		t.Error("empty header parsed as token")
	}

	req.Header.Set("Authorization", "bearer abc123")
	tok, ok := bearerToken(req)
	if !ok || tok != "abc123" {
		t.Errorf("case-insensitive prefix: got %q, ok=%v", tok, ok)
	}

	req.Header.Set("Authorization", "Basic abc123")
	if _, ok := bearerToken(req); ok {
		t.Error("Basic scheme parsed as bearer token")
	}
}
