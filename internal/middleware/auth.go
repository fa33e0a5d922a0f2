package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/opsdeck/opsdeck/internal/auth"
	"github.com/opsdeck/opsdeck/internal/model"
	"github.com/opsdeck/opsdeck/internal/permcache"
	"github.com/opsdeck/opsdeck/internal/store"
)

// RequireAuth validates the bearer token and populates AuthContext. The
// user's role comes from the permission cache when fresh; stale or missing
// entries reload from the user store, so deactivation takes effect within
// one cache TTL.
func RequireAuth(tokens *auth.TokenManager, users *store.UserStore, perms *permcache.Cache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "missing bearer token")
				return
			}

			claims, err := tokens.Verify(tokenString)
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}

			role := model.UserRole(claims.Role)
			cached, fresh, ok := perms.Get(claims.UserID)
			if ok && fresh {
				role = cached.Role
			} else {
				user, err := users.GetByID(claims.UserID)
				if err != nil || user == nil || !user.IsActive {
					perms.Invalidate(claims.UserID)
					unauthorized(w, "account unavailable")
					return
				}
				role = user.Role
				perms.Set(claims.UserID, permcache.Permissions{Role: role})
			}

			ac := auth.AuthContext{
				UserID: claims.UserID,
				Email:  claims.Email,
				Role:   role,
			}
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

// RequireAdmin checks that the authenticated user has the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
