package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/opsdeck/opsdeck/internal/model"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenRoundTrip(t *testing.T) {
	tm, err := NewTokenManager(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	user := &model.User{ID: 42, Email: "ops@example.com", Role: model.RoleAdmin}
	token, err := tm.Issue(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := tm.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("uid = %d, want 42", claims.UserID)
	}
	if claims.Email != "ops@example.com" {
		t.Errorf("email = %q", claims.Email)
	}
	if claims.Role != "admin" {
		t.Errorf("role = %q, want admin", claims.Role)
	}
}

func TestTokenRejectsGarbage(t *testing.T) {
	tm, _ := NewTokenManager(testSecret, time.Hour)

	if _, err := tm.Verify("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	tm1, _ := NewTokenManager(testSecret, time.Hour)
	tm2, _ := NewTokenManager("ffffffffffffffffffffffffffffffff", time.Hour)

	token, err := tm1.Issue(&model.User{ID: 1, Email: "a@b.c", Role: model.RoleViewer})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := tm2.Verify(token); err == nil {
		t.Error("expected verification failure with different secret")
	}
}

func TestTokenManagerRejectsShortSecret(t *testing.T) {
	if _, err := NewTokenManager("short", time.Hour); err == nil {
		t.Error("expected error for short secret")
	}
}
