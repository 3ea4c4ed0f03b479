package httpapi

import (
	"context"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"magasin/backend/internal/accounts"
	"magasin/backend/internal/domain"
)

func newTestAuth(t *testing.T) *AuthManager {
	t.Helper()
	users := accounts.NewMemoryStore()
	seedUser(t, users, "admin", adminPassword, domain.RoleAdmin, true)
	return NewAuthManager(testSecret, time.Minute, users)
}

func TestAuthManagerRoundTrip(t *testing.T) {
	auth := newTestAuth(t)

	resp, err := auth.Login(context.Background(), domain.LoginRequest{Username: "ADMIN", Password: adminPassword})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Username != "admin" || actor.Role != domain.RoleAdmin {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestAuthManagerRejectsExpiredToken(t *testing.T) {
	auth := newTestAuth(t)
	auth.now = func() time.Time { return time.Now().UTC().Add(-time.Hour) }

	resp, err := auth.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: adminPassword})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	auth.now = func() time.Time { return time.Now().UTC() }
	if _, err := auth.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestAuthManagerRejectsForeignTokens(t *testing.T) {
	auth := newTestAuth(t)
	other := NewAuthManager("another-secret-key-with-32-chars-min", time.Minute, accounts.NewMemoryStore())

	foreign, err := other.sign("admin", domain.RoleAdmin, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(foreign); err == nil {
		t.Fatalf("expected token signed with another key to be rejected")
	}

	unsigned := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, magasinClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{Subject: "admin", Issuer: tokenIssuer},
		Role:             domain.RoleAdmin,
	})
	raw, err := unsigned.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := auth.ParseToken(raw); err == nil {
		t.Fatalf("expected unsigned token to be rejected")
	}

	unknownRole, err := auth.sign("admin", "superuser", time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(unknownRole); err == nil {
		t.Fatalf("expected unknown role to be rejected")
	}
}

func TestAuthManagerRejectsInactiveAccount(t *testing.T) {
	users := accounts.NewMemoryStore()
	seedUser(t, users, "ancien", cashierPassword, domain.RoleCashier, false)
	auth := NewAuthManager(testSecret, time.Minute, users)

	if _, err := auth.Login(context.Background(), domain.LoginRequest{Username: "ancien", Password: cashierPassword}); err != errInactiveAccount {
		t.Fatalf("expected errInactiveAccount, got %v", err)
	}
	if _, err := auth.Login(context.Background(), domain.LoginRequest{Username: "ancien", Password: "wrong"}); err != errInvalidCredentials {
		t.Fatalf("expected errInvalidCredentials, got %v", err)
	}
}
