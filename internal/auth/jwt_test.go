package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sealevel/backend/internal/models"
)

func TestTokenRoundTrip(t *testing.T) {
	service, err := NewService("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("service init: %v", err)
	}

	csrf, err := GenerateCSRFToken()
	if err != nil {
		t.Fatalf("csrf: %v", err)
	}

	user := models.User{ID: 7, Email: "test@example.com"}
	token, err := service.GenerateToken(user, csrf)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	parsed, err := service.ParseToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}

	if parsed.ID != user.ID || parsed.Email != user.Email {
		t.Fatalf("unexpected claims: %+v", parsed)
	}
	if parsed.CSRF != csrf {
		t.Fatalf("csrf mismatch")
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	issuer, err := NewService("issuer-secret", time.Hour)
	if err != nil {
		t.Fatalf("service init: %v", err)
	}
	verifier, err := NewService("other-secret", time.Hour)
	if err != nil {
		t.Fatalf("service init: %v", err)
	}

	token, err := issuer.GenerateToken(models.User{ID: 1, Email: "a@b.c"}, "csrf")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := verifier.ParseToken(token); err == nil {
		t.Fatalf("expected parse error for wrong secret")
	}
}

func TestParseTokenRejectsForeignIssuer(t *testing.T) {
	service, err := NewService("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("service init: %v", err)
	}

	claims := Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "another-service",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := service.ParseToken(token); err == nil {
		t.Fatalf("expected parse error for foreign issuer")
	}
}

func TestNewServiceRequiresSecret(t *testing.T) {
	if _, err := NewService("", time.Hour); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestUserContextRoundTrip(t *testing.T) {
	user := User{ID: 42, Email: "ctx@example.com", CSRF: "token"}
	ctx := WithUser(context.Background(), user)
	got, ok := UserFromContext(ctx)
	if !ok {
		t.Fatalf("expected user in context")
	}
	if got != user {
		t.Fatalf("unexpected user: %+v", got)
	}
}
