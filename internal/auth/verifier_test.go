package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func mintToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestVerifyValidToken(t *testing.T) {
	v := NewVerifier("secret")
	token := mintToken(t, "secret", Claims{
		UserID:   "u-1",
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Username != "alice" || claims.UserID != "u-1" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v := NewVerifier("secret")
	token := mintToken(t, "other", Claims{UserID: "u-1"})

	if _, err := v.Verify(token); err == nil {
		t.Fatal("expected an error for a wrong secret")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	v := NewVerifier("secret")
	token := mintToken(t, "secret", Claims{
		UserID: "u-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	if _, err := v.Verify(token); err == nil {
		t.Fatal("expected an error for an expired token")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	v := NewVerifier("secret")
	if _, err := v.Verify("not-a-token"); err == nil {
		t.Fatal("expected an error for garbage input")
	}
}

func TestEmptySecretDisablesVerifier(t *testing.T) {
	if NewVerifier("") != nil {
		t.Fatal("empty secret must return a nil verifier")
	}
}
