package auth

import (
	"testing"
	"time"
)

const testSecret = "my_test_jwt_secret"

func TestGenerateAndParseJWT(t *testing.T) {
	id := Identity{UserID: 42, Username: "testuser", Role: "user", Plan: "pro"}

	tokenString, err := GenerateJWT(testSecret, id, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate JWT: %v", err)
	}
	if tokenString == "" {
		t.Fatalf("empty token string")
	}

	claims, err := ParseJWT(testSecret, tokenString)
	if err != nil {
		t.Fatalf("failed to parse JWT: %v", err)
	}
	if claims.UserID != id.UserID {
		t.Errorf("expected userId=%d, got %d", id.UserID, claims.UserID)
	}
	if claims.Username != id.Username {
		t.Errorf("expected username=%s, got %s", id.Username, claims.Username)
	}
	if claims.Role != id.Role {
		t.Errorf("expected role=%s, got %s", id.Role, claims.Role)
	}
	if claims.Plan != id.Plan {
		t.Errorf("expected plan=%s, got %s", id.Plan, claims.Plan)
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(time.Now()) {
		t.Errorf("token should not be expired, got expiresAt=%v", claims.ExpiresAt)
	}
}

func TestParseJWT_InvalidToken(t *testing.T) {
	if _, err := ParseJWT(testSecret, "this.is.not.a.valid.jwt"); err == nil {
		t.Errorf("expected error for invalid JWT, got nil")
	}
}

func TestParseJWT_WrongSecret(t *testing.T) {
	tokenString, err := GenerateJWT(testSecret, Identity{UserID: 99, Username: "wrongsecret", Role: "admin"}, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate JWT: %v", err)
	}
	if _, err = ParseJWT("totally_wrong_secret", tokenString); err == nil {
		t.Errorf("expected error for wrong secret, got nil")
	}
}

func TestParseJWT_Expired(t *testing.T) {
	tokenString, err := GenerateJWT(testSecret, Identity{UserID: 7}, -time.Minute)
	if err != nil {
		t.Fatalf("failed to generate JWT: %v", err)
	}
	if _, err = ParseJWT(testSecret, tokenString); err == nil {
		t.Errorf("expected error for expired JWT, got nil")
	}
}
