package auth

import (
	"strings"
	"testing"

	"github.com/orbita-social/backend/internal/models"
)

func TestSignAndVerify(t *testing.T) {
	user := &models.User{ID: 42, Email: "alice@example.com"}

	token, err := Sign(user)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	claims, err := Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if claims.UserID != 42 {
		t.Fatalf("expected user id 42, got %d", claims.UserID)
	}
	if claims.Email != "alice@example.com" {
		t.Fatalf("claims.Email mismatch: got %s", claims.Email)
	}
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	user := &models.User{ID: 7, Email: "bob@example.com"}

	token, err := Sign(user)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	// Flip a character in the signature segment
	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	parts[2] = string(sig)

	if _, err := Verify(strings.Join(parts, ".")); err == nil {
		t.Fatal("expected tampered token to be rejected")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	if _, err := Verify("not-a-token"); err == nil {
		t.Fatal("expected garbage token to be rejected")
	}
}
