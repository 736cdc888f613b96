package shared

import (
	"errors"
	"testing"
	"time"
)

func TestTokens(t *testing.T) {
	secret := "test-secret"

	t.Run("RoundTrip", func(t *testing.T) {
		token, err := CreateToken(secret, "user-1", "a@b.com", time.Hour)
		if err != nil {
			t.Fatalf("failed to create token: %v", err)
		}

		userID, err := ParseToken(secret, token)
		if err != nil {
			t.Fatalf("failed to parse token: %v", err)
		}
		if userID != "user-1" {
			t.Errorf("expected user-1, got %s", userID)
		}
	})

	t.Run("WrongSecret", func(t *testing.T) {
		token, err := CreateToken(secret, "user-1", "a@b.com", time.Hour)
		if err != nil {
			t.Fatalf("failed to create token: %v", err)
		}

		if _, err := ParseToken("other-secret", token); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("Expired", func(t *testing.T) {
		token, err := CreateToken(secret, "user-1", "a@b.com", -time.Minute)
		if err != nil {
			t.Fatalf("failed to create token: %v", err)
		}

		if _, err := ParseToken(secret, token); err == nil {
			t.Error("expected expired token to fail")
		}
	})

	t.Run("MissingSecret", func(t *testing.T) {
		if _, err := CreateToken("", "user-1", "a@b.com", time.Hour); !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("Garbage", func(t *testing.T) {
		if _, err := ParseToken(secret, "not-a-token"); err == nil {
			t.Error("expected malformed token to fail")
		}
	})
}

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	if hash == "hunter2" {
		t.Error("hash should not equal plaintext")
	}

	if err := CheckPassword(hash, "hunter2"); err != nil {
		t.Errorf("expected matching password to pass: %v", err)
	}

	if err := CheckPassword(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}
