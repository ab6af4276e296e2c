package security

import (
	"errors"
	"testing"
	"time"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, errHash := HashPassword("correct horse battery staple")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	if hash == "correct horse battery staple" {
		t.Fatalf("expected hash, got plaintext")
	}
	if !CheckPassword(hash, "correct horse battery staple") {
		t.Fatalf("expected matching password to verify")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatalf("expected wrong password to fail")
	}
}

func TestSecretsEqual(t *testing.T) {
	if !SecretsEqual("s3cret", "s3cret") {
		t.Fatalf("expected equal secrets to match")
	}
	if SecretsEqual("s3cret", "other") {
		t.Fatalf("expected mismatch to fail")
	}
	// An unset expected secret rejects everything, including empty input.
	if SecretsEqual("", "") {
		t.Fatalf("expected empty expected secret to reject")
	}
}

func TestGenerateSharedSecret(t *testing.T) {
	first, errGen := GenerateSharedSecret()
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(first))
	}
	second, errGen := GenerateSharedSecret()
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}
	if first == second {
		t.Fatalf("expected distinct secrets")
	}
}

func TestUserTokenRoundTrip(t *testing.T) {
	token, errSign := GenerateUserToken("user-secret", 42, "buyer@example.com", time.Hour)
	if errSign != nil {
		t.Fatalf("sign: %v", errSign)
	}

	claims, errParse := ParseUserToken("user-secret", token)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.UserID != 42 || claims.Email != "buyer@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestUserTokenWrongSecret(t *testing.T) {
	token, errSign := GenerateUserToken("user-secret", 42, "buyer@example.com", time.Hour)
	if errSign != nil {
		t.Fatalf("sign: %v", errSign)
	}

	_, errParse := ParseUserToken("other-secret", token)
	if !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", errParse)
	}
}

func TestUserTokenExpired(t *testing.T) {
	token, errSign := GenerateUserToken("user-secret", 42, "buyer@example.com", -time.Minute)
	if errSign != nil {
		t.Fatalf("sign: %v", errSign)
	}

	_, errParse := ParseUserToken("user-secret", token)
	if !errors.Is(errParse, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", errParse)
	}
}

func TestAdminTokenRoundTrip(t *testing.T) {
	token, errSign := GenerateAdminToken("admin-secret", 7, "root", time.Hour)
	if errSign != nil {
		t.Fatalf("sign: %v", errSign)
	}

	claims, errParse := ParseAdminToken("admin-secret", token)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.AdminID != 7 || claims.Username != "root" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseGarbageToken(t *testing.T) {
	if _, errParse := ParseUserToken("user-secret", "not.a.token"); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", errParse)
	}
	if _, errParse := ParseAdminToken("admin-secret", ""); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", errParse)
	}
}
