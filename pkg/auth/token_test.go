package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 30}

func mustTokens(t *testing.T, cfg config.JWTConfig) *Tokens {
	t.Helper()
	tokens, err := NewTokens(cfg)
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	return tokens
}

func TestMintAndVerify(t *testing.T) {
	tokens := mustTokens(t, testJWT)
	userID := uuid.New()

	raw, err := tokens.Mint(time.Now(), Subject{UserID: userID, Email: " staff@example.com ", Staff: true})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	got, err := tokens.Verify(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	want := Subject{UserID: userID, Email: "staff@example.com", Staff: true}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestVerifyRejects(t *testing.T) {
	tokens := mustTokens(t, testJWT)
	valid, err := tokens.Mint(time.Now(), Subject{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	expired, err := tokens.Mint(time.Now().Add(-time.Hour), Subject{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	otherSecret := testJWT
	otherSecret.Secret = "different"
	otherIssuer := testJWT
	otherIssuer.Issuer = "someone-else"

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "storefront", Subject: uuid.NewString()},
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "storefront",
			Subject:   "not-a-uuid",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	cases := []struct {
		name   string
		tokens *Tokens
		raw    string
		is     error
	}{
		{"wrong secret", mustTokens(t, otherSecret), valid, jwt.ErrTokenSignatureInvalid},
		{"wrong issuer", mustTokens(t, otherIssuer), valid, jwt.ErrTokenInvalidIssuer},
		{"expired", tokens, expired, jwt.ErrTokenExpired},
		{"no expiry", tokens, noExpiry, jwt.ErrTokenRequiredClaimMissing},
		{"bad subject", tokens, badSubject, nil},
		{"garbage", tokens, "nope", jwt.ErrTokenMalformed},
	}
	for _, tc := range cases {
		_, err := tc.tokens.Verify(tc.raw)
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if tc.is != nil && !errors.Is(err, tc.is) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.is, err)
		}
	}
}

func TestNewTokensValidatesConfig(t *testing.T) {
	for name, cfg := range map[string]config.JWTConfig{
		"missing secret": {Issuer: "storefront", ExpirationMinutes: 10},
		"missing issuer": {Secret: "secret", ExpirationMinutes: 10},
		"zero ttl":       {Secret: "secret", Issuer: "storefront"},
	} {
		if _, err := NewTokens(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := mustTokens(t, testJWT).Mint(time.Now(), Subject{}); err == nil {
		t.Fatal("expected error for missing user")
	}
}
