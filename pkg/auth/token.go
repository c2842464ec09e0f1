package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

const leeway = 30 * time.Second

// Subject is the caller a bearer token vouches for.
type Subject struct {
	UserID uuid.UUID
	Email  string
	Staff  bool
}

// Claims is the JWT body. The user id travels as the standard subject.
type Claims struct {
	Email string `json:"email,omitempty"`
	Staff bool   `json:"staff,omitempty"`
	jwt.RegisteredClaims
}

// Tokens mints and verifies HS256 access tokens for one issuer.
type Tokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	parser *jwt.Parser
}

func NewTokens(cfg config.JWTConfig) (*Tokens, error) {
	switch {
	case cfg.Secret == "":
		return nil, fmt.Errorf("jwt secret is required")
	case cfg.Issuer == "":
		return nil, fmt.Errorf("jwt issuer is required")
	case cfg.ExpirationMinutes <= 0:
		return nil, fmt.Errorf("jwt expiration must be positive")
	}
	return &Tokens{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    time.Duration(cfg.ExpirationMinutes) * time.Minute,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(leeway),
		),
	}, nil
}

func (t *Tokens) Mint(now time.Time, s Subject) (string, error) {
	if s.UserID == uuid.Nil {
		return "", fmt.Errorf("user id is required")
	}
	claims := Claims{
		Email: strings.TrimSpace(s.Email),
		Staff: s.Staff,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   s.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry and returns the subject.
func (t *Tokens) Verify(raw string) (Subject, error) {
	var claims Claims
	_, err := t.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil {
		return Subject{}, err
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil || id == uuid.Nil {
		return Subject{}, errors.New("token subject is not a user id")
	}
	return Subject{UserID: id, Email: claims.Email, Staff: claims.Staff}, nil
}
