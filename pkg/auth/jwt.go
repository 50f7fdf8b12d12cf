package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/errors"
)

const (
	// defaultTokenTTL bounds how long a local token asserts an identity.
	defaultTokenTTL = time.Hour

	// minSigningKeyLen rejects keys too short for HS256 to mean anything.
	minSigningKeyLen = 32

	// tokenIssuer is the iss claim stamped on every local token.
	tokenIssuer = "ssio-gateway"
)

// TokenConfig configures local token issuance and validation.
type TokenConfig struct {
	// SigningKey is the HMAC key for HS256 signatures. Required.
	SigningKey []byte

	// TTL is the token lifetime. Defaults to one hour.
	TTL time.Duration
}

// LocalTokens mints and validates the gateway's short-lived identity
// tokens. Validation is purely local (signature plus expiry) and never
// contacts the upstream authority; the token asserts who the caller is,
// while whether they may still act is decided by the session bridge.
type LocalTokens struct {
	key []byte
	ttl time.Duration
}

// NewLocalTokens creates the local token issuer/validator.
func NewLocalTokens(cfg TokenConfig) (*LocalTokens, error) {
	if len(cfg.SigningKey) < minSigningKeyLen {
		return nil, fmt.Errorf("local token signing key must be at least %d bytes", minSigningKeyLen)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &LocalTokens{key: cfg.SigningKey, ttl: ttl}, nil
}

// Mint issues a local token asserting the given subject. notAfter, when
// non-zero, caps the token's lifetime; a local token must never outlive
// the management credential it fronts.
func (t *LocalTokens) Mint(subject string, notAfter time.Time) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(t.ttl)
	if !notAfter.IsZero() && notAfter.Before(expiresAt) {
		expiresAt = notAfter
	}

	claims := jwt.MapClaims{
		"sub": subject,
		"iss": tokenIssuer,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": expiresAt.Unix(),
		"jti": uuid.NewString(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign local token: %w", err)
	}
	return token, expiresAt, nil
}

// Validate checks a local token's signature and time claims and returns
// the identity it asserts. Failure is always unauthenticated; validation
// errors carry no detail a caller could act on beyond logging in again.
func (t *LocalTokens) Validate(tokenString string) (*Identity, error) {
	parsed, err := jwt.Parse(tokenString,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return t.key, nil
		},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.NewUnauthenticatedError("invalid local token", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.NewUnauthenticatedError("invalid local token claims", nil)
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, errors.NewUnauthenticatedError("local token missing subject", nil)
	}

	return &Identity{
		Subject: sub,
		Claims:  claims,
		Token:   tokenString,
	}, nil
}
