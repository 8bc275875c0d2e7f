// Package token extracts routing claims from bearer tokens without verifying
// their signature. Cryptographic validation is delegated to the downstream
// resource API, which receives the token unchanged; this layer only needs the
// claims for tenant gating, rate limiting, and telemetry.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token is structurally malformed
	// or required claims are missing.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned when the token's expiry is in the past.
	ErrExpiredToken = errors.New("token expired")
)

// Claims holds the subset of token claims the gateway acts on.
type Claims struct {
	// Subject is the stable per-user identifier; rate limiting keys on it.
	Subject string

	// TenantID is the issuing tenant, checked against the allowlist.
	TenantID string

	// DisplayID is a best-effort human-readable identity for logs.
	DisplayID string

	// ExpiresAt is the token expiry.
	ExpiresAt time.Time
}

// rawClaims mirrors the JWT payload fields we care about. Embedding
// RegisteredClaims gives exp as a NumericDate; a wrong-typed exp fails
// decoding, which is exactly the rejection we want.
type rawClaims struct {
	ObjectID          string `json:"oid"`
	TenantID          string `json:"tid"`
	UPN               string `json:"upn"`
	PreferredUsername string `json:"preferred_username"`
	jwt.RegisteredClaims
}

// ParseClaims decodes the token's payload segment and validates the claims
// the gateway depends on. The signature segment is never checked.
//
// A missing exp is treated as invalid rather than non-expiring. The expiry
// boundary is exclusive on the past side: exp equal to the current second is
// still valid.
func ParseClaims(tokenString string) (*Claims, error) {
	return parseClaimsAt(tokenString, time.Now())
}

func parseClaimsAt(tokenString string, now time.Time) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	raw := &rawClaims{}
	if _, _, err := parser.ParseUnverified(tokenString, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	subject := raw.ObjectID
	if subject == "" {
		subject = raw.Subject
	}
	if subject == "" {
		return nil, fmt.Errorf("%w: missing subject claim", ErrInvalidToken)
	}

	if raw.TenantID == "" {
		return nil, fmt.Errorf("%w: missing tid claim", ErrInvalidToken)
	}

	if raw.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp claim", ErrInvalidToken)
	}
	if raw.ExpiresAt.Unix() < now.Unix() {
		return nil, ErrExpiredToken
	}

	return &Claims{
		Subject:   subject,
		TenantID:  raw.TenantID,
		DisplayID: displayIdentity(raw, subject),
		ExpiresAt: raw.ExpiresAt.Time,
	}, nil
}

// displayIdentity prefers a principal-name style claim, falling back to the
// subject identifier.
func displayIdentity(raw *rawClaims, subject string) string {
	if raw.UPN != "" {
		return raw.UPN
	}
	if raw.PreferredUsername != "" {
		return raw.PreferredUsername
	}
	return subject
}
