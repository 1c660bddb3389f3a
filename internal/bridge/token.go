// Package bridge implements the identity bridge service: it accepts a
// primary-auth token and mints a secondary-system credential whose
// subject is the same deterministic identifier the desktop client
// computes on its own. Neither side ever transmits or stores the mapping.
package bridge

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// PrimaryClaims are the fields extracted from the primary token's payload
// segment.
//
// The payload is decoded WITHOUT verifying the token's signature against
// the primary system's public keys. This is a known gap: until key
// fetching is wired up, the bridge trusts the claims structurally. Do not
// widen what the minted credential grants without closing it.
type PrimaryClaims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
}

// DecodeUnverifiedClaims extracts the subject and email claims from a
// compact JWT without signature verification.
func DecodeUnverifiedClaims(token string) (*PrimaryClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("token must have three segments (got %d)", len(parts))
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode payload segment: %w", err)
	}

	var claims PrimaryClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("failed to parse payload segment: %w", err)
	}
	return &claims, nil
}

// BridgeClaims is the claim set of the minted credential. The derived
// identifier is the subject; the original primary subject rides along for
// audit.
type BridgeClaims struct {
	PrimarySubject string `json:"primary_sub"`
	Email          string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenTTL is the lifetime of minted credentials.
const TokenTTL = time.Hour

// issuer identifies credentials minted by this service.
const issuer = "grindsync-bridge"

// MintToken signs a secondary-system credential for the derived user ID.
func MintToken(secret []byte, userID, primarySubject, email string) (string, error) {
	now := time.Now()
	claims := &BridgeClaims{
		PrimarySubject: primarySubject,
		Email:          email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign credential: %w", err)
	}
	return signed, nil
}

// ParseToken verifies a minted credential and returns its claims.
func ParseToken(secret []byte, tokenStr string) (*BridgeClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &BridgeClaims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*BridgeClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid credential")
	}
	return claims, nil
}
