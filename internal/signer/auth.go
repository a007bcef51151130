package signer

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mitchellh/mapstructure"

	"github.com/sealify/docseal/attestation"
)

// tokenClaims is the shape of the bearer credential the OAuth layer mints
// after sign-in. Only the identity claims matter here; session handling
// lives outside this system.
type tokenClaims struct {
	Subject  string `mapstructure:"sub"`
	Provider string `mapstructure:"pvd"`
}

// AuthorizationError means the caller is authenticated but the package's
// identity is not theirs. Distinct from a generic server failure so clients
// can present it properly.
type AuthorizationError struct {
	Reason string
}

func (e AuthorizationError) Error() string {
	return fmt.Sprintf("not authorized: %s", e.Reason)
}

// MintCredential issues a bearer token for an authenticated identity.
func MintCredential(secret []byte, identity attestation.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": identity.Identifier,
		"pvd": identity.Provider,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})
	return token.SignedString(secret)
}

// authenticate validates the Authorization header and returns the identity
// it asserts.
func authenticate(r *http.Request, secret []byte) (attestation.Identity, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return attestation.Identity{}, AuthorizationError{Reason: "missing bearer credential"}
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return attestation.Identity{}, AuthorizationError{Reason: "invalid credential"}
	}

	var claims tokenClaims
	if err := mapstructure.Decode(token.Claims, &claims); err != nil {
		return attestation.Identity{}, AuthorizationError{Reason: "malformed claims"}
	}
	if claims.Subject == "" || claims.Provider == "" {
		return attestation.Identity{}, AuthorizationError{Reason: "credential carries no identity"}
	}

	return attestation.Identity{Provider: claims.Provider, Identifier: claims.Subject}, nil
}
