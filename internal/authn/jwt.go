// Package authn implements an optional connection-level bearer-token check:
// it verifies which client_id a WebSocket connection may claim, not the
// operations it later submits.
package authn

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is returned for a missing, malformed, or mismatched token.
var ErrUnauthorized = errors.New("authn: unauthorized")

// Authenticator verifies a bearer JWT's subject claim against a claimed
// client_id. A nil *Authenticator always authorizes, so auth stays disabled
// whenever auth.jwt_secret is unset.
type Authenticator struct {
	secret []byte
}

// New returns an Authenticator for secret, or nil if secret is empty,
// disabling connection authentication entirely.
func New(secret string) *Authenticator {
	if strings.TrimSpace(secret) == "" {
		return nil
	}
	return &Authenticator{secret: []byte(secret)}
}

// Authorize checks r's Authorization header against clientID. Disabled
// authenticators (nil receiver) always succeed.
func (a *Authenticator) Authorize(r *http.Request, clientID string) error {
	if a == nil {
		return nil
	}
	if clientID == "" {
		return ErrUnauthorized
	}

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ErrUnauthorized
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" {
		return ErrUnauthorized
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrUnauthorized, t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return ErrUnauthorized
	}

	subject, err := claims.GetSubject()
	if err != nil || subject != clientID {
		return ErrUnauthorized
	}
	return nil
}
