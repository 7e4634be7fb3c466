package authn

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestNilAuthenticatorAlwaysAuthorizes(t *testing.T) {
	var a *Authenticator
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if err := a.Authorize(r, "alice"); err != nil {
		t.Fatalf("expected disabled authenticator to allow, got %v", err)
	}
}

func TestAuthorizeAcceptsMatchingSubject(t *testing.T) {
	a := New("shh-secret")
	token := signToken(t, "shh-secret", "alice")
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	if err := a.Authorize(r, "alice"); err != nil {
		t.Fatalf("expected matching subject to authorize, got %v", err)
	}
}

func TestAuthorizeRejectsMismatchedSubject(t *testing.T) {
	a := New("shh-secret")
	token := signToken(t, "shh-secret", "alice")
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	if err := a.Authorize(r, "bob"); err == nil {
		t.Fatalf("expected mismatched subject to be rejected")
	}
}

func TestAuthorizeRejectsMissingHeader(t *testing.T) {
	a := New("shh-secret")
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if err := a.Authorize(r, "alice"); err == nil {
		t.Fatalf("expected missing authorization header to be rejected")
	}
}

func TestAuthorizeRejectsWrongSecret(t *testing.T) {
	a := New("shh-secret")
	token := signToken(t, "other-secret", "alice")
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	if err := a.Authorize(r, "alice"); err == nil {
		t.Fatalf("expected a token signed with the wrong secret to be rejected")
	}
}
