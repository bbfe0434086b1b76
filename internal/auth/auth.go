package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Auth guards the signal ingestion endpoints with a shared bearer token.
// An empty token disables the check, for bench rigs and local development.
type Auth struct {
	token string
}

// New builds an Auth instance for the configured token.
func New(token string) *Auth {
	return &Auth{token: strings.TrimSpace(token)}
}

// Enabled reports whether a token is configured.
func (a *Auth) Enabled() bool {
	return a != nil && a.token != ""
}

// Allow checks the Authorization header of an incoming request.
func (a *Auth) Allow(r *http.Request) bool {
	if !a.Enabled() {
		return true
	}
	header := r.Header.Get("Authorization")
	presented, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(a.token)) == 1
}
