/*
identity.go - Caller identity resolution

PURPOSE:
  The ledger core needs an authenticated user id on every mutating
  operation, but authentication itself (password hashing, token
  verification) lives outside this service. IdentityProvider is the seam:
  upstream infrastructure terminates auth and this layer only extracts
  the resulting identity from the request.

DEFAULT PROVIDER:
  HeaderIdentity trusts a header (X-User-ID) set by the upstream gateway.
  Swap in a real provider when wiring this service behind something that
  hands us verified tokens.
*/
package api

import (
	"context"
	"net/http"

	"github.com/warp/ledger-engine/ledger"
)

// IdentityProvider resolves the authenticated caller of a request.
// Returning ledger.ErrNoAuthenticatedUser rejects the request with 401.
type IdentityProvider interface {
	Authenticate(r *http.Request) (ledger.UserID, error)
}

// HeaderIdentity reads the caller id from a trusted request header.
type HeaderIdentity struct {
	Header string
}

// NewHeaderIdentity returns a provider reading the default X-User-ID header.
func NewHeaderIdentity() *HeaderIdentity {
	return &HeaderIdentity{Header: "X-User-ID"}
}

func (h *HeaderIdentity) Authenticate(r *http.Request) (ledger.UserID, error) {
	user := ledger.UserID(r.Header.Get(h.Header))
	if user == "" {
		return "", ledger.ErrNoAuthenticatedUser
	}
	return user, nil
}

type contextKey string

const userContextKey contextKey = "ledger.user"

// RequireUser is middleware that authenticates the request and stores the
// caller id in the request context. Unauthenticated requests get 401.
func RequireUser(provider IdentityProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := provider.Authenticate(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "No authenticated user was found", nil)
				return
			}
			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// userFrom returns the authenticated caller stored by RequireUser.
func userFrom(r *http.Request) ledger.UserID {
	user, _ := r.Context().Value(userContextKey).(ledger.UserID)
	return user
}
