package handler

import (
	"context"
	"net/http"
	"strings"
)

// Caller identity is asserted by an upstream authenticator through these
// headers.
const (
	headerUserID   = "X-User-Id"
	headerUserName = "X-User-Name"
)

type caller struct {
	ID   string
	Name string
}

type callerKey struct{}

// identity stores the caller named by the identity headers in the request
// context. Requests without them carry an empty caller.
func identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := caller{
			ID:   strings.TrimSpace(r.Header.Get(headerUserID)),
			Name: strings.TrimSpace(r.Header.Get(headerUserName)),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, c)))
	})
}

// requireIdentity rejects requests without a caller id with 401.
func requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if callerFrom(r).ID == "" {
			WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerFrom(r *http.Request) caller {
	c, _ := r.Context().Value(callerKey{}).(caller)
	return c
}
