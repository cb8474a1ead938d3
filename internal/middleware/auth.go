package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKeyHeader is the header clients send their key in.
const APIKeyHeader = "X-API-Key"

type principalKey struct{}

// WithPrincipal stores the principal name in the context.
func WithPrincipal(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, principalKey{}, name)
}

// PrincipalFromContext extracts the principal name from the context.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(principalKey{}).(string)
	return name, ok
}

// APIKeyAuth accepts requests carrying one of keys in the X-API-Key header or
// as a Bearer token. keys maps principal name to key. An empty map disables
// authentication.
func APIKeyAuth(keys map[string]string) func(http.Handler) http.Handler {
	type entry struct {
		principal string
		hash      [sha256.Size]byte
	}
	entries := make([]entry, 0, len(keys))
	for principal, key := range keys {
		entries = append(entries, entry{principal: principal, hash: sha256.Sum256([]byte(key))})
	}

	return func(next http.Handler) http.Handler {
		if len(entries) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(APIKeyHeader)
			if presented == "" {
				if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
					presented = strings.TrimPrefix(auth, "Bearer ")
				}
			}
			if presented != "" {
				hash := sha256.Sum256([]byte(presented))
				for _, e := range entries {
					if subtle.ConstantTimeCompare(hash[:], e.hash[:]) == 1 {
						next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), e.principal)))
						return
					}
				}
			}
			writeJSONError(w, http.StatusUnauthorized, "unauthorized: provide a valid API key", "unauthorized")
		})
	}
}
