package middleware

import (
	"errors"
	"net/http"

	"github.com/patrol-auth/internal/application/authz"
	"github.com/patrol-auth/internal/domain"
)

// Require returns middleware that admits only identities whose role is in p.
// It must run after Auth.
func Require(p authz.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := IdentityFromContext(r.Context())
			if err := p.Check(id); err != nil {
				if errors.Is(err, domain.ErrUnauthorized) {
					writeJSONError(w, http.StatusUnauthorized, "unauthorized")
					return
				}
				writeJSONError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
