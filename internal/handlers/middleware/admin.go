package middleware

import (
	"net/http"

	"github.com/almaz-dev/eduspin/internal/handlers/render"
	"github.com/almaz-dev/eduspin/internal/handlers/userctx"
)

// AdminMiddleware rejects non-admin users. Must run after AuthMiddleware.
func AdminMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := userctx.FromContext(r.Context())
			if !ok {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if !user.IsAdmin() {
				render.ServiceError(w, "Admin role required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
