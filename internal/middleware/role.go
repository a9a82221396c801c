package middleware

import (
	"log/slog"
	"net/http"

	"github.com/projectdesk/projectdesk/internal/auth"
	"github.com/projectdesk/projectdesk/internal/model"
)

// RequireRole returns middleware that checks the role claim of the identity.
// Must be applied after Auth middleware.
//
// With enforce false a mismatch is only logged and the request proceeds, which
// keeps the role a dashboard convenience rather than an access boundary.
func RequireRole(role model.Role, enforce bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := auth.IdentityFromContext(r.Context())
			if identity == nil {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			if identity.Role == role {
				next.ServeHTTP(w, r)
				return
			}

			logger.Warn("role requirement not met",
				slog.String("required_role", string(role)),
				slog.String("role", string(identity.Role)),
				slog.String("user_id", identity.UserID),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.Bool("enforced", enforce),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			if enforce {
				writeError(w, http.StatusForbidden, "Insufficient permissions. Required role: "+string(role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireManager is a convenience middleware for the manager role.
func RequireManager(enforce bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return RequireRole(model.RoleManager, enforce, logger)
}
