package middleware

import (
	"net/http"
	"strings"

	"github.com/hexleaf/tenantauth"
)

// Guard authorizes each request through [tenantauth.Engine.Authorize]
// with no role requirement: any member of the token's organization
// passes. The resulting [tenantauth.SecurityContext] is placed on the
// request context for handlers.
func Guard(engine *tenantauth.Engine) func(http.Handler) http.Handler {
	return RequireRole(engine, "")
}

// RequireRole is [Guard] with a minimum role. Every rejection is a bare
// 401; the reason stays in the engine's log and audit trail.
func RequireRole(engine *tenantauth.Engine, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			sc, err := engine.Authorize(r.Context(), token, role)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(tenantauth.ContextWithSecurity(r.Context(), sc)))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
