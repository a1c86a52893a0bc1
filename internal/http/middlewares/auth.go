package middlewares

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/hellomail/internal/http/errors"
	jwtx "github.com/dropDatabas3/hellomail/internal/jwt"
	"github.com/dropDatabas3/hellomail/internal/observability/logger"
)

// =================================================================================
// AUTHENTICATION
// =================================================================================

// RequireSession valida el token de sesión (cookie o Authorization: Bearer) y
// deja el SessionUser en el contexto. Sin token o con token inválido responde 401.
// El Bearer tiene prioridad sobre la cookie.
func RequireSession(issuer *jwtx.Issuer, cookieName string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := SessionToken(r, cookieName)
			if raw == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
				errors.WriteError(w, errors.ErrTokenMissing)
				return
			}

			u, err := issuer.ParseSession(raw)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				errors.WriteError(w, errors.ErrTokenInvalid.WithCause(err))
				return
			}

			ctx := WithSession(r.Context(), u)
			// el logger scoped ya existe si WithLogging corrió antes
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.UserID(u.ID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionToken extrae el token del header Authorization o de la cookie.
func SessionToken(r *http.Request, cookieName string) string {
	if ah := strings.TrimSpace(r.Header.Get("Authorization")); ah != "" {
		if len(ah) > 7 && strings.EqualFold(ah[:7], "bearer ") {
			return strings.TrimSpace(ah[7:])
		}
	}
	if cookieName == "" {
		return ""
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}
