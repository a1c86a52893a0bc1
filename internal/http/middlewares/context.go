package middlewares

import (
	"context"

	jwtx "github.com/dropDatabas3/hellomail/internal/jwt"
)

// =================================================================================
// CONTEXT KEYS
// =================================================================================

type ctxKey string

const (
	ctxSessionKey   ctxKey = "session"
	ctxRequestIDKey ctxKey = "request_id"
)

// WithSession inyecta el usuario de la sesión en el contexto.
func WithSession(ctx context.Context, u *jwtx.SessionUser) context.Context {
	return context.WithValue(ctx, ctxSessionKey, u)
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetSession obtiene el usuario de la sesión. nil si la ruta no pasó por RequireSession.
func GetSession(ctx context.Context) *jwtx.SessionUser {
	if u, ok := ctx.Value(ctxSessionKey).(*jwtx.SessionUser); ok {
		return u
	}
	return nil
}

// GetUserID atajo para GetSession(ctx).ID. Vacío si no hay sesión.
func GetUserID(ctx context.Context) string {
	if u := GetSession(ctx); u != nil {
		return u.ID
	}
	return ""
}

// GetRequestID obtiene el request ID del contexto.
func GetRequestID(ctx context.Context) string {
	if s, ok := ctx.Value(ctxRequestIDKey).(string); ok {
		return s
	}
	return ""
}
