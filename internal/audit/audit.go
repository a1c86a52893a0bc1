// Package audit registra eventos de cuenta (alta, login, vínculo de Gmail) en
// un logger propio ("audit") para poder rutearlos aparte.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/hellomail/internal/observability/logger"
)

const (
	AccountRegistered  = "account.registered"
	AccountLogin       = "account.login"
	AccountLoginFailed = "account.login_failed"
	GmailLinked        = "gmail.linked"
	GmailLinkFailed    = "gmail.link_failed"
	GmailUnlinked      = "gmail.unlinked"
)

// Log writes a structured audit event. Hereda request_id/user_id del logger del contexto.
func Log(ctx context.Context, event string, fields ...zap.Field) {
	base := []zap.Field{
		zap.String("event", event),
		zap.Time("ts", time.Now().UTC()),
	}
	logger.From(ctx).Named("audit").Info(event, append(base, fields...)...)
}
