package logger

import (
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/hellomail/internal/util"
)

// ─── HTTP ───

func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

func Method(v string) zap.Field {
	return zap.String("method", v)
}

func Path(v string) zap.Field {
	return zap.String("path", v)
}

func Status(v int) zap.Field {
	return zap.Int("status", v)
}

func DurationMs(v int64) zap.Field {
	return zap.Int64("duration_ms", v)
}

func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// ─── Dominio ───

// UserID identifica al dueño de la operación.
func UserID(v string) zap.Field {
	return zap.String("user_id", v)
}

// EmailID identifica un Email (campaña o envío directo).
func EmailID(v string) zap.Field {
	return zap.String("email_id", v)
}

// ListID identifica una RecipientList.
func ListID(v string) zap.Field {
	return zap.String("list_id", v)
}

// Recipient es la dirección destino, enmascarada (PII).
func Recipient(v string) zap.Field {
	return zap.String("recipient", util.MaskEmail(v))
}

// EmailStatus es el status persistido del Email.
func EmailStatus(v string) zap.Field {
	return zap.String("email_status", v)
}

// MessageID es el id devuelto por el proveedor de correo.
func MessageID(v string) zap.Field {
	return zap.String("message_id", v)
}

// ─── Sistema ───

func Component(v string) zap.Field {
	return zap.String("component", v)
}

func Op(v string) zap.Field {
	return zap.String("op", v)
}

func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

func Err(err error) zap.Field {
	return zap.Error(err)
}

func Count(v int) zap.Field {
	return zap.Int("count", v)
}

func String(key, v string) zap.Field {
	return zap.String(key, v)
}

func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}

func Time(key string, v time.Time) zap.Field {
	return zap.Time(key, v)
}

func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}
