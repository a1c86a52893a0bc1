package repository

import (
	"context"
	"time"
)

// ActivityType tipo de evento de auditoría.
type ActivityType string

// ActivitySent se registra por cada envío exitoso a un destinatario.
const ActivitySent ActivityType = "sent"

// EmailActivity es una fila append-only del historial de un Email.
type EmailActivity struct {
	ID                string
	EmailID           string
	OwnerID           string
	Type              ActivityType
	RecipientEmail    string
	ProviderMessageID string
	Timestamp         time.Time
}

// ActivityRepository define operaciones sobre el historial. No hay update ni delete.
type ActivityRepository interface {
	Append(ctx context.Context, a EmailActivity) (*EmailActivity, error)
	ListByEmail(ctx context.Context, emailID string) ([]EmailActivity, error)
}
