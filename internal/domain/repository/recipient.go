package repository

import (
	"context"
	"time"
)

// Recipient es un contacto. ListID vacío = sin lista.
type Recipient struct {
	ID        string
	OwnerID   string
	Email     string
	Name      string
	ListID    string
	CreatedAt time.Time
}

// CreateRecipientInput contiene los datos para crear un destinatario.
type CreateRecipientInput struct {
	OwnerID string
	Email   string
	Name    string
	ListID  string
}

// RecipientFilter filtro secundario para ListByOwner.
type RecipientFilter struct {
	ListID string // opcional
}

// RecipientRepository define operaciones sobre destinatarios.
type RecipientRepository interface {
	Create(ctx context.Context, in CreateRecipientInput) (*Recipient, error)

	// CreateMany inserta en lote. No es atómico: ante error puede haber inserts parciales.
	CreateMany(ctx context.Context, in []CreateRecipientInput) ([]Recipient, error)

	// ListByOwner lista los destinatarios del dueño, opcionalmente filtrados por lista.
	ListByOwner(ctx context.Context, ownerID string, filter RecipientFilter) ([]Recipient, error)

	GetByID(ctx context.Context, id string) (*Recipient, error)
	Delete(ctx context.Context, id string) error
}
