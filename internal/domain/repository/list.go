package repository

import (
	"context"
	"time"
)

// RecipientList agrupa destinatarios. Pertenece a un único User.
type RecipientList struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	CreatedAt   time.Time
}

// CreateListInput contiene los datos para crear una lista.
type CreateListInput struct {
	OwnerID     string
	Name        string
	Description string
}

// ListRepository define operaciones sobre listas de destinatarios.
type ListRepository interface {
	Create(ctx context.Context, in CreateListInput) (*RecipientList, error)
	ListByOwner(ctx context.Context, ownerID string) ([]RecipientList, error)
	GetByID(ctx context.Context, id string) (*RecipientList, error)
	Delete(ctx context.Context, id string) error
}
