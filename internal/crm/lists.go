package crm

import (
	"context"
	"strings"

	"github.com/dropDatabas3/hellomail/internal/domain/repository"
	"github.com/dropDatabas3/hellomail/internal/observability/logger"
)

// Lists CRUD de listas de destinatarios.
type Lists struct {
	lists      repository.ListRepository
	recipients repository.RecipientRepository
}

// NewLists crea el servicio.
func NewLists(lists repository.ListRepository, recipients repository.RecipientRepository) *Lists {
	return &Lists{lists: lists, recipients: recipients}
}

func (s *Lists) Create(ctx context.Context, ownerID, name, description string) (*repository.RecipientList, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name is required")
	}
	l, err := s.lists.Create(ctx, repository.CreateListInput{
		OwnerID:     ownerID,
		Name:        name,
		Description: strings.TrimSpace(description),
	})
	if err != nil {
		return nil, err
	}
	logger.From(ctx).Info("list created", logger.UserID(ownerID), logger.ListID(l.ID))
	return l, nil
}

func (s *Lists) List(ctx context.Context, ownerID string) ([]repository.RecipientList, error) {
	return s.lists.ListByOwner(ctx, ownerID)
}

// Get devuelve la lista si pertenece a ownerID.
func (s *Lists) Get(ctx context.Context, ownerID, id string) (*repository.RecipientList, error) {
	l, err := s.lists.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := owned(l.OwnerID, ownerID); err != nil {
		return nil, err
	}
	return l, nil
}

// Members destinatarios de la lista (sólo los del mismo dueño).
func (s *Lists) Members(ctx context.Context, ownerID, id string) ([]repository.Recipient, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}
	return s.recipients.ListByOwner(ctx, ownerID, repository.RecipientFilter{ListID: id})
}

// Delete borra la lista. Se rechaza si todavía tiene destinatarios.
func (s *Lists) Delete(ctx context.Context, ownerID, id string) error {
	members, err := s.Members(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if len(members) > 0 {
		return ErrListNotEmpty
	}
	if err := s.lists.Delete(ctx, id); err != nil {
		return err
	}
	logger.From(ctx).Info("list deleted", logger.UserID(ownerID), logger.ListID(id))
	return nil
}
