package crm

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/hellomail/internal/domain/repository"
	"github.com/dropDatabas3/hellomail/internal/observability/logger"
)

// MaxBulkRecipients tope de filas por carga masiva.
const MaxBulkRecipients = 1000

// RecipientInput alta de un destinatario.
type RecipientInput struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	ListID string `json:"listId"`
}

// Recipients CRUD de destinatarios.
type Recipients struct {
	lists      *Lists
	recipients repository.RecipientRepository
}

// NewRecipients crea el servicio.
func NewRecipients(lists *Lists, recipients repository.RecipientRepository) *Recipients {
	return &Recipients{lists: lists, recipients: recipients}
}

func (s *Recipients) Create(ctx context.Context, ownerID string, in RecipientInput) (*repository.Recipient, error) {
	ci, err := s.prepare(ctx, ownerID, in, map[string]bool{})
	if err != nil {
		return nil, err
	}
	return s.recipients.Create(ctx, ci)
}

// CreateMany valida todas las filas antes de insertar. La inserción no es atómica.
func (s *Recipients) CreateMany(ctx context.Context, ownerID string, in []RecipientInput) ([]repository.Recipient, error) {
	if len(in) == 0 {
		return nil, invalid("recipients are required")
	}
	if len(in) > MaxBulkRecipients {
		return nil, invalid("at most %d recipients per request", MaxBulkRecipients)
	}

	checked := map[string]bool{}
	rows := make([]repository.CreateRecipientInput, 0, len(in))
	for i, r := range in {
		ci, err := s.prepare(ctx, ownerID, r, checked)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows = append(rows, ci)
	}
	out, err := s.recipients.CreateMany(ctx, rows)
	if err != nil {
		return nil, err
	}
	logger.From(ctx).Info("recipients imported", logger.UserID(ownerID), logger.Count(len(out)))
	return out, nil
}

func (s *Recipients) List(ctx context.Context, ownerID, listID string) ([]repository.Recipient, error) {
	if listID != "" {
		return s.lists.Members(ctx, ownerID, listID)
	}
	return s.recipients.ListByOwner(ctx, ownerID, repository.RecipientFilter{})
}

func (s *Recipients) Get(ctx context.Context, ownerID, id string) (*repository.Recipient, error) {
	r, err := s.recipients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := owned(r.OwnerID, ownerID); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Recipients) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	return s.recipients.Delete(ctx, id)
}

// prepare normaliza la fila y verifica la lista una sola vez por id.
func (s *Recipients) prepare(ctx context.Context, ownerID string, in RecipientInput, checked map[string]bool) (repository.CreateRecipientInput, error) {
	if strings.TrimSpace(in.Email) == "" {
		return repository.CreateRecipientInput{}, invalid("email is required")
	}
	addr, err := parseAddress(in.Email)
	if err != nil {
		return repository.CreateRecipientInput{}, err
	}
	listID := strings.TrimSpace(in.ListID)
	if listID != "" && !checked[listID] {
		if _, err := s.lists.Get(ctx, ownerID, listID); err != nil {
			return repository.CreateRecipientInput{}, err
		}
		checked[listID] = true
	}
	return repository.CreateRecipientInput{
		OwnerID: ownerID,
		Email:   addr,
		Name:    strings.TrimSpace(in.Name),
		ListID:  listID,
	}, nil
}
