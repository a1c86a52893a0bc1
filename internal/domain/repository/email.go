package repository

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// EmailStatus es el estado persistido de un Email.
type EmailStatus string

const (
	EmailDraft         EmailStatus = "draft"
	EmailScheduled     EmailStatus = "scheduled"
	EmailSending       EmailStatus = "sending" // marcador in-flight, lo escribe Claim
	EmailSent          EmailStatus = "sent"
	EmailPartiallySent EmailStatus = "partially_sent"
	EmailFailed        EmailStatus = "failed"
)

// Valid indica si el status es conocido.
func (s EmailStatus) Valid() bool {
	switch s {
	case EmailDraft, EmailScheduled, EmailSending, EmailSent, EmailPartiallySent, EmailFailed:
		return true
	}
	return false
}

// ClaimableStatuses son los estados desde los que un Email puede pasar a "sending".
var ClaimableStatuses = []EmailStatus{EmailDraft, EmailScheduled}

// ReschedulableStatuses son los estados desde los que un Email se puede (re)programar.
var ReschedulableStatuses = []EmailStatus{EmailDraft, EmailScheduled, EmailFailed}

// Guard condiciona una escritura al estado actual del Email.
type Guard struct {
	From []EmailStatus

	// StaleBefore, si no es cero, también admite un "sending" con UpdatedAt
	// anterior: un dispatch que murió sin escribir el estado final.
	StaleBefore time.Time
}

// Allows evalúa el guard contra el Email (adapters en memoria, chequeos previos).
func (g Guard) Allows(e *Email) bool {
	for _, s := range g.From {
		if e.Status == s {
			return true
		}
	}
	return e.Status == EmailSending && !g.StaleBefore.IsZero() && e.UpdatedAt.Before(g.StaleBefore)
}

// Email es un envío: a una dirección directa o a todos los miembros de una lista.
// Debería tener exactamente uno de RecipientEmail / ListID; el store no lo impone.
type Email struct {
	ID             string
	OwnerID        string
	Subject        string
	Body           string // HTML
	RecipientEmail string
	ListID         string
	Status         EmailStatus

	// ScheduledFor se guarda tal cual llegó del cliente; ver ParseScheduledFor.
	ScheduledFor string
	SentAt       *time.Time
	LastError    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateEmailInput contiene los datos para crear un Email.
type CreateEmailInput struct {
	OwnerID        string
	Subject        string
	Body           string
	RecipientEmail string
	ListID         string
	Status         EmailStatus
	ScheduledFor   string
}

// EmailFilter filtro secundario para ListByOwner.
type EmailFilter struct {
	Status EmailStatus // opcional
}

// StatusUpdate describe la escritura de estado terminal (o de fallo) de un Email.
type StatusUpdate struct {
	Status    EmailStatus
	SentAt    *time.Time
	LastError string
}

// EmailRepository define operaciones sobre emails.
type EmailRepository interface {
	Create(ctx context.Context, in CreateEmailInput) (*Email, error)
	ListByOwner(ctx context.Context, ownerID string, filter EmailFilter) ([]Email, error)
	GetByID(ctx context.Context, id string) (*Email, error)
	Delete(ctx context.Context, id string) error

	// UpdateStatus escribe status/sentAt/lastError sin condiciones.
	UpdateStatus(ctx context.Context, id string, upd StatusUpdate) error

	// Claim pasa atómicamente el Email a "sending" si su status actual está en from.
	// Retorna el Email ya reclamado, ErrNotFound si no existe o ErrConflict si
	// otro proceso lo reclamó antes (o el status no es reclamable).
	Claim(ctx context.Context, id string, from []EmailStatus) (*Email, error)

	// ListByStatus es un scan global (sin filtrar por dueño). Lo usa el scheduler.
	ListByStatus(ctx context.Context, status EmailStatus) ([]Email, error)

	// Reschedule fija scheduledFor y pasa el Email a "scheduled", sólo si el
	// status actual cumple guard (en la misma escritura). ErrConflict si no.
	Reschedule(ctx context.Context, id, scheduledFor string, guard Guard) error
}

// scheduledLayouts formatos aceptados para scheduledFor. Los formatos sin zona
// (datetime-local de HTML) se interpretan en UTC.
var scheduledLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseScheduledFor parsea el valor de scheduledFor.
func ParseScheduledFor(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("scheduledFor: empty: %w", ErrInvalidInput)
	}
	for _, layout := range scheduledLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("scheduledFor: unparseable %q: %w", s, ErrInvalidInput)
}

// DueAt indica si el Email está vencido respecto de now. Valores ausentes o
// imparseables nunca están vencidos.
func (e *Email) DueAt(now time.Time) bool {
	if e.ScheduledFor == "" {
		return false
	}
	t, err := ParseScheduledFor(e.ScheduledFor)
	if err != nil {
		return false
	}
	return !t.After(now)
}
