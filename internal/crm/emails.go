package crm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dropDatabas3/hellomail/internal/dispatch"
	"github.com/dropDatabas3/hellomail/internal/domain/repository"
	"github.com/dropDatabas3/hellomail/internal/observability/logger"
)

// Dispatcher envía un email ya persistido (dispatch.Dispatcher).
type Dispatcher interface {
	Send(ctx context.Context, emailID string) (*dispatch.Result, error)
}

// EmailInput alta de un email.
type EmailInput struct {
	Subject        string
	Body           string
	RecipientEmail string
	ListID         string
	ScheduledFor   string
	SendNow        bool
}

// DefaultStaleAfter antigüedad a partir de la cual un "sending" se considera huérfano.
const DefaultStaleAfter = 15 * time.Minute

// EmailsDeps dependencias del servicio de emails.
type EmailsDeps struct {
	Emails     repository.EmailRepository
	Activities repository.ActivityRepository
	Lists      *Lists
	Dispatcher Dispatcher

	// StaleAfter: un email en "sending" sin cambios por más de este tiempo se
	// puede reprogramar o borrar. 0 = DefaultStaleAfter.
	StaleAfter time.Duration
	Now        func() time.Time
}

// Emails crea, programa y envía emails.
type Emails struct {
	deps EmailsDeps
}

// NewEmails crea el servicio.
func NewEmails(deps EmailsDeps) *Emails {
	if deps.StaleAfter <= 0 {
		deps.StaleAfter = DefaultStaleAfter
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Emails{deps: deps}
}

// guard estados desde los que se admite reprogramar o borrar.
func (s *Emails) guard() repository.Guard {
	return repository.Guard{
		From:        repository.ReschedulableStatuses,
		StaleBefore: s.deps.Now().Add(-s.deps.StaleAfter),
	}
}

// Create persiste el email. Con SendNow lo despacha en el acto; con
// ScheduledFor queda "scheduled"; si no, "draft". El Result sólo viene con SendNow.
func (s *Emails) Create(ctx context.Context, ownerID string, in EmailInput) (*repository.Email, *dispatch.Result, error) {
	ci, err := s.validate(ctx, ownerID, in)
	if err != nil {
		return nil, nil, err
	}

	e, err := s.deps.Emails.Create(ctx, ci)
	if err != nil {
		return nil, nil, err
	}
	log := logger.From(ctx).With(logger.Layer("service"), logger.EmailID(e.ID), logger.UserID(ownerID))
	log.Info("email created", logger.EmailStatus(string(e.Status)))

	if !in.SendNow {
		return e, nil, nil
	}
	res, err := s.deps.Dispatcher.Send(ctx, e.ID)
	if err != nil {
		return e, res, err
	}
	// releer para devolver status/sentAt finales
	if fresh, gerr := s.deps.Emails.GetByID(ctx, e.ID); gerr == nil {
		e = fresh
	}
	return e, res, nil
}

func (s *Emails) List(ctx context.Context, ownerID string, status repository.EmailStatus) ([]repository.Email, error) {
	if status != "" && !status.Valid() {
		return nil, invalid("unknown status %q", status)
	}
	return s.deps.Emails.ListByOwner(ctx, ownerID, repository.EmailFilter{Status: status})
}

// Get devuelve el email si pertenece a ownerID.
func (s *Emails) Get(ctx context.Context, ownerID, id string) (*repository.Email, error) {
	e, err := s.deps.Emails.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := owned(e.OwnerID, ownerID); err != nil {
		return nil, err
	}
	return e, nil
}

// Delete borra el email. Uno en vuelo no se puede borrar salvo que haya quedado huérfano.
func (s *Emails) Delete(ctx context.Context, ownerID, id string) error {
	e, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if e.Status == repository.EmailSending && !s.guard().Allows(e) {
		return ErrEmailLocked
	}
	return s.deps.Emails.Delete(ctx, id)
}

// Send despacha un email en draft o scheduled. Cualquier otro estado devuelve
// dispatch.ErrAlreadyClaimed.
func (s *Emails) Send(ctx context.Context, ownerID, id string) (*repository.Email, *dispatch.Result, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, nil, err
	}
	res, err := s.deps.Dispatcher.Send(ctx, id)
	if err != nil {
		return nil, res, err
	}
	e, err := s.deps.Emails.GetByID(ctx, id)
	if err != nil {
		return nil, res, err
	}
	return e, res, nil
}

// Schedule (re)programa el email. Admite draft, scheduled, failed y un
// "sending" huérfano. El estado se vuelve a verificar en la escritura: si un
// tick lo reclamó entre la lectura y el update, devuelve ErrEmailLocked.
func (s *Emails) Schedule(ctx context.Context, ownerID, id, scheduledFor string) (*repository.Email, error) {
	e, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	guard := s.guard()
	if !guard.Allows(e) {
		return nil, ErrEmailLocked
	}
	scheduledFor = strings.TrimSpace(scheduledFor)
	if _, err := repository.ParseScheduledFor(scheduledFor); err != nil {
		return nil, invalid("scheduledFor: unparseable %q", scheduledFor)
	}
	if err := s.deps.Emails.Reschedule(ctx, id, scheduledFor, guard); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrEmailLocked
		}
		return nil, err
	}
	logger.From(ctx).Info("email scheduled", logger.EmailID(id), logger.String("scheduled_for", scheduledFor))
	return s.deps.Emails.GetByID(ctx, id)
}

// Activity historial de envíos del email.
func (s *Emails) Activity(ctx context.Context, ownerID, id string) ([]repository.EmailActivity, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}
	return s.deps.Activities.ListByEmail(ctx, id)
}

func (s *Emails) validate(ctx context.Context, ownerID string, in EmailInput) (repository.CreateEmailInput, error) {
	ci := repository.CreateEmailInput{
		OwnerID: ownerID,
		Subject: strings.TrimSpace(in.Subject),
		Body:    in.Body,
		ListID:  strings.TrimSpace(in.ListID),
		Status:  repository.EmailDraft,
	}
	if ci.Subject == "" || strings.TrimSpace(ci.Body) == "" {
		return ci, invalid("subject and body are required")
	}

	direct := strings.TrimSpace(in.RecipientEmail)
	switch {
	case direct != "" && ci.ListID != "":
		return ci, invalid("recipientEmail and listId are mutually exclusive")
	case direct == "" && ci.ListID == "":
		return ci, invalid("one of recipientEmail or listId is required")
	case direct != "":
		addr, err := parseAddress(direct)
		if err != nil {
			return ci, err
		}
		ci.RecipientEmail = addr
	default:
		if _, err := s.deps.Lists.Get(ctx, ownerID, ci.ListID); err != nil {
			return ci, err
		}
	}

	if at := strings.TrimSpace(in.ScheduledFor); at != "" {
		if in.SendNow {
			return ci, invalid("sendNow and scheduledFor are mutually exclusive")
		}
		if _, err := repository.ParseScheduledFor(at); err != nil {
			return ci, invalid("scheduledFor: unparseable %q", at)
		}
		ci.ScheduledFor = at
		ci.Status = repository.EmailScheduled
	}
	return ci, nil
}
