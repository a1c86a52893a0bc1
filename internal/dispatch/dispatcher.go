// Package dispatch implementa el pipeline de envío de un Email:
//
//	claim ─► credencial ─► destinatarios ─► envío 1x1 ─► actividad ─► estado final
//
// El claim (draft/scheduled ─► sending) es atómico en el store: si dos procesos
// (un envío manual y un tick del scheduler) compiten por el mismo Email, sólo uno
// envía y el otro recibe ErrAlreadyClaimed.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/hellomail/internal/domain/repository"
	"github.com/dropDatabas3/hellomail/internal/mail"
	"github.com/dropDatabas3/hellomail/internal/metrics"
	"github.com/dropDatabas3/hellomail/internal/oauth/google"
	"github.com/dropDatabas3/hellomail/internal/observability/logger"
	"github.com/dropDatabas3/hellomail/internal/store"
)

var (
	ErrAccountNotLinked = errors.New("dispatch: sender has no linked mail account")
	ErrNoRecipients     = errors.New("dispatch: email has no recipients")
	ErrAlreadyClaimed   = errors.New("dispatch: email is not in a sendable state")
	ErrInterrupted      = errors.New("dispatch: interrupted before all recipients were attempted")
)

// TransportError fallo del proveedor para un destinatario.
type TransportError struct {
	Recipient string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("dispatch: submit to %s: %v", e.Recipient, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RecipientResult resultado por destinatario.
type RecipientResult struct {
	Email     string `json:"email"`
	Status    string `json:"status"` // "sent" | "failed" | "skipped"
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Result resumen de un dispatch.
type Result struct {
	EmailID    string                 `json:"emailId"`
	Status     repository.EmailStatus `json:"status"`
	Total      int                    `json:"total"`
	Sent       int                    `json:"sent"`
	Failed     int                    `json:"failed"`
	Recipients []RecipientResult      `json:"recipients"`
}

// CredentialOpener descifra la credencial guardada en el User (secretbox.Box).
type CredentialOpener interface {
	Open(cipherText string) (string, error)
}

// Dispatcher ejecuta el pipeline. Es seguro para uso concurrente.
type Dispatcher struct {
	st        *store.Store
	transport mail.Transport
	creds     CredentialOpener
	policy    StatusPolicy
	now       func() time.Time
}

// Option configura un Dispatcher.
type Option func(*Dispatcher)

// WithPolicy fija la política de estado final.
func WithPolicy(p StatusPolicy) Option {
	return func(d *Dispatcher) { d.policy = p }
}

// WithClock reemplaza el reloj (tests).
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// New crea un Dispatcher.
func New(st *store.Store, transport mail.Transport, creds CredentialOpener, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		st:        st,
		transport: transport,
		creds:     creds,
		policy:    PolicyPipeline,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// SendEmail es un atajo de Send para cuando ya se tiene la entidad.
func (d *Dispatcher) SendEmail(ctx context.Context, e *repository.Email) (*Result, error) {
	return d.Send(ctx, e.ID)
}

// Send reclama el Email y lo envía a todos sus destinatarios.
//
// Errores de pre-condición (cuenta no vinculada, credencial rechazada por el
// proveedor, sin destinatarios, fallo del store) dejan el Email en "failed" y
// se devuelven al caller. Los fallos por destinatario no abortan el resto y
// sólo se reportan en el Result. Si ctx se cancela a mitad del recorrido, los
// destinatarios pendientes no se intentan, el Email queda "failed" y el error
// envuelve ErrInterrupted y la causa de ctx.
//
// Una vez reclamado, las escrituras de estado usan un contexto sin cancelación:
// el Email nunca queda en "sending" por un cliente que se desconectó.
func (d *Dispatcher) Send(ctx context.Context, emailID string) (*Result, error) {
	email, err := d.st.Emails().Claim(ctx, emailID, repository.ClaimableStatuses)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			metrics.EmailsDispatched.WithLabelValues("skipped").Inc()
			return nil, fmt.Errorf("%w: %s", ErrAlreadyClaimed, emailID)
		}
		return nil, err
	}

	log := logger.From(ctx).With(
		logger.Component("dispatch"),
		logger.EmailID(email.ID),
		logger.UserID(email.OwnerID),
	)
	ctx = logger.ToContext(ctx, log)
	return d.run(ctx, log, email)
}

func (d *Dispatcher) run(ctx context.Context, log *zap.Logger, email *repository.Email) (*Result, error) {
	start := d.now()
	defer func() { metrics.DispatchDuration.Observe(time.Since(start).Seconds()) }()
	persist := context.WithoutCancel(ctx)

	cred, err := d.credential(ctx, email.OwnerID)
	if err != nil {
		return nil, d.fail(persist, log, email, err)
	}

	to, err := d.recipients(ctx, email)
	if err != nil {
		return nil, d.fail(persist, log, email, err)
	}

	log.Info("dispatch started", logger.Count(len(to)))

	res := &Result{EmailID: email.ID, Total: len(to), Recipients: make([]RecipientResult, 0, len(to))}
	var (
		interrupted error
		attempted   int
	)
	for i, addr := range to {
		if cerr := ctx.Err(); cerr != nil {
			interrupted = cerr
			res.skipRemaining(to[i:], cerr)
			break
		}

		attempted++
		msgID, err := d.transport.Submit(ctx, cred, mail.Message{
			To:       addr,
			Subject:  email.Subject,
			HTMLBody: email.Body,
		})
		if err != nil {
			terr := &TransportError{Recipient: addr, Err: err}
			log.Warn("recipient send failed", logger.Recipient(addr), logger.Err(terr))
			metrics.RecipientSends.WithLabelValues("failed").Inc()
			res.Failed++
			res.Recipients = append(res.Recipients, RecipientResult{Email: addr, Status: "failed", Error: err.Error()})
			if cerr := ctx.Err(); cerr != nil {
				interrupted = cerr
				res.skipRemaining(to[i+1:], cerr)
				break
			}
			continue
		}

		metrics.RecipientSends.WithLabelValues("sent").Inc()
		res.Sent++
		res.Recipients = append(res.Recipients, RecipientResult{Email: addr, Status: "sent", MessageID: msgID})

		// El mensaje ya salió: un fallo al registrar la actividad no lo convierte en fallo de envío.
		if _, err := d.st.Activities().Append(persist, repository.EmailActivity{
			EmailID:           email.ID,
			OwnerID:           email.OwnerID,
			Type:              repository.ActivitySent,
			RecipientEmail:    addr,
			ProviderMessageID: msgID,
			Timestamp:         d.now(),
		}); err != nil {
			log.Error("activity append failed", logger.Recipient(addr), logger.Err(err))
		}
	}

	status, lastErr := d.policy.finalStatus(res)
	if interrupted != nil {
		status = repository.EmailFailed
		lastErr = fmt.Sprintf("interrupted after %d of %d recipients: %v", attempted, res.Total, interrupted)
	}
	upd := repository.StatusUpdate{Status: status, LastError: lastErr}
	if status != repository.EmailFailed {
		sentAt := d.now()
		if sentAt.Before(start) {
			sentAt = start
		}
		upd.SentAt = &sentAt
	}
	res.Status = status

	if err := d.st.Emails().UpdateStatus(persist, email.ID, upd); err != nil {
		log.Error("final status write failed", logger.EmailStatus(string(status)), logger.Err(err))
		return res, fmt.Errorf("dispatch: update status: %w", err)
	}

	metrics.EmailsDispatched.WithLabelValues(string(status)).Inc()
	log.Info("dispatch finished",
		logger.EmailStatus(string(status)),
		logger.Int("sent", res.Sent),
		logger.Int("failed", res.Failed),
	)
	if interrupted != nil {
		return res, fmt.Errorf("%w: %w", ErrInterrupted, interrupted)
	}
	return res, nil
}

// skipRemaining marca como fallidos los destinatarios que no se llegaron a intentar.
func (r *Result) skipRemaining(addrs []string, cause error) {
	for _, a := range addrs {
		r.Failed++
		r.Recipients = append(r.Recipients, RecipientResult{Email: a, Status: "skipped", Error: cause.Error()})
	}
}

// credential resuelve la credencial del dueño del Email.
func (d *Dispatcher) credential(ctx context.Context, ownerID string) (google.Credential, error) {
	u, err := d.st.Users().GetByID(ctx, ownerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return google.Credential{}, ErrAccountNotLinked
		}
		return google.Credential{}, fmt.Errorf("dispatch: load sender: %w", err)
	}
	if !u.GmailLinked || u.GmailCredential == "" {
		return google.Credential{}, ErrAccountNotLinked
	}
	refresh, err := d.creds.Open(u.GmailCredential)
	if err != nil {
		return google.Credential{}, fmt.Errorf("dispatch: open credential: %w", err)
	}
	cred := google.Credential{RefreshToken: refresh, Address: u.GmailAddress}

	// Una sola renovación por dispatch; un token revocado aborta antes de tocar destinatarios.
	if a, ok := d.transport.(mail.Authorizer); ok {
		if cred, err = a.Authorize(ctx, cred); err != nil {
			return google.Credential{}, fmt.Errorf("dispatch: authorize sender: %w", err)
		}
	}
	return cred, nil
}

// recipients: dirección directa, o todos los miembros de la lista del mismo dueño.
func (d *Dispatcher) recipients(ctx context.Context, email *repository.Email) ([]string, error) {
	if addr := strings.TrimSpace(email.RecipientEmail); addr != "" {
		return []string{addr}, nil
	}
	if email.ListID == "" {
		return nil, ErrNoRecipients
	}

	members, err := d.st.Recipients().ListByOwner(ctx, email.OwnerID, repository.RecipientFilter{ListID: email.ListID})
	if err != nil {
		return nil, fmt.Errorf("dispatch: load recipients: %w", err)
	}
	if len(members) == 0 {
		return nil, ErrNoRecipients
	}
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.Email)
	}
	return out, nil
}

// fail marca el Email como failed y devuelve cause. ctx ya viene sin cancelación.
func (d *Dispatcher) fail(ctx context.Context, log *zap.Logger, email *repository.Email, cause error) error {
	log.Warn("dispatch aborted", logger.Err(cause))
	metrics.EmailsDispatched.WithLabelValues(string(repository.EmailFailed)).Inc()

	upd := repository.StatusUpdate{Status: repository.EmailFailed, LastError: cause.Error()}
	if err := d.st.Emails().UpdateStatus(ctx, email.ID, upd); err != nil {
		log.Error("failed status write failed", logger.Err(err))
		return errors.Join(cause, fmt.Errorf("dispatch: update status: %w", err))
	}
	return cause
}
