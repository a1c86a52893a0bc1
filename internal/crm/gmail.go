package crm

import (
	"context"
	"fmt"
	"time"

	"github.com/dropDatabas3/hellomail/internal/audit"
	"github.com/dropDatabas3/hellomail/internal/cache"
	"github.com/dropDatabas3/hellomail/internal/domain/repository"
	"github.com/dropDatabas3/hellomail/internal/oauth/google"
	"github.com/dropDatabas3/hellomail/internal/observability/logger"
	tokens "github.com/dropDatabas3/hellomail/internal/security/token"
	"github.com/dropDatabas3/hellomail/internal/util"
)

// DefaultStateTTL vida del state entre auth-url y callback.
const DefaultStateTTL = 10 * time.Minute

const statePrefix = "gmail_state:"

// CodeExchanger es la parte del CredentialManager que usa el vínculo.
type CodeExchanger interface {
	AuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (google.Credential, string, error)
}

// Sealer cifra la credencial antes de persistirla (secretbox.Box).
type Sealer interface {
	Seal(plainText string) (string, error)
}

// GmailDeps dependencias del vínculo con Gmail.
type GmailDeps struct {
	Users    repository.UserRepository
	OAuth    CodeExchanger
	Box      Sealer
	States   cache.Client
	StateTTL time.Duration
}

// Gmail vincula y desvincula la cuenta de Gmail del usuario.
type Gmail struct {
	deps GmailDeps
}

// GmailStatus estado del vínculo.
type GmailStatus struct {
	Linked  bool   `json:"linked"`
	Address string `json:"address,omitempty"`
}

// NewGmail crea el servicio.
func NewGmail(deps GmailDeps) *Gmail {
	if deps.StateTTL <= 0 {
		deps.StateTTL = DefaultStateTTL
	}
	return &Gmail{deps: deps}
}

// AuthURL genera un state de un solo uso atado a userID y devuelve la URL de consentimiento.
func (g *Gmail) AuthURL(ctx context.Context, userID string) (string, error) {
	state, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	// se guarda el hash, no el state
	if err := g.deps.States.Set(ctx, stateKey(state), userID, g.deps.StateTTL); err != nil {
		return "", fmt.Errorf("store state: %w", err)
	}
	return g.deps.OAuth.AuthorizationURL(state), nil
}

// Complete consume el state, canjea el code y guarda la credencial cifrada.
// Devuelve el usuario actualizado para reemitir la sesión.
func (g *Gmail) Complete(ctx context.Context, state, code string) (*repository.User, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("Gmail.Complete"))

	if state == "" || code == "" {
		return nil, invalid("state and code are required")
	}
	userID, err := g.deps.States.Take(ctx, stateKey(state))
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("load state: %w", err)
	}

	cred, address, err := g.deps.OAuth.ExchangeCode(ctx, code)
	if err != nil {
		log.Warn("gmail code exchange failed", logger.UserID(userID), logger.Err(err))
		audit.Log(ctx, audit.GmailLinkFailed, logger.UserID(userID), logger.Err(err))
		return nil, err
	}

	sealed, err := g.deps.Box.Seal(cred.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("seal credential: %w", err)
	}
	if err := g.deps.Users.SetGmailCredential(ctx, userID, sealed, address); err != nil {
		return nil, err
	}

	log.Info("gmail account linked", logger.UserID(userID))
	audit.Log(ctx, audit.GmailLinked, logger.UserID(userID), logger.String("address", util.MaskEmail(address)))
	return g.deps.Users.GetByID(ctx, userID)
}

// Unlink borra la credencial guardada.
func (g *Gmail) Unlink(ctx context.Context, userID string) (*repository.User, error) {
	if err := g.deps.Users.ClearGmailCredential(ctx, userID); err != nil {
		return nil, err
	}
	logger.From(ctx).Info("gmail account unlinked", logger.UserID(userID))
	audit.Log(ctx, audit.GmailUnlinked, logger.UserID(userID))
	return g.deps.Users.GetByID(ctx, userID)
}

// Status informa si el usuario tiene Gmail vinculado.
func (g *Gmail) Status(ctx context.Context, userID string) (GmailStatus, error) {
	u, err := g.deps.Users.GetByID(ctx, userID)
	if err != nil {
		return GmailStatus{}, err
	}
	return GmailStatus{Linked: u.GmailLinked, Address: u.GmailAddress}, nil
}

func stateKey(state string) string {
	return statePrefix + tokens.SHA256Base64URL(state)
}
