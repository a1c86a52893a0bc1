package crm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/hellomail/internal/audit"
	"github.com/dropDatabas3/hellomail/internal/domain/repository"
	jwtx "github.com/dropDatabas3/hellomail/internal/jwt"
	"github.com/dropDatabas3/hellomail/internal/observability/logger"
	"github.com/dropDatabas3/hellomail/internal/security/password"
)

// RegisterInput datos de alta de un usuario.
type RegisterInput struct {
	Username string
	Password string
	Name     string
	Email    string
	Company  string
}

// AccountsDeps dependencias del servicio de cuentas.
type AccountsDeps struct {
	Users   repository.UserRepository
	Issuer  *jwtx.Issuer
	Policy  password.Policy
	Hashing password.Params
}

// Accounts registra usuarios, valida login y emite sesiones.
type Accounts struct {
	deps AccountsDeps
}

// NewAccounts crea el servicio. Policy y Hashing vacíos toman los defaults.
func NewAccounts(deps AccountsDeps) *Accounts {
	if deps.Policy == (password.Policy{}) {
		deps.Policy = password.DefaultPolicy
	}
	if deps.Hashing == (password.Params{}) {
		deps.Hashing = password.Default
	}
	return &Accounts{deps: deps}
}

// Register crea el usuario con la contraseña hasheada (argon2id).
func (a *Accounts) Register(ctx context.Context, in RegisterInput) (*repository.User, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("Accounts.Register"))

	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return nil, invalid("username and password are required")
	}
	if ok, reasons := a.deps.Policy.Validate(in.Password); !ok {
		return nil, invalid("password policy: %s", strings.Join(reasons, ","))
	}
	email := strings.TrimSpace(in.Email)
	if email != "" {
		addr, err := parseAddress(email)
		if err != nil {
			return nil, err
		}
		email = addr
	}

	hash, err := password.Hash(a.deps.Hashing, in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := a.deps.Users.Create(ctx, repository.CreateUserInput{
		Username:     username,
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		Company:      strings.TrimSpace(in.Company),
	})
	if err != nil {
		if repository.IsConflict(err) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	log.Info("user registered", logger.UserID(u.ID))
	audit.Log(ctx, audit.AccountRegistered, logger.UserID(u.ID))
	return u, nil
}

// Login valida usuario y contraseña. Usuario inexistente y contraseña
// incorrecta devuelven el mismo error.
func (a *Accounts) Login(ctx context.Context, username, plain string) (*repository.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || plain == "" {
		return nil, invalid("username and password are required")
	}
	u, err := a.deps.Users.GetByUsername(ctx, username)
	if err != nil {
		if repository.IsNotFound(err) {
			audit.Log(ctx, audit.AccountLoginFailed, logger.String("reason", "unknown_user"))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !password.Verify(plain, u.PasswordHash) {
		audit.Log(ctx, audit.AccountLoginFailed, logger.UserID(u.ID), logger.String("reason", "bad_password"))
		return nil, ErrInvalidCredentials
	}
	audit.Log(ctx, audit.AccountLogin, logger.UserID(u.ID))
	return u, nil
}

// Me devuelve el usuario de la sesión.
func (a *Accounts) Me(ctx context.Context, userID string) (*repository.User, error) {
	return a.deps.Users.GetByID(ctx, userID)
}

// Session firma un token de sesión con el estado actual del usuario.
func (a *Accounts) Session(u *repository.User) (string, time.Time, error) {
	if a.deps.Issuer == nil {
		return "", time.Time{}, errors.New("session issuer not configured")
	}
	return a.deps.Issuer.IssueSession(SessionUserOf(u))
}

// SessionUserOf proyecta el User a la forma fija de la sesión.
func SessionUserOf(u *repository.User) jwtx.SessionUser {
	return jwtx.SessionUser{ID: u.ID, Username: u.Username, MailLinked: u.GmailLinked}
}
