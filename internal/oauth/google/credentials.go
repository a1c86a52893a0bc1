// Package google administra la credencial de Gmail de cada usuario.
//
// Flujo:
//
//	AuthorizationURL(state) ──► consentimiento en Google ──► callback?code&state
//	ExchangeCode(code)      ──► refresh token + dirección verificada (perfil Gmail)
//	TokenSource(cred)       ──► access tokens renovados bajo demanda (Mail Transport)
//
// Sólo el refresh token (cifrado) y la dirección verificada se persisten.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const scopeUserinfoEmail = "https://www.googleapis.com/auth/userinfo.email"

// Scopes solicitados en el consentimiento.
var Scopes = []string{
	gmail.GmailSendScope,
	gmail.GmailComposeScope,
	scopeUserinfoEmail,
}

var (
	// ErrMissingCredential Google no devolvió refresh token (consentimiento previo sin prompt).
	ErrMissingCredential = errors.New("google: provider returned no refresh token")
	// ErrProfileLookupFailed no se pudo leer la dirección verificada del perfil Gmail.
	ErrProfileLookupFailed = errors.New("google: gmail profile lookup failed")
	// ErrRefreshFailed el proveedor rechazó la renovación (revocado, expirado, etc.).
	ErrRefreshFailed = errors.New("google: credential refresh failed")
)

// Credential es el artefacto de larga vida de un usuario.
type Credential struct {
	RefreshToken string
	Address      string // dirección verificada, se usa como From

	// tokens lo carga Authorize: access token ya renovado, reutilizado hasta que expire.
	tokens oauth2.TokenSource
}

// Authorized indica si la credencial ya pasó por Authorize.
func (c Credential) Authorized() bool { return c.tokens != nil }

// Config configuración del cliente OAuth.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	HTTPTimeout  time.Duration

	// Overrides de endpoints (tests / emuladores). Vacío = Google.
	AuthURL      string
	TokenURL     string
	GmailBaseURL string
}

// CredentialManager implementa el flujo de vinculación y la renovación de tokens.
type CredentialManager struct {
	oauth     *oauth2.Config
	http      *http.Client
	gmailBase string
}

// NewCredentialManager valida la config y arma el cliente.
func NewCredentialManager(cfg Config) (*CredentialManager, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errors.New("google: client id and secret are required")
	}
	if strings.TrimSpace(cfg.RedirectURL) == "" {
		return nil, errors.New("google: redirect url is required")
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	endpoint := googleoauth.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	return &CredentialManager{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       Scopes,
			Endpoint:     endpoint,
		},
		http:      &http.Client{Timeout: timeout},
		gmailBase: cfg.GmailBaseURL,
	}, nil
}

// AuthorizationURL construye la URL de consentimiento. prompt=consent fuerza
// a Google a devolver un refresh token aunque el usuario ya haya aceptado.
func (m *CredentialManager) AuthorizationURL(state string) string {
	return m.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeCode canjea el code del callback por la credencial y la dirección verificada.
func (m *CredentialManager) ExchangeCode(ctx context.Context, code string) (Credential, string, error) {
	ctx = m.withClient(ctx)

	tok, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		return Credential{}, "", fmt.Errorf("google: exchange code: %w", err)
	}
	if tok.RefreshToken == "" {
		return Credential{}, "", ErrMissingCredential
	}

	svc, err := m.gmailService(ctx, m.oauth.TokenSource(ctx, tok))
	if err != nil {
		return Credential{}, "", fmt.Errorf("%w: %v", ErrProfileLookupFailed, err)
	}
	profile, err := svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return Credential{}, "", fmt.Errorf("%w: %v", ErrProfileLookupFailed, err)
	}
	if profile.EmailAddress == "" {
		return Credential{}, "", ErrProfileLookupFailed
	}

	cred := Credential{RefreshToken: tok.RefreshToken, Address: profile.EmailAddress}
	return cred, profile.EmailAddress, nil
}

// Authorize renueva el access token una sola vez y lo deja cargado en la
// credencial. Un lote de envíos con la credencial devuelta no vuelve a pegarle
// al token endpoint hasta que el access token expire.
func (m *CredentialManager) Authorize(ctx context.Context, cred Credential) (Credential, error) {
	ts := m.TokenSource(ctx, cred)
	if _, err := ts.Token(); err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	cred.tokens = ts
	return cred, nil
}

// Refresh obtiene un access token nuevo a partir de la credencial.
func (m *CredentialManager) Refresh(ctx context.Context, cred Credential) (string, error) {
	tok, err := m.TokenSource(ctx, cred).Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	return tok.AccessToken, nil
}

// TokenSource renueva access tokens bajo demanda y los cachea hasta su expiración.
func (m *CredentialManager) TokenSource(ctx context.Context, cred Credential) oauth2.TokenSource {
	ctx = m.withClient(ctx)
	return m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})
}

// GmailService arma un cliente Gmail autenticado con la credencial. Si viene
// de Authorize usa su fuente de tokens; si no, renueva bajo demanda.
func (m *CredentialManager) GmailService(ctx context.Context, cred Credential) (*gmail.Service, error) {
	ctx = m.withClient(ctx)
	ts := cred.tokens
	if ts == nil {
		ts = m.TokenSource(ctx, cred)
	}
	return m.gmailService(ctx, ts)
}

func (m *CredentialManager) gmailService(ctx context.Context, ts oauth2.TokenSource) (*gmail.Service, error) {
	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}
	if m.gmailBase != "" {
		opts = append(opts, option.WithEndpoint(m.gmailBase))
	}
	return gmail.NewService(ctx, opts...)
}

// withClient inyecta el http.Client con timeout que usa oauth2.
func (m *CredentialManager) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.http)
}
