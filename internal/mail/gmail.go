package mail

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/api/gmail/v1"

	"github.com/dropDatabas3/hellomail/internal/oauth/google"
	"github.com/dropDatabas3/hellomail/internal/observability/logger"
)

// GmailServices construye clientes Gmail autenticados (google.CredentialManager).
type GmailServices interface {
	Authorize(ctx context.Context, cred google.Credential) (google.Credential, error)
	GmailService(ctx context.Context, cred google.Credential) (*gmail.Service, error)
}

// GmailTransport implementa Transport con la Gmail API.
type GmailTransport struct {
	services GmailServices
}

// NewGmailTransport crea un GmailTransport.
func NewGmailTransport(services GmailServices) *GmailTransport {
	return &GmailTransport{services: services}
}

// Authorize renueva el access token de cred una vez para todo el lote.
// Devuelve google.ErrRefreshFailed si Google rechaza la credencial.
func (t *GmailTransport) Authorize(ctx context.Context, cred google.Credential) (google.Credential, error) {
	return t.services.Authorize(ctx, cred)
}

// Submit envía msg como el usuario dueño de cred ("me").
func (t *GmailTransport) Submit(ctx context.Context, cred google.Credential, msg Message) (string, error) {
	raw, err := BuildMIME(cred.Address, msg)
	if err != nil {
		return "", err
	}

	svc, err := t.services.GmailService(ctx, cred)
	if err != nil {
		return "", fmt.Errorf("gmail: client: %w", err)
	}

	sent, err := svc.Users.Messages.
		Send("me", &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("gmail: send: %w", err)
	}

	logger.From(ctx).Debug("gmail message accepted",
		logger.Component("mail.gmail"),
		logger.Recipient(msg.To),
		logger.MessageID(sent.Id),
	)
	return sent.Id, nil
}
