// Package mail entrega mensajes a través de un proveedor externo.
//
// Transport es la frontera con el proveedor: recibe la credencial del remitente
// y un mensaje ya resuelto (un destinatario) y devuelve el id asignado por el
// proveedor. Implementaciones:
//   - GmailTransport: Gmail API (users.messages.send) con la credencial OAuth del usuario.
//   - SMTPTransport: SMTP plano, para desarrollo contra un catcher local.
package mail

import (
	"context"

	"github.com/dropDatabas3/hellomail/internal/oauth/google"
)

// Message es un mensaje a un único destinatario.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Transport envía un mensaje y devuelve el id del proveedor.
type Transport interface {
	Submit(ctx context.Context, cred google.Credential, msg Message) (string, error)
}

// TransportFunc adapta una función a Transport.
type TransportFunc func(ctx context.Context, cred google.Credential, msg Message) (string, error)

func (f TransportFunc) Submit(ctx context.Context, cred google.Credential, msg Message) (string, error) {
	return f(ctx, cred, msg)
}

// Authorizer lo implementan los transports que validan la credencial una vez
// antes de un lote de envíos. El dispatcher lo llama antes de resolver
// destinatarios y pasa la credencial devuelta a cada Submit.
type Authorizer interface {
	Authorize(ctx context.Context, cred google.Credential) (google.Credential, error)
}
