package mail

import (
	"context"
	"crypto/tls"
	"fmt"

	gomail "github.com/go-mail/mail"
	"github.com/google/uuid"

	"github.com/dropDatabas3/hellomail/internal/oauth/google"
	"github.com/dropDatabas3/hellomail/internal/observability/logger"
)

// SMTPConfig contiene la configuración para conectarse a un servidor SMTP.
type SMTPConfig struct {
	Host               string
	Port               int    // default 587
	Username           string // opcional
	Password           string // opcional
	From               string // fallback si la credencial no trae dirección
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool   // solo dev
}

// SMTPTransport implementa Transport usando SMTP. La credencial sólo aporta el From.
type SMTPTransport struct {
	cfg SMTPConfig
}

// NewSMTPTransport crea un SMTPTransport.
func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.TLSMode == "" {
		cfg.TLSMode = "auto"
	}
	return &SMTPTransport{cfg: cfg}
}

// Submit envía por SMTP. El id devuelto es el Message-Id generado.
func (s *SMTPTransport) Submit(ctx context.Context, cred google.Credential, msg Message) (string, error) {
	from := cred.Address
	if from == "" {
		from = s.cfg.From
	}
	log := logger.From(ctx).With(
		logger.Component("mail.smtp"),
		logger.String("host", s.cfg.Host),
		logger.Int("port", s.cfg.Port),
		logger.Recipient(msg.To),
	)

	id := uuid.NewString()
	m := newMessage(from, msg)
	m.SetHeader("Message-Id", fmt.Sprintf("<%s@hellomail>", id))

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	d.TLSConfig = &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: s.cfg.InsecureSkipVerify,
	}
	switch s.cfg.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.StartTLSPolicy = gomail.NoStartTLS
	default:
		// "auto"/"starttls": go-mail negocia STARTTLS si corresponde
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := d.DialAndSend(m); err != nil {
		log.Error("smtp send failed", logger.Err(err))
		return "", fmt.Errorf("smtp send: %w", err)
	}

	log.Debug("smtp message accepted", logger.MessageID(id))
	return id, nil
}
