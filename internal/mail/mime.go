package mail

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	gomail "github.com/go-mail/mail"
)

// BuildMIME arma el mensaje RFC 5322 (text/html, UTF-8).
func BuildMIME(from string, msg Message) ([]byte, error) {
	if strings.TrimSpace(msg.To) == "" {
		return nil, errors.New("mail: empty recipient")
	}

	m := newMessage(from, msg)
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("mail: build mime: %w", err)
	}
	return buf.Bytes(), nil
}

func newMessage(from string, msg Message) *gomail.Message {
	m := gomail.NewMessage()
	if from != "" {
		m.SetHeader("From", from)
	}
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTMLBody)
	return m
}
