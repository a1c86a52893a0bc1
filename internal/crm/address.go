package crm

import (
	"net/mail"
	"strings"
)

// parseAddress acepta "a@b.com" o "Nombre <a@b.com>" y devuelve sólo la dirección.
func parseAddress(s string) (string, error) {
	a, err := mail.ParseAddress(strings.TrimSpace(s))
	if err != nil {
		return "", invalid("invalid email address %q", s)
	}
	return a.Address, nil
}
