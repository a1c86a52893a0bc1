// Package cookie construye la cookie de sesión y la de borrado con los mismos
// atributos, para que el browser efectivamente la reemplace.
package cookie

import (
	"net/http"
	"strings"
	"time"
)

// Policy atributos de la cookie de sesión (sale de config.auth.cookie).
type Policy struct {
	Name     string
	Domain   string
	SameSite string // "", "lax", "strict", "none"
	Secure   bool
}

func parseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		// requiere Secure en browsers modernos; no se fuerza para no romper http://localhost
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// Session cookie HttpOnly con el token, vence junto con él.
func (p Policy) Session(value string, expires time.Time) *http.Cookie {
	maxAge := int(time.Until(expires).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	return &http.Cookie{
		Name:     p.Name,
		Value:    value,
		Path:     "/",
		Domain:   p.Domain,
		Expires:  expires.UTC(),
		MaxAge:   maxAge,
		Secure:   p.Secure,
		HttpOnly: true,
		SameSite: parseSameSite(p.SameSite),
	}
}

// Deletion cookie que borra la sesión del browser.
func (p Policy) Deletion() *http.Cookie {
	return &http.Cookie{
		Name:     p.Name,
		Value:    "",
		Path:     "/",
		Domain:   p.Domain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		Secure:   p.Secure,
		HttpOnly: true,
		SameSite: parseSameSite(p.SameSite),
	}
}
