// Package jwt emite y valida el token de sesión (HS256).
//
// El token viaja en la cookie de sesión o en "Authorization: Bearer". Sus claims
// se validan contra una forma fija (SessionUser); un token con claims
// incompletos se rechaza igual que uno con firma inválida.
package jwt

import (
	"errors"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid_jwt")
	ErrInvalidIssuer = errors.New("invalid_issuer")
	ErrClaimsShape   = errors.New("claims_shape")
)

// SessionUser es el usuario de la sesión. Forma fija.
type SessionUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	MailLinked bool   `json:"mailLinked"`
}

type sessionClaims struct {
	Username   string `json:"username"`
	MailLinked bool   `json:"mail_linked"`
	jwtv5.RegisteredClaims
}

// Issuer firma tokens de sesión con un secreto compartido.
type Issuer struct {
	Iss string        // "iss"
	TTL time.Duration // vida del token (ej: 24h)

	secret []byte
	now    func() time.Time
}

// NewIssuer crea un Issuer. El secreto sale de configuración (auth.session_secret).
func NewIssuer(iss, secret string, ttl time.Duration) (*Issuer, error) {
	if len(strings.TrimSpace(secret)) < 32 {
		return nil, errors.New("jwt: session secret must be at least 32 chars")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{
		Iss:    iss,
		TTL:    ttl,
		secret: []byte(secret),
		now:    time.Now,
	}, nil
}

// IssueSession firma un token para u. Devuelve el token y su expiración.
func (i *Issuer) IssueSession(u SessionUser) (string, time.Time, error) {
	now := i.now().UTC()
	exp := now.Add(i.TTL)

	claims := sessionClaims{
		Username:   u.Username,
		MailLinked: u.MailLinked,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    i.Iss,
			Subject:   u.ID,
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(exp),
		},
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseSession valida firma, iss y exp/nbf (30s de tolerancia) y arma el SessionUser.
func (i *Issuer) ParseSession(token string) (*SessionUser, error) {
	var claims sessionClaims
	keyfunc := func(t *jwtv5.Token) (any, error) { return i.secret, nil }

	tok, err := jwtv5.ParseWithClaims(token, &claims, keyfunc,
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithLeeway(30*time.Second),
		jwtv5.WithTimeFunc(i.now),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}

	if i.Iss != "" && claims.Issuer != i.Iss {
		return nil, ErrInvalidIssuer
	}
	if claims.Subject == "" || claims.Username == "" {
		return nil, ErrClaimsShape
	}

	return &SessionUser{
		ID:         claims.Subject,
		Username:   claims.Username,
		MailLinked: claims.MailLinked,
	}, nil
}
