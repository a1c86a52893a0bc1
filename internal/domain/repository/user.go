package repository

import (
	"context"
	"time"
)

// User es la cuenta que opera el CRM.
type User struct {
	ID           string
	Username     string
	PasswordHash string

	// Perfil opcional
	Name    string
	Email   string
	Company string

	// GmailLinked indica que hay credencial de Gmail guardada.
	GmailLinked bool
	// GmailCredential es el refresh token cifrado (secretbox). Vacío si no está vinculado.
	GmailCredential string
	// GmailAddress es la dirección verificada del remitente.
	GmailAddress string

	CreatedAt time.Time
}

// CreateUserInput contiene los datos de registro.
type CreateUserInput struct {
	Username     string
	PasswordHash string
	Name         string
	Email        string
	Company      string
}

// UserRepository define operaciones sobre usuarios.
type UserRepository interface {
	// Create crea el usuario. Retorna ErrConflict si el username ya existe.
	Create(ctx context.Context, in CreateUserInput) (*User, error)

	// GetByID retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByUsername retorna ErrNotFound si no existe.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// SetGmailCredential guarda la credencial (ya cifrada) y marca la cuenta como vinculada.
	SetGmailCredential(ctx context.Context, userID, credential, address string) error

	// ClearGmailCredential desvincula la cuenta de Gmail.
	ClearGmailCredential(ctx context.Context, userID string) error
}
