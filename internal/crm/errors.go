// Package crm contiene los servicios que usa la capa HTTP: cuentas, vínculo con
// Gmail, listas, destinatarios y emails. Todas las operaciones reciben el id del
// usuario de la sesión y verifican que el documento le pertenezca.
package crm

import (
	"errors"
	"fmt"

	"github.com/dropDatabas3/hellomail/internal/domain/repository"
)

var (
	// ErrValidation envuelve el detalle de un input inválido.
	ErrValidation = errors.New("validation failed")

	// ErrListNotEmpty la lista todavía tiene destinatarios.
	ErrListNotEmpty = errors.New("list has recipients")

	// ErrInvalidCredentials usuario o contraseña incorrectos.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUsernameTaken el username ya está registrado.
	ErrUsernameTaken = fmt.Errorf("username already taken: %w", repository.ErrConflict)

	// ErrInvalidState el state del callback de OAuth no existe, expiró o ya se usó.
	ErrInvalidState = errors.New("invalid or expired oauth state")

	// ErrEmailLocked el email ya salió o está en vuelo y no admite cambios.
	ErrEmailLocked = fmt.Errorf("email already sent or in flight: %w", repository.ErrConflict)
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// owned verifica que ownerID sea el dueño del documento.
func owned(docOwner, ownerID string) error {
	if docOwner != ownerID {
		return repository.ErrForbidden
	}
	return nil
}
