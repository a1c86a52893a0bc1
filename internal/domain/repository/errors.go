package repository

import "errors"

var (
	// ErrNotFound indica que el documento solicitado no existe.
	ErrNotFound = errors.New("not found")

	// ErrConflict indica un conflicto (username duplicado, claim perdido).
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indica que los datos de entrada son inválidos.
	ErrInvalidInput = errors.New("invalid input")

	// ErrForbidden indica acceso a un documento de otro dueño.
	ErrForbidden = errors.New("forbidden")
)

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict verifica si el error es ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
