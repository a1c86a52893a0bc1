// Package migrations embebe las migraciones SQL (formato goose).
package migrations

import "embed"

// PostgresFS contiene el esquema del adapter postgres.
//
//go:embed schema/*.sql
var PostgresFS embed.FS

// PostgresDir es el directorio dentro de PostgresFS donde viven las migraciones.
const PostgresDir = "schema"
