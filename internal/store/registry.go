// Package store provee el registry de adaptadores de documentos y el handle
// compartido (Store) que se inyecta en el resto de los componentes.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dropDatabas3/hellomail/internal/domain/repository"
)

// Adapter representa un backend de documentos capaz de abrir conexiones.
type Adapter interface {
	// Name retorna el nombre del adapter ("memory", "mongo", "postgres").
	Name() string

	// Connect establece la conexión. Se llama una sola vez por proceso.
	Connect(ctx context.Context, cfg AdapterConfig) (AdapterConnection, error)
}

// AdapterConnection es una conexión activa con acceso a las colecciones.
type AdapterConnection interface {
	Name() string
	Ping(ctx context.Context) error
	Close() error

	// ─── Colecciones ───

	Users() repository.UserRepository
	Lists() repository.ListRepository
	Recipients() repository.RecipientRepository
	Emails() repository.EmailRepository
	Activities() repository.ActivityRepository
}

// MigratableConnection interfaz opcional para backends con esquema (postgres).
// Mongo crea índices en Connect y memory no necesita nada.
type MigratableConnection interface {
	Migrate(ctx context.Context) error
}

// AdapterConfig configuración para conectar a un backend.
type AdapterConfig struct {
	// Name del adapter: "memory" | "mongo" | "postgres"
	Name string

	// DSN connection string (postgres)
	DSN string

	// URI y Database (mongo)
	URI      string
	Database string

	// Pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// ConnectTimeout limita Connect + Ping inicial. 0 = sin límite extra.
	ConnectTimeout time.Duration
}

// ─── Registry Global ───

var (
	registryMu sync.RWMutex
	adapters   = make(map[string]Adapter)
)

// RegisterAdapter registra un adapter. Llamar en init() de cada adapter.
func RegisterAdapter(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := a.Name()
	if _, exists := adapters[name]; exists {
		panic(fmt.Sprintf("adapter: %q already registered", name))
	}
	adapters[name] = a
}

// GetAdapter obtiene un adapter por nombre (acepta alias: pg, mongodb).
func GetAdapter(name string) (Adapter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := adapters[normalizeName(name)]
	return a, ok
}

// ListAdapters retorna los nombres registrados, ordenados.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeName(name string) string {
	switch name {
	case "pg", "postgresql":
		return "postgres"
	case "mongodb":
		return "mongo"
	case "":
		return "memory"
	}
	return name
}
