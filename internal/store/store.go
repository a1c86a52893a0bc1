package store

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/hellomail/internal/domain/repository"
	"github.com/dropDatabas3/hellomail/internal/observability/logger"
)

// Store es el handle de persistencia del proceso. Se abre una vez en el arranque
// (antes de aceptar requests), se inyecta en todos los componentes y se cierra
// en el shutdown.
type Store struct {
	conn AdapterConnection
}

// Open abre la conexión del adapter configurado y verifica con Ping.
func Open(ctx context.Context, cfg AdapterConfig) (*Store, error) {
	cfg.Name = normalizeName(cfg.Name)
	a, ok := GetAdapter(cfg.Name)
	if !ok {
		return nil, fmt.Errorf("store: adapter %q not registered (available: %v)", cfg.Name, ListAdapters())
	}

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	conn, err := a.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect %s: %w", cfg.Name, err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("store: ping %s: %w", cfg.Name, err)
	}

	logger.L().Info("store opened", logger.Component("store"), logger.String("adapter", conn.Name()))
	return &Store{conn: conn}, nil
}

// New envuelve una conexión ya abierta (tests).
func New(conn AdapterConnection) *Store {
	return &Store{conn: conn}
}

// Name retorna el adapter en uso.
func (s *Store) Name() string { return s.conn.Name() }

// Ping verifica la conexión (readyz).
func (s *Store) Ping(ctx context.Context) error { return s.conn.Ping(ctx) }

// Migrate aplica el esquema si el backend lo necesita.
func (s *Store) Migrate(ctx context.Context) error {
	m, ok := s.conn.(MigratableConnection)
	if !ok {
		return nil
	}
	return m.Migrate(ctx)
}

// Close libera la conexión. Es seguro llamarlo con Store nil.
func (s *Store) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

func (s *Store) Users() repository.UserRepository           { return s.conn.Users() }
func (s *Store) Lists() repository.ListRepository           { return s.conn.Lists() }
func (s *Store) Recipients() repository.RecipientRepository { return s.conn.Recipients() }
func (s *Store) Emails() repository.EmailRepository         { return s.conn.Emails() }
func (s *Store) Activities() repository.ActivityRepository  { return s.conn.Activities() }
