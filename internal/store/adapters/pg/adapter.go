// Package pg implementa el adapter PostgreSQL.
//
// Los documentos se guardan como JSONB (una tabla por colección) usando
// database/sql sobre el driver pgx/stdlib. El esquema lo aplica goose desde
// migrations/postgres.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dropDatabas3/hellomail/internal/domain/repository"
	"github.com/dropDatabas3/hellomail/internal/store"
	migrations "github.com/dropDatabas3/hellomail/migrations/postgres"
)

func init() {
	store.RegisterAdapter(&pgAdapter{})
}

type pgAdapter struct{}

func (a *pgAdapter) Name() string { return "postgres" }

func (a *pgAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	if cfg.DSN == "" {
		return nil, errors.New("pg: dsn is required")
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: open: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return NewConnection(db), nil
}

// Connection conexión activa a PostgreSQL.
type Connection struct {
	db *sql.DB
}

// NewConnection envuelve un *sql.DB ya abierto (tests con sqlmock).
func NewConnection(db *sql.DB) *Connection {
	return &Connection{db: db}
}

func (c *Connection) Name() string                   { return "postgres" }
func (c *Connection) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }
func (c *Connection) Close() error                   { return c.db.Close() }

// Migrate aplica las migraciones embebidas con goose.
func (c *Connection) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.PostgresFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("pg: goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, c.db, migrations.PostgresDir); err != nil {
		return fmt.Errorf("pg: migrate: %w", err)
	}
	return nil
}

func (c *Connection) Users() repository.UserRepository           { return &userRepo{db: c.db} }
func (c *Connection) Lists() repository.ListRepository           { return &listRepo{db: c.db} }
func (c *Connection) Recipients() repository.RecipientRepository { return &recipientRepo{db: c.db} }
func (c *Connection) Emails() repository.EmailRepository         { return &emailRepo{db: c.db} }
func (c *Connection) Activities() repository.ActivityRepository  { return &activityRepo{db: c.db} }
