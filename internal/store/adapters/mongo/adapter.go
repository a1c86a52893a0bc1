// Package mongo implementa el adapter MongoDB (go.mongodb.org/mongo-driver).
//
// Cada colección del modelo es una colección Mongo. Los IDs son ObjectID y se
// exponen como hex. Los índices se crean en Connect (idempotente).
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/dropDatabas3/hellomail/internal/domain/repository"
	"github.com/dropDatabas3/hellomail/internal/store"
)

const (
	collUsers      = "users"
	collLists      = "recipient_lists"
	collRecipients = "recipients"
	collEmails     = "emails"
	collActivities = "email_activities"

	defaultDatabase = "hellomail"
)

func init() {
	store.RegisterAdapter(&mongoAdapter{})
}

type mongoAdapter struct{}

func (a *mongoAdapter) Name() string { return "mongo" }

func (a *mongoAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	uri := cfg.URI
	if uri == "" {
		uri = cfg.DSN
	}
	if uri == "" {
		return nil, errors.New("mongo: uri is required")
	}

	opts := options.Client().ApplyURI(uri)
	if cfg.MaxOpenConns > 0 {
		opts.SetMaxPoolSize(uint64(cfg.MaxOpenConns))
	}
	if cfg.MaxIdleConns > 0 {
		opts.SetMinPoolSize(uint64(cfg.MaxIdleConns))
	}
	if cfg.ConnMaxLifetime > 0 {
		opts.SetMaxConnIdleTime(cfg.ConnMaxLifetime)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	dbName := cfg.Database
	if dbName == "" {
		dbName = defaultDatabase
	}
	c := &Connection{client: client, db: client.Database(dbName)}

	if err := c.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return c, nil
}

// Connection conexión activa a una base Mongo.
type Connection struct {
	client *mongo.Client
	db     *mongo.Database
}

func (c *Connection) Name() string { return "mongo" }

func (c *Connection) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

func (c *Connection) Close() error {
	return c.client.Disconnect(context.Background())
}

func (c *Connection) Users() repository.UserRepository {
	return &userRepo{coll: c.db.Collection(collUsers)}
}

func (c *Connection) Lists() repository.ListRepository {
	return &listRepo{coll: c.db.Collection(collLists)}
}

func (c *Connection) Recipients() repository.RecipientRepository {
	return &recipientRepo{coll: c.db.Collection(collRecipients)}
}

func (c *Connection) Emails() repository.EmailRepository {
	return &emailRepo{coll: c.db.Collection(collEmails)}
}

func (c *Connection) Activities() repository.ActivityRepository {
	return &activityRepo{coll: c.db.Collection(collActivities)}
}

func (c *Connection) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		collUsers: {
			{Keys: bson.D{{Key: "usernameLower", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		collLists: {
			{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		collRecipients: {
			{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "listId", Value: 1}}},
		},
		collEmails: {
			{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		collActivities: {
			{Keys: bson.D{{Key: "emailId", Value: 1}, {Key: "timestamp", Value: 1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := c.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo: create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
