package repomanager

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophreview/internal/server/repositories/users"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	defaultMongoDatabase = "tt-database"
	usersCollection      = "users"
	mongoDialTimeout     = 15 * time.Second
)

func openMongo(ctx context.Context, dsn string) (*Manager, error) {
	dbName, err := mongoDatabaseName(dsn)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, mongoDialTimeout)
	defer cancel()

	cli, err := mongo.Connect(dialCtx, options.Client().ApplyURI(dsn))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := cli.Ping(dialCtx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb %s: %w", redact(dsn), err)
	}

	coll := cli.Database(dbName).Collection(usersCollection)
	if err := users.EnsureMongoIndexes(dialCtx, coll); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, err
	}

	return &Manager{
		backend: "mongodb",
		users:   users.NewMongoRepository(coll),
		ping:    func(ctx context.Context) error { return cli.Ping(ctx, readpref.Primary()) },
		close:   cli.Disconnect,
	}, nil
}

// mongoDatabaseName takes the database from the DSN path, defaulting to
// the name the service has always used.
func mongoDatabaseName(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mongodb dsn: %w", err)
	}
	name := strings.Trim(u.Path, "/")
	if name == "" {
		return defaultMongoDatabase, nil
	}
	return name, nil
}
