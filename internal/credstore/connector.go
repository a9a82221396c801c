// Package credstore is the credential store adapter: a MongoDB connection
// owned by the process and the user repository built on top of it.
package credstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ErrMissingURI is returned when no connection string is configured.
var ErrMissingURI = errors.New("credential store connection string is not set")

type dialFunc func(ctx context.Context, uri string) (*mongo.Client, error)

// Connector lazily establishes a single MongoDB connection for its lifetime.
// Repeated Connect calls return the same database handle.
type Connector struct {
	uri      string
	database string
	logger   *slog.Logger
	dial     dialFunc

	mu     sync.Mutex
	client *mongo.Client
	db     *mongo.Database
}

// NewConnector creates a Connector for the given URI and database name.
// No connection is made until Connect is called.
func NewConnector(uri, database string, logger *slog.Logger) *Connector {
	return &Connector{
		uri:      uri,
		database: database,
		logger:   logger.With("component", "credstore"),
		dial:     dialMongo,
	}
}

// Connect establishes the connection if needed and returns the database handle.
func (c *Connector) Connect(ctx context.Context) (*mongo.Database, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		c.logger.Debug("already connected to credential store")
		return c.db, nil
	}

	if c.uri == "" {
		return nil, ErrMissingURI
	}

	client, err := c.dial(ctx, c.uri)
	if err != nil {
		return nil, err
	}

	c.client = client
	c.db = client.Database(c.database)
	c.logger.Info("connected to credential store", slog.String("database", c.database))

	return c.db, nil
}

// Ping checks credential store connectivity.
func (c *Connector) Ping(ctx context.Context) error {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()

	if client == nil {
		return errors.New("credential store not connected")
	}
	return client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client. It is safe to call before Connect.
func (c *Connector) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	err := c.client.Disconnect(ctx)
	c.client = nil
	c.db = nil
	return err
}

func dialMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(10).
		SetMinPoolSize(2).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	// Verify connection
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return client, nil
}
