package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/flowx-dev/flowx/common/config"
	"github.com/flowx-dev/flowx/common/logger"
)

// Collection names used by the run store.
const (
	CollWorkflows = "workflows"
	CollRuns      = "runs"
	CollMemories  = "agent_memories"
)

// Client wraps the Mongo driver with the database handle and
// store-level conveniences.
type Client struct {
	client  *mongodriver.Client
	db      *mongodriver.Database
	timeout time.Duration
	log     *logger.Logger
}

// New connects to MongoDB and ensures the TTL index on agent memories.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Client, error) {
	client, err := mongodriver.Connect(options.Client().ApplyURI(cfg.Mongo.URL))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	c := &Client{
		client:  client,
		db:      client.Database(cfg.Mongo.Database),
		timeout: cfg.Mongo.Timeout,
		log:     log,
	}

	if err := c.ensureIndexes(ctx, cfg.Engine.AgentMemoryTTL); err != nil {
		return nil, err
	}

	log.Info("mongo connected", "database", cfg.Mongo.Database)
	return c, nil
}

// Collection returns a handle on the named collection.
func (c *Client) Collection(name string) *mongodriver.Collection {
	return c.db.Collection(name)
}

// Timeout returns the per-operation timeout configured for the store.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Health checks store connectivity.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects from the store.
func (c *Client) Close(ctx context.Context) error {
	c.log.Info("closing mongo connection")
	return c.client.Disconnect(ctx)
}

// ensureIndexes creates the TTL index that expires agent memories after
// the configured duration since their last update.
func (c *Client) ensureIndexes(ctx context.Context, memoryTTL time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.db.Collection(CollMemories).Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "last_updated", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(memoryTTL.Seconds())),
	})
	if err != nil {
		return fmt.Errorf("create memory ttl index: %w", err)
	}
	return nil
}
