package mongodb

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const pingTimeout = 5 * time.Second

// Config holds MongoDB connection configuration. Credentials travel in URI.
type Config struct {
	URI            string
	Database       string
	ReplicaSet     string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
	MinPoolSize    uint64

	// Direct skips topology discovery. Test containers advertise a hostname
	// that is only reachable from inside the container network.
	Direct bool
}

// DefaultConfig returns a Config pointing at the local prlabel database
func DefaultConfig() *Config {
	return &Config{
		URI:            "mongodb://localhost:27017",
		Database:       "prlabel",
		ConnectTimeout: 10 * time.Second,
		MaxPoolSize:    50,
		MinPoolSize:    2,
	}
}

// ConfigFromEnv overlays MONGODB_URI, MONGODB_DATABASE, MONGODB_REPLICA_SET
// and MONGODB_CONNECT_TIMEOUT on the defaults.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()
	if v := os.Getenv("MONGODB_URI"); v != "" {
		cfg.URI = v
	}
	if v := os.Getenv("MONGODB_DATABASE"); v != "" {
		cfg.Database = v
	}
	cfg.ReplicaSet = os.Getenv("MONGODB_REPLICA_SET")
	if d, err := time.ParseDuration(os.Getenv("MONGODB_CONNECT_TIMEOUT")); err == nil && d > 0 {
		cfg.ConnectTimeout = d
	}
	return cfg
}

func (c *Config) clientOptions() *options.ClientOptions {
	opts := options.Client().
		ApplyURI(c.URI).
		SetConnectTimeout(c.ConnectTimeout).
		SetMaxPoolSize(c.MaxPoolSize).
		SetMinPoolSize(c.MinPoolSize).
		SetDirect(c.Direct)
	if c.ReplicaSet != "" {
		opts.SetReplicaSet(c.ReplicaSet)
	}
	return opts
}

// Client holds the connection and the pick list database
type Client struct {
	client   *mongo.Client
	database *mongo.Database
	config   *Config
}

// NewClient connects and fails unless the primary answers a ping
func NewClient(ctx context.Context, config *Config) (*Client, error) {
	client, err := mongo.Connect(ctx, config.clientOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB at %s: %w", config.URI, err)
	}

	c := &Client{client: client, database: client.Database(config.Database), config: config}
	if err := c.HealthCheck(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return c, nil
}

func (c *Client) Database() *mongo.Database { return c.database }

func (c *Client) Collection(name string) *mongo.Collection { return c.database.Collection(name) }

// Close disconnects the client
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// HealthCheck pings the primary, bounded by pingTimeout
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return c.client.Ping(ctx, readpref.Primary())
}

// WithTransaction runs fn in a session transaction. Shipment updates and
// their outbox entries commit together through it.
func (c *Client) WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	session, err := c.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}
