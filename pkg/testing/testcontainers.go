package testing

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	wmsmongo "github.com/Mrhamza01/prlabel/pkg/mongodb"
)

// MongoDBContainer wraps a single-node replica set, which the repositories
// need for transactions.
type MongoDBContainer struct {
	Container *mongodb.MongoDBContainer
	URI       string
}

// NewMongoDBContainer starts mongo:6 with a replica set named rs
func NewMongoDBContainer(ctx context.Context) (*MongoDBContainer, error) {
	container, err := mongodb.Run(ctx, "mongo:6", mongodb.WithReplicaSet("rs"))
	if err != nil {
		return nil, fmt.Errorf("failed to start mongodb container: %w", err)
	}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &MongoDBContainer{Container: container, URI: uri}, nil
}

// Connect opens a client on database through the shared pkg/mongodb client
func (m *MongoDBContainer) Connect(ctx context.Context, database string) (*wmsmongo.Client, error) {
	cfg := wmsmongo.DefaultConfig()
	cfg.URI = m.URI
	cfg.Database = database
	cfg.ConnectTimeout = 30 * time.Second
	cfg.MinPoolSize = 0
	cfg.Direct = true

	return wmsmongo.NewClient(ctx, cfg)
}

// Close terminates the MongoDB container
func (m *MongoDBContainer) Close(ctx context.Context) error {
	if m.Container != nil {
		return m.Container.Terminate(ctx)
	}
	return nil
}
