package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Config struct {
	URI string
}

// New connects to MongoDB and verifies the connection. Multi-document
// transactions need a replica set or sharded cluster.
func New(ctx context.Context, cfg Config) (*mongo.Client, error) {
	const op = "mongo.New"

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName("tixledger")

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return client, nil
}
