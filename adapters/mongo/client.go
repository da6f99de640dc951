package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Config locates the MongoDB deployment
type Config struct {
	URI            string        `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017"`
	Database       string        `envconfig:"MONGODB_DATABASE" default:"wajah"`
	MaxPoolSize    uint64        `envconfig:"MONGODB_MAX_POOL_SIZE" default:"10"`
	ConnectTimeout time.Duration `envconfig:"MONGODB_CONNECT_TIMEOUT" default:"10s"`
}

// Client owns the driver connection pool and the application database
type Client struct {
	conn     *mongo.Client
	Database *mongo.Database
	logger   *zap.Logger
}

// NewClient connects to the deployment and waits for a primary to answer
func NewClient(ctx context.Context, config Config, logger *zap.Logger) (*Client, error) {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	opts := options.Client().
		ApplyURI(config.URI).
		SetAppName("wajah").
		SetMaxPoolSize(config.MaxPoolSize).
		SetServerSelectionTimeout(config.ConnectTimeout / 2).
		SetConnectTimeout(config.ConnectTimeout)

	ctx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()

	conn, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := conn.Ping(ctx, readpref.Primary()); err != nil {
		conn.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	logger.Info("Connected to MongoDB", zap.String("database", config.Database))
	return &Client{
		conn:     conn,
		Database: conn.Database(config.Database),
		logger:   logger,
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	if err := c.conn.Disconnect(ctx); err != nil {
		c.logger.Error("Failed to disconnect from MongoDB", zap.Error(err))
		return err
	}
	return nil
}
