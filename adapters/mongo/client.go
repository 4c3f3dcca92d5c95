package mongo

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	defaultURI      = "mongodb://localhost:27017"
	defaultDatabase = "decisiv"

	connectTimeout = 10 * time.Second
)

// Config holds the MongoDB connection settings.
type Config struct {
	// URI is the MongoDB connection string.
	URI string
	// Database is the database holding the history collections.
	Database string

	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// NewConfigFromEnv builds the configuration from MONGODB_URI and
// MONGODB_DATABASE.
func NewConfigFromEnv() Config {
	return Config{
		URI:      os.Getenv("MONGODB_URI"),
		Database: os.Getenv("MONGODB_DATABASE"),
	}
}

// ValidateConfig validates the configuration and applies defaults.
func ValidateConfig(config *Config) error {
	if config.MaxPoolSize > 0 && config.MinPoolSize > config.MaxPoolSize {
		return fmt.Errorf("min pool size %d exceeds max pool size %d",
			config.MinPoolSize, config.MaxPoolSize)
	}
	if config.URI == "" {
		config.URI = defaultURI
	}
	if config.Database == "" {
		config.Database = defaultDatabase
	}
	if config.MaxPoolSize == 0 {
		config.MaxPoolSize = 10
	}
	if config.MinPoolSize == 0 {
		config.MinPoolSize = 1
	}
	if config.MaxConnIdleTime == 0 {
		config.MaxConnIdleTime = 30 * time.Minute
	}
	return nil
}

// Client wraps the MongoDB client and the history database.
type Client struct {
	*mongo.Client
	Database *mongo.Database
	logger   *zap.Logger
}

// NewClient connects to MongoDB and verifies the connection with a ping.
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if err := ValidateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid MongoDB config: %w", err)
	}

	clientOptions := options.Client().
		ApplyURI(config.URI).
		SetMaxPoolSize(config.MaxPoolSize).
		SetMinPoolSize(config.MinPoolSize).
		SetMaxConnIdleTime(config.MaxConnIdleTime).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(connectTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Connected to MongoDB",
		zap.String("database", config.Database))

	return &Client{
		Client:   client,
		Database: client.Database(config.Database),
		logger:   logger,
	}, nil
}

// Close closes the MongoDB connection
func (c *Client) Close(ctx context.Context) error {
	if err := c.Client.Disconnect(ctx); err != nil {
		c.logger.Error("Failed to disconnect from MongoDB", zap.Error(err))
		return err
	}
	c.logger.Info("Disconnected from MongoDB")
	return nil
}
