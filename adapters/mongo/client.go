// Package mongo persists derived affect scores and session reports for
// offline review. Frames never reach this layer.
package mongo

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	defaultDatabase       = "cermin"
	defaultConnectTimeout = 10 * time.Second
)

// Config holds configuration for the archive database.
// Required fields:
// - URI: MongoDB connection string
// Optional fields with defaults:
// - Database: database name (default: "cermin")
// - ConnectTimeout: budget for connecting and pinging (default: 10s)
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// ValidateConfig validates the Config
func ValidateConfig(config Config) error {
	if config.URI == "" {
		return fmt.Errorf("mongodb URI is required")
	}
	if config.ConnectTimeout < 0 {
		return fmt.Errorf("connect timeout must be positive, got %s", config.ConnectTimeout)
	}
	return nil
}

// NewConfigFromEnv creates a Config from environment variables
func NewConfigFromEnv() Config {
	config := Config{
		URI:      os.Getenv("MONGODB_URI"),
		Database: os.Getenv("MONGODB_DATABASE"),
	}

	if timeoutStr := os.Getenv("MONGODB_CONNECT_TIMEOUT_SECONDS"); timeoutStr != "" {
		if seconds, err := strconv.Atoi(timeoutStr); err == nil && seconds > 0 {
			config.ConnectTimeout = time.Duration(seconds) * time.Second
		}
	}

	return config
}

// Client wraps the MongoDB client and the archive database
type Client struct {
	*mongo.Client
	Database *mongo.Database
	logger   *zap.Logger
}

// NewClient connects to MongoDB and prepares the archive collections
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	database := config.Database
	if database == "" {
		database = defaultDatabase
	}
	connectTimeout := config.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = defaultConnectTimeout
	}

	clientOptions := options.Client().
		ApplyURI(config.URI).
		SetMaxPoolSize(10).
		SetMinPoolSize(1).
		SetMaxConnIdleTime(30 * time.Minute).
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

	c := &Client{
		Client:   client,
		Database: client.Database(database),
		logger:   logger,
	}
	if err := c.ensureArchiveIndexes(ctx); err != nil {
		return nil, err
	}

	logger.Info("Connected to MongoDB archive",
		zap.String("database", database))
	return c, nil
}

// ensureArchiveIndexes backs the one-shot write rule at the durable layer: a
// question carries at most one archived expression per session.
func (c *Client) ensureArchiveIndexes(ctx context.Context) error {
	_, err := c.Database.Collection(expressionsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "session_id", Value: 1},
			{Key: "question_id", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create expressions index: %w", err)
	}

	_, err = c.Database.Collection(reportsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "session_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create reports index: %w", err)
	}
	return nil
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
