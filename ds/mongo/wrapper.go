package mongo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type Config struct {
	Server     string
	Username   string
	Password   string
	Database   string
	Datasource string
	CtxTimeout time.Duration
}

var (
	defaultDB *mongo.Database
	logger    = zap.NewNop()

	ErrNotConnected = errors.New("mongodb not connected; call NewConnection first")
)

// setDefault fills in defaults if not explicitly provided.
func (c *Config) setDefault() {
	if c.Datasource == "" {
		c.Datasource = fmt.Sprintf("mongodb://%s:%s@%s", c.Username, c.Password, c.Server)
	}
	if c.CtxTimeout == 0 {
		c.CtxTimeout = 10 * time.Second
	}
}

// NewConnection sets up the MongoDB client and the default database used by
// NewCollection.
func NewConnection(c *Config, l *zap.Logger) error {
	c.setDefault()

	logger = l.With(
		zap.String("component", "ds.mongodb"),
		zap.String("server", c.Server),
		zap.String("database", c.Database),
	)

	clientOpts := options.Client().
		ApplyURI(c.Datasource).
		SetMonitor(monitoring())

	ctx, cancel := context.WithTimeout(context.Background(), c.CtxTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		logger.Error("MGO/CONN FAILED", zap.Error(err))
		return err
	}

	if err = client.Ping(ctx, nil); err != nil {
		logger.Error("MGO/CONN FAILURE", zap.Error(err))
		return err
	}

	defaultDB = client.Database(c.Database)

	logger.Info("MGO/CONN CONNECTED")

	return nil
}

// ConfigDefault reads the connection settings from the environment.
func ConfigDefault(db string) *Config {
	return &Config{
		Server:   os.Getenv("MONGODB_SERVER"),
		Username: os.Getenv("MONGODB_AUTH_USERNAME"),
		Password: os.Getenv("MONGODB_AUTH_PASSWORD"),
		Database: db,
	}
}

// GetDB returns the default database, nil before NewConnection succeeds.
func GetDB() *mongo.Database {
	return defaultDB
}

func CloseConnection(ctx context.Context) error {
	if defaultDB == nil {
		return ErrNotConnected
	}

	logger.Info("MGO/CONN CLOSED")

	return defaultDB.Client().Disconnect(ctx)
}
