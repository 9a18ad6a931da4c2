package postgres

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// internal shared client singleton
var (
	client                  *Client
	ErrClientNotInitialized = errors.New("db client not initialized; call NewConnection first")
)

func (c *Config) setDefault() {
	if c.Datasource == "" {
		c.Datasource = fmt.Sprintf(
			"postgres://%s:%s@%s/%s?sslmode=disable",
			c.Username, c.Password, c.Server, c.Database,
		)
	}
	if c.CtxTimeout == 0 {
		c.CtxTimeout = 10 * time.Second
	}
}

// NewConnection opens the default client used by GetDB.
func NewConnection(c *Config, l *zap.Logger) (err error) {
	l = l.With(
		zap.String("component", "ds.postgres"),
	)

	client, err = NewClient(c, l)

	return
}

// ConfigDefault reads the connection settings from the environment,
// make sure the env file is loaded before calling it.
func ConfigDefault(db string) *Config {
	return &Config{
		Server:   os.Getenv("POSTGRES_SERVER"),
		Username: os.Getenv("POSTGRES_AUTH_USERNAME"),
		Password: os.Getenv("POSTGRES_AUTH_PASSWORD"),
		Database: db,
	}
}

// GetDB returns the globally initialized *bun.DB instance, nil before
// NewConnection succeeds.
func GetDB() *bun.DB {
	if client == nil {
		return nil
	}
	return client.GetDB()
}

// CloseConnection closes the default client connection.
func CloseConnection() error {
	if client == nil {
		return ErrClientNotInitialized
	}

	return client.Close()
}
