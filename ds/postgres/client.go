package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"
)

// Config holds the configuration parameters for connecting to a PostgreSQL database.
type Config struct {
	Server     string        // Host or IP of the Postgres server
	Username   string        // Database username
	Password   string        // Database password
	Database   string        // Database name
	Datasource string        // Full DSN string (overrides Server/Username/Password/Database)
	CtxTimeout time.Duration // Connect and ping timeout
}

type Client struct {
	db     *bun.DB
	config *Config
	logger *zap.Logger
}

func NewClient(cfg *Config, l *zap.Logger) (*Client, error) {
	cfg.setDefault()

	l = l.With(
		zap.String("server", cfg.Server),
		zap.String("database", cfg.Database),
	)

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.Datasource),
		pgdriver.WithDialTimeout(cfg.CtxTimeout),
	))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.CtxTimeout)
	defer cancel()

	if err := sqldb.PingContext(ctx); err != nil {
		l.Error("PG/CONN FAILED", zap.Error(err))

		return nil, err
	}

	c := WrapDB(bun.NewDB(sqldb, pgdialect.New()), l)
	c.config = cfg

	l.Info("PG/CONN CONNECTED", zap.String("action", "connection"))

	return c, nil
}

// WrapDB attaches the query logger to an already opened bun database.
func WrapDB(db *bun.DB, l *zap.Logger) *Client {
	db.AddQueryHook(&ZapQueryHook{Logger: l})

	return &Client{
		db:     db,
		logger: l,
	}
}

func (c *Client) GetDB() *bun.DB {
	return c.db
}

func (c *Client) Close() error {
	c.logger.Info("PG/CONN CLOSED")

	return c.db.Close()
}
