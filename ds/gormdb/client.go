package gormdb

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Supported values of Config.Driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds the connection parameters of a GORM database.
type Config struct {
	Driver       string        // DriverPostgres (default) or DriverSQLite
	Server       string        // Host or host:port of the Postgres server
	Username     string        // Database username
	Password     string        // Database password
	Database     string        // Database name
	Datasource   string        // Full DSN (overrides Server/Username/Password/Database)
	MaxOpenConns int           // Pool size, zero keeps the database/sql default
	CtxTimeout   time.Duration // Ping timeout
}

func (c *Config) dialector() (gorm.Dialector, error) {
	switch c.Driver {
	case DriverPostgres:
		return postgres.Open(c.Datasource), nil
	case DriverSQLite:
		return sqlite.Open(c.Datasource), nil
	}

	return nil, fmt.Errorf("gormdb: unsupported driver %q", c.Driver)
}

// NewClient opens and pings the database described by cfg.
func NewClient(cfg *Config, l *zap.Logger) (*gorm.DB, error) {
	cfg.setDefault()

	l = l.With(
		zap.String("driver", cfg.Driver),
		zap.String("database", cfg.Database),
	)

	dialector, err := cfg.dialector()
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewLogger(l),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		l.Error("GORM/CONN FAILED", zap.Error(err))
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.CtxTimeout)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		l.Error("GORM/CONN FAILED", zap.Error(err))
		return nil, err
	}

	l.Info("GORM/CONN CONNECTED", zap.String("action", "connection"))

	return db, nil
}
