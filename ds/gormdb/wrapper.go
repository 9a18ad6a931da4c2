package gormdb

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	defaultDB *gorm.DB

	ErrClientNotInitialized = errors.New("gorm client not initialized; call NewConnection first")
)

func (c *Config) setDefault() {
	if c.Driver == "" {
		c.Driver = DriverPostgres
	}
	if c.Datasource == "" && c.Driver == DriverPostgres {
		c.Datasource = fmt.Sprintf(
			"postgres://%s:%s@%s/%s?sslmode=disable",
			c.Username, c.Password, c.Server, c.Database,
		)
	}
	if c.CtxTimeout == 0 {
		c.CtxTimeout = 10 * time.Second
	}
}

// NewConnection opens the default database used by GetDB.
func NewConnection(c *Config, l *zap.Logger) (err error) {
	l = l.With(
		zap.String("component", "ds.gormdb"),
	)

	defaultDB, err = NewClient(c, l)

	return
}

// ConfigDefault reads the connection settings from the environment.
// GORM_DSN, when set, wins over the POSTGRES_* settings.
func ConfigDefault(db string) *Config {
	return &Config{
		Driver:     os.Getenv("GORM_DRIVER"),
		Datasource: os.Getenv("GORM_DSN"),
		Server:     os.Getenv("POSTGRES_SERVER"),
		Username:   os.Getenv("POSTGRES_AUTH_USERNAME"),
		Password:   os.Getenv("POSTGRES_AUTH_PASSWORD"),
		Database:   db,
	}
}

func GetDB() *gorm.DB {
	return defaultDB
}

func CloseConnection() error {
	if defaultDB == nil {
		return ErrClientNotInitialized
	}

	sqlDB, err := defaultDB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
