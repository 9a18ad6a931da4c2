// Package crud wires the service logger and the process lifecycle around the
// CRUD base services found in the ds packages.
package crud

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/logistics-id/crud/log"
	"github.com/logistics-id/crud/transport/rest"
	"github.com/oklog/run"
	"go.uber.org/zap"
)

type Config struct {
	Name    string
	Version string
	Host    string
	IsDev   bool
}

var (
	Service *Config
	Logger  = zap.NewNop()
)

// Start initializes the service configuration and logger.
func Start(cfg *Config) *Config {
	Service = cfg
	Logger = NewLogger(cfg.Name)
	Logger.Info(fmt.Sprintf("Starting Service: %s", Service.Name), zap.String("version", cfg.Version))

	return Service
}

// NewLogger creates a named logger using the global config.
func NewLogger(name string) *zap.Logger {
	if Service == nil {
		return log.NewLogger(name, false)
	}

	return log.NewLogger(name, Service.IsDev).With(zap.String("host", Service.Host))
}

// Serve runs srv until ctx is done, the process receives SIGINT or SIGTERM,
// or the server fails. The closers run afterwards, in order.
func Serve(ctx context.Context, srv *rest.Server, closers ...func() error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g run.Group

	g.Add(func() error {
		return srv.Start(ctx)
	}, func(error) {
		cancel()
	})
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	err := g.Run()

	var sig run.SignalError
	if errors.As(err, &sig) {
		Logger.Info(fmt.Sprintf("Shutdown Service: %s", nameOf(Service)), zap.String("signal", sig.Signal.String()))
		err = nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}

	for _, c := range closers {
		if cerr := c(); cerr != nil {
			Logger.Warn("closing dependency", zap.Error(cerr))
		}
	}

	return err
}

func nameOf(c *Config) string {
	if c == nil {
		return ""
	}
	return c.Name
}
