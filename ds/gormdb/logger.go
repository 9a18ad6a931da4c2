package gormdb

import (
	"context"
	"errors"
	"time"

	"github.com/logistics-id/crud/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Logger routes GORM logs to zap. Queries are logged at debug level,
// failed ones at error level.
type Logger struct {
	zap   *zap.Logger
	level gormlogger.LogLevel
}

var _ gormlogger.Interface = (*Logger)(nil)

func NewLogger(l *zap.Logger) *Logger {
	return &Logger{zap: l, level: gormlogger.Info}
}

func (g *Logger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	n := *g
	n.level = level

	return &n
}

func (g *Logger) Info(ctx context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Info {
		g.zap.Sugar().Infof(msg, args...)
	}
}

func (g *Logger) Warn(ctx context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Warn {
		g.zap.Sugar().Warnf(msg, args...)
	}
}

func (g *Logger) Error(ctx context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Error {
		g.zap.Sugar().Errorf(msg, args...)
	}
}

func (g *Logger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}

	query, rows := fc()
	log := g.zap.With(
		zap.String("query", query),
		zap.Int64("rows", rows),
		zap.String("request_id", common.GetContextRequestID(ctx)),
		zap.Duration("duration", time.Since(begin)),
	)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= gormlogger.Error:
		log.Error("GORM/QUERY", zap.Error(err))
	case g.level >= gormlogger.Info:
		log.Debug("GORM/QUERY")
	}
}
