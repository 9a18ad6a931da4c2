package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvLevel names the environment variable overriding the log level.
const EnvLevel = "LOG_LEVEL"

// NewLogger builds a named logger, colored console output in development
// and JSON otherwise. Building never fails; a broken config falls back to
// zap.NewNop.
func NewLogger(name string, isDev bool) *zap.Logger {
	cfg := jsonConfig()
	if isDev {
		cfg = consoleConfig()
	}

	if lvl, ok := envLevel(); ok {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}

	if platform := os.Getenv("PLATFORM"); platform != "" {
		logger = logger.Named(platform)
	}

	return logger.Named(name)
}

func envLevel() (zapcore.Level, bool) {
	v := os.Getenv(EnvLevel)
	if v == "" {
		return zapcore.InfoLevel, false
	}

	lvl, err := zapcore.ParseLevel(v)
	if err != nil {
		return zapcore.InfoLevel, false
	}

	return lvl, true
}

func jsonConfig() zap.Config {
	hostname, _ := os.Hostname()

	return zap.Config{
		Level:            zap.NewAtomicLevelAt(zap.InfoLevel),
		Encoding:         "json",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "lvl",
			NameKey:        "service",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "trace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		InitialFields: map[string]any{
			"host": hostname,
		},
	}
}

func consoleConfig() zap.Config {
	return zap.Config{
		Level:            zap.NewAtomicLevelAt(zap.DebugLevel),
		Development:      true,
		Encoding:         "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			NameKey:        "service",
			EncodeName:     nameEncoder,
			MessageKey:     "message",
			TimeKey:        "time",
			EncodeTime:     timeEncoder,
			LevelKey:       "level",
			EncodeLevel:    levelEncoder,
			CallerKey:      "caller",
			EncodeCaller:   callerEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
		},
	}
}
