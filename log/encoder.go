package log

import (
	"fmt"
	"time"

	"go.uber.org/zap/zapcore"
)

// ANSI codes
const (
	textRed   = "31"
	textGreen = "32"
	textWhite = "37"
	textGray  = "90"

	styleBold = "1"
)

var (
	colorRed   = ansiWrapper(textRed)
	colorGreen = ansiWrapper(textGreen)
	colorWhite = ansiWrapper(textWhite)
	colorGray  = ansiWrapper(textGray)
	bold       = ansiWrapper(styleBold)
)

func ansiWrapper(code string) func(any) string {
	return func(msg any) string {
		return fmt.Sprintf("\x1b[%sm%v\x1b[0m", code, msg)
	}
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(colorGray(t.Format("02/01 15:04:05")))
}

func levelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(colorized(level))
}

func callerEncoder(caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(colorGray("@" + caller.TrimmedPath()))
}

func nameEncoder(name string, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(colorWhite(bold(name)))
}

func colorized(level zapcore.Level) string {
	switch level {
	case zapcore.DebugLevel:
		return colorGreen(level.CapitalString())
	case zapcore.InfoLevel:
		return colorWhite(bold(level.CapitalString()))
	case zapcore.WarnLevel:
		return colorGray(bold(level.CapitalString()))
	default: // Error, DPanic, Panic, Fatal
		return colorRed(bold(level.CapitalString()))
	}
}
