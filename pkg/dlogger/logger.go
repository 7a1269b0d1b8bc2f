// Package dlogger exposes a simple zap logger, with log levels
package dlogger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// LogLevelInfo sets the log level to info
	LogLevelInfo = "info"

	// LogLevelDebug sets the log level to debug
	LogLevelDebug = "debug"

	// LogLevelWarn sets the log level to warn
	LogLevelWarn = "warn"

	// LogLevelError sets the log level to error
	LogLevelError = "error"

	// LogLevelNone sets logger to no logging
	LogLevelNone = "none"
)

// GetLogger returns a zap logger with the specified level.
//
// Levels are case insensitive. The empty level defaults to info.
func GetLogger(logLevel string) (*zap.Logger, error) {
	logLevel = strings.ToLower(strings.TrimSpace(logLevel))
	if logLevel == LogLevelNone {
		return zap.NewNop(), nil
	}
	if logLevel == "" {
		logLevel = LogLevelInfo
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, err
	}
	zapConfig := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(lvl)
	return zapConfig.Build()
}

// MustGetLogger returns a zap logger with the specified level or panics
func MustGetLogger(logLevel string) *zap.Logger {
	l, err := GetLogger(logLevel)
	if err != nil {
		panic(err)
	}
	return l
}
